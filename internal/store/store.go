// Package store defines the five read-only queries the router depends on
// (§6.1) and two implementations: a pgx-backed Postgres adapter for
// production, and an in-memory fixture for tests. Splitting the interface
// from its backends follows the "explicit dependency, not singleton"
// design note — the router is constructed with whichever Store it needs,
// never reaches for a package-level connection.
package store

import (
	"context"

	"github.com/antigravity/transitcore/internal/model"
)

// CourseDeparture is one row of Q1: a course's departure at a stop.
type CourseDeparture struct {
	StopID          model.StopID
	CourseID        string
	DepartureMinute int
	VariantID       string
}

// WalkNeighbour is one row of Q2: a walking edge between two stops.
type WalkNeighbour struct {
	StopID         model.StopID
	NeighbourID    model.StopID
	DistanceMetres float64
}

// Store is the read-only surface the loader and endpoint adapters consume.
// Every method corresponds to one of the five queries in §6.1.
type Store interface {
	// CoursesTouchingChunk answers Q1: every departure row for courses with
	// any departure in latChunk/lngChunk/timeChunk, excluding courses
	// already covered by any chunk in excluded.
	CoursesTouchingChunk(ctx context.Context, latChunk, lngChunk, timeChunk int, excluded []ExcludedChunk) ([]CourseDeparture, error)

	// WalkNeighboursInCell answers Q2: walking edges between stops in the
	// given spatial cell.
	WalkNeighboursInCell(ctx context.Context, latChunk, lngChunk int) ([]WalkNeighbour, error)

	// VariantStops answers Q3: the ordered stop sequence of a variant.
	VariantStops(ctx context.Context, variantID string) ([]model.StopID, error)

	// StopByID answers Q4: the Stop record for a single id.
	StopByID(ctx context.Context, id model.StopID) (model.Stop, error)

	// AllStops answers Q5: every stop with a location, for nearest-N
	// lookup during endpoint adaptation.
	AllStops(ctx context.Context) ([]model.Stop, error)
}

// ExcludedChunk names a previously-loaded chunk by its spatial and
// temporal cell coordinates, the parameters Q1 excludes course ids by.
type ExcludedChunk struct {
	LatChunk, LngChunk, TimeChunk int
}
