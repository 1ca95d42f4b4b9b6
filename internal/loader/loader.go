// Package loader implements the demand-driven chunk loader (§4.4): given a
// chunk the router wants populated, it pulls the relevant courses and
// walk neighbours from the store and inserts them into the graph. It
// never loads the whole graph up front — the teacher's
// graph/builder.go BuildGraph does that, but the spatiotemporal chunking
// model this loader serves is fundamentally incremental, so the query
// shape is adapted rather than reused wholesale. Logging style follows
// the teacher's (and transit-app's loader.go's) log.Printf progress lines.
package loader

import (
	"context"
	"fmt"
	"log"

	"github.com/antigravity/transitcore/internal/chunk"
	"github.com/antigravity/transitcore/internal/graph"
	"github.com/antigravity/transitcore/internal/model"
	"github.com/antigravity/transitcore/internal/store"
)

// Loader pulls chunk data from a Store and inserts it into a Graph.
type Loader struct {
	store store.Store
}

// New returns a Loader reading from s.
func New(s store.Store) *Loader {
	return &Loader{store: s}
}

// Load implements §4.4's contract: fetch courses touching c (minus any
// already covered by excludedChunks), insert them, then fetch and attach
// walk neighbours for c's spatial cell. It never mutates anything but the
// graph, and never commits — the store is read-only.
func (l *Loader) Load(ctx context.Context, g *graph.Graph, c chunk.ID, excludedChunks []chunk.ID) error {
	latChunk, lngChunk, timeChunk := chunk.Unpack(c)

	excluded := make([]store.ExcludedChunk, 0, len(excludedChunks))
	for _, ex := range excludedChunks {
		la, ln, tc := chunk.Unpack(ex)
		excluded = append(excluded, store.ExcludedChunk{LatChunk: la, LngChunk: ln, TimeChunk: tc})
	}

	rows, err := l.store.CoursesTouchingChunk(ctx, latChunk, lngChunk, timeChunk, excluded)
	if err != nil {
		return fmt.Errorf("loader: courses touching chunk %d: %w", c, err)
	}

	courses := groupByCourse(rows)
	inserted := 0
	rejected := 0
	for _, course := range courses {
		if len(course.Variant.Stops) == 0 {
			variantStops, err := l.store.VariantStops(ctx, course.Variant.VariantID)
			if err != nil {
				return fmt.Errorf("loader: variant stops for %q: %w", course.Variant.VariantID, err)
			}
			course.Variant.Stops = variantStops
		}
		if !servesFirstStop(course) {
			rejected++
			log.Printf("loader: rejecting course %q: missing its first observed stop's arrival entry", course.CourseID)
			continue
		}
		if err := g.AddCourse(ctx, course); err != nil {
			return fmt.Errorf("loader: add course %q: %w", course.CourseID, err)
		}
		inserted++
	}

	neighbours, err := l.store.WalkNeighboursInCell(ctx, latChunk, lngChunk)
	if err != nil {
		return fmt.Errorf("loader: walk neighbours for cell (%d,%d): %w", latChunk, lngChunk, err)
	}
	for _, n := range neighbours {
		if err := g.AddNeighbour(ctx, n.StopID, n.DistanceMetres, n.NeighbourID); err != nil {
			return fmt.Errorf("loader: add walk neighbour %d->%d: %w", n.StopID, n.NeighbourID, err)
		}
	}

	log.Printf("loader: chunk %d: %d courses inserted, %d rejected, %d walk edges", c, inserted, rejected, len(neighbours))
	return nil
}

// groupByCourse assembles Q1's flat rows into SingleCourse instances,
// deriving each course's variant reference from the first row seen for
// it. Variant stop order is left empty here; Load fills it in from Q3
// when a course's variant hasn't been resolved yet.
func groupByCourse(rows []store.CourseDeparture) []*model.SingleCourse {
	order := make([]string, 0)
	byID := make(map[string]*model.SingleCourse)
	variants := make(map[string]*model.VariantStops)

	for _, row := range rows {
		v, ok := variants[row.VariantID]
		if !ok {
			v = &model.VariantStops{VariantID: row.VariantID}
			variants[row.VariantID] = v
		}
		course, ok := byID[row.CourseID]
		if !ok {
			course = &model.SingleCourse{
				CourseID: row.CourseID,
				Variant:  v,
				Arrival:  make(map[model.StopID]int),
			}
			byID[row.CourseID] = course
			order = append(order, row.CourseID)
		}
		course.Arrival[row.StopID] = row.DepartureMinute * 60
	}

	out := make([]*model.SingleCourse, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out
}

// servesFirstStop rejects a course whose variant's first stop is not
// present in its arrival map — §4.4's edge policy defending against
// partial chunks producing courses missing their initial departure.
func servesFirstStop(c *model.SingleCourse) bool {
	if len(c.Variant.Stops) == 0 {
		return false
	}
	_, ok := c.Arrival[c.Variant.Stops[0]]
	return ok
}
