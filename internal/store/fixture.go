package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/antigravity/transitcore/internal/chunk"
	"github.com/antigravity/transitcore/internal/model"
)

// FixtureStore is a pure in-memory Store, built to let tests seed exactly
// the scenarios in §8 without a database. It answers Q1/Q2 the same way
// PostgresStore conceptually does — filtering candidate rows by exact
// chunk membership — just over Go slices instead of SQL rows.
type FixtureStore struct {
	stops         map[model.StopID]model.Stop
	variantStops  map[string][]model.StopID
	courses       []fixtureCourseRow
	walkEdges     []WalkNeighbour
}

type fixtureCourseRow struct {
	StopID          model.StopID
	CourseID        string
	DepartureMinute int
	VariantID       string
}

// NewFixtureStore returns an empty FixtureStore ready for Add* calls.
func NewFixtureStore() *FixtureStore {
	return &FixtureStore{
		stops:        make(map[model.StopID]model.Stop),
		variantStops: make(map[string][]model.StopID),
	}
}

// AddStop registers a stop.
func (f *FixtureStore) AddStop(stop model.Stop) {
	f.stops[stop.ID] = stop
}

// AddVariant registers a variant's ordered stop sequence.
func (f *FixtureStore) AddVariant(variantID string, stops []model.StopID) {
	f.variantStops[variantID] = stops
}

// AddCourse registers a course: variantID plus a stop_id -> departure
// minute mapping, matching the vendor format the loader expects before
// converting to seconds.
func (f *FixtureStore) AddCourse(courseID, variantID string, departures map[model.StopID]int) error {
	stops, ok := f.variantStops[variantID]
	if !ok {
		return fmt.Errorf("store: unknown variant %q", variantID)
	}
	for _, stopID := range stops {
		minute, ok := departures[stopID]
		if !ok {
			continue
		}
		f.courses = append(f.courses, fixtureCourseRow{
			StopID:          stopID,
			CourseID:        courseID,
			DepartureMinute: minute,
			VariantID:       variantID,
		})
	}
	return nil
}

// AddWalkNeighbour registers a symmetric or asymmetric walking edge; call
// twice with swapped ids for a symmetric pair, matching §3's note that the
// core does not enforce symmetry itself.
func (f *FixtureStore) AddWalkNeighbour(stopID, neighbourID model.StopID, distanceMetres float64) {
	f.walkEdges = append(f.walkEdges, WalkNeighbour{StopID: stopID, NeighbourID: neighbourID, DistanceMetres: distanceMetres})
}

func (f *FixtureStore) CoursesTouchingChunk(ctx context.Context, latChunk, lngChunk, timeChunk int, excluded []ExcludedChunk) ([]CourseDeparture, error) {
	target := chunk.Pack(latChunk, lngChunk, timeChunk)

	excludedIDs := make(map[string]bool)
	for _, ex := range excluded {
		exTarget := chunk.Pack(ex.LatChunk, ex.LngChunk, ex.TimeChunk)
		for _, row := range f.courses {
			stop, ok := f.stops[row.StopID]
			if !ok || !stop.HasLocation {
				continue
			}
			if chunk.Of(stop.Lat, stop.Lon, float64(row.DepartureMinute)*60) == exTarget {
				excludedIDs[row.CourseID] = true
			}
		}
	}

	matchingCourseIDs := make(map[string]bool)
	for _, row := range f.courses {
		stop, ok := f.stops[row.StopID]
		if !ok || !stop.HasLocation {
			continue
		}
		if chunk.Of(stop.Lat, stop.Lon, float64(row.DepartureMinute)*60) == target {
			matchingCourseIDs[row.CourseID] = true
		}
	}
	for id := range excludedIDs {
		delete(matchingCourseIDs, id)
	}

	var out []CourseDeparture
	for _, row := range f.courses {
		if !matchingCourseIDs[row.CourseID] {
			continue
		}
		out = append(out, CourseDeparture{
			StopID:          row.StopID,
			CourseID:        row.CourseID,
			DepartureMinute: row.DepartureMinute,
			VariantID:       row.VariantID,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CourseID != out[j].CourseID {
			return out[i].CourseID < out[j].CourseID
		}
		return out[i].DepartureMinute < out[j].DepartureMinute
	})
	return out, nil
}

func (f *FixtureStore) WalkNeighboursInCell(ctx context.Context, latChunk, lngChunk int) ([]WalkNeighbour, error) {
	var out []WalkNeighbour
	for _, edge := range f.walkEdges {
		stop, ok := f.stops[edge.StopID]
		if !ok || !stop.HasLocation {
			continue
		}
		sLat, sLng := chunk.SpatialCell(chunk.Of(stop.Lat, stop.Lon, 0))
		if sLat == latChunk && sLng == lngChunk {
			out = append(out, edge)
		}
	}
	return out, nil
}

func (f *FixtureStore) VariantStops(ctx context.Context, variantID string) ([]model.StopID, error) {
	stops, ok := f.variantStops[variantID]
	if !ok {
		return nil, fmt.Errorf("store: unknown variant %q", variantID)
	}
	out := make([]model.StopID, len(stops))
	copy(out, stops)
	return out, nil
}

func (f *FixtureStore) StopByID(ctx context.Context, id model.StopID) (model.Stop, error) {
	stop, ok := f.stops[id]
	if !ok {
		return model.Stop{}, fmt.Errorf("store: unknown stop %d", id)
	}
	return stop, nil
}

func (f *FixtureStore) AllStops(ctx context.Context) ([]model.Stop, error) {
	out := make([]model.Stop, 0, len(f.stops))
	for _, s := range f.stops {
		if s.HasLocation {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
