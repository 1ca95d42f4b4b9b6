package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/antigravity/transitcore/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixtureOracle struct {
	stops map[model.StopID]model.Stop
}

func (f *fixtureOracle) FetchStop(ctx context.Context, id model.StopID) (model.Stop, error) {
	s, ok := f.stops[id]
	if !ok {
		return model.Stop{}, errors.New("unknown stop")
	}
	return s, nil
}

func newFixtureOracle() *fixtureOracle {
	return &fixtureOracle{stops: map[model.StopID]model.Stop{
		1: {ID: 1, Lat: 51.00, Lon: 20.00, HasLocation: true, Name: "Stop 1"},
		2: {ID: 2, Lat: 51.01, Lon: 20.01, HasLocation: true, Name: "Stop 2"},
		3: {ID: 3, Lat: 51.02, Lon: 20.02, HasLocation: true, Name: "Stop 3"},
	}}
}

func TestGetOrGhostCreatesAndCaches(t *testing.T) {
	g := New(newFixtureOracle())
	ctx := context.Background()

	n1, err := g.GetOrGhost(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Stop 1", n1.Stop.Name)
	assert.True(t, g.Has(1), "expected node 1 present after ghosting")

	n2, err := g.GetOrGhost(ctx, 1)
	require.NoError(t, err)
	assert.Same(t, n1, n2, "expected identical cached node")
}

func TestGetOrGhostUnknownIDWithoutOraclePanics(t *testing.T) {
	g := New(nil)
	assert.Panics(t, func() {
		_, _ = g.GetOrGhost(context.Background(), 99)
	})
}

func TestAddCourseIdempotentByCourseID(t *testing.T) {
	g := New(newFixtureOracle())
	ctx := context.Background()
	variant := &model.VariantStops{VariantID: "L1", Stops: []model.StopID{1, 2, 3}}
	course := &model.SingleCourse{
		CourseID: "c1",
		Variant:  variant,
		Arrival:  map[model.StopID]int{1: 50, 2: 250, 3: 550},
	}

	require.NoError(t, g.AddCourse(ctx, course))
	require.NoError(t, g.AddCourse(ctx, course), "re-add must be idempotent")

	node, _ := g.GetNode(1)
	soonest, ok := g.SoonestCourse(node, "L1", 0)
	require.True(t, ok)
	assert.Equal(t, "c1", soonest.CourseID)

	// Re-adding must not duplicate the course in the bucket.
	node2, _ := g.GetNode(2)
	count := 0
	for after := -1; ; {
		c, found := g.SoonestCourse(node2, "L1", after)
		if !found {
			break
		}
		count++
		after, _ = c.ArrivalAt(2)
	}
	assert.Equal(t, 1, count, "expected exactly one course in bucket after duplicate add")
}

func TestAddCourseSkipsStopsMissingFromArrivalMap(t *testing.T) {
	g := New(newFixtureOracle())
	ctx := context.Background()
	variant := &model.VariantStops{VariantID: "L1", Stops: []model.StopID{1, 2, 3}}
	course := &model.SingleCourse{
		CourseID: "c2",
		Variant:  variant,
		Arrival:  map[model.StopID]int{1: 50, 3: 550}, // stop 2 not served
	}
	require.NoError(t, g.AddCourse(ctx, course))

	node2, _ := g.GetNode(2)
	require.NotNil(t, node2, "expected ghost node for stop 2 even though course skips it")

	_, ok := g.SoonestCourse(node2, "L1", 0)
	assert.False(t, ok, "expected no course recorded at stop 2 for variant L1")
}

func TestSoonestCourseOrdering(t *testing.T) {
	g := New(newFixtureOracle())
	ctx := context.Background()
	variant := &model.VariantStops{VariantID: "L1", Stops: []model.StopID{1, 2}}
	early := &model.SingleCourse{CourseID: "early", Variant: variant, Arrival: map[model.StopID]int{1: 100, 2: 200}}
	late := &model.SingleCourse{CourseID: "late", Variant: variant, Arrival: map[model.StopID]int{1: 500, 2: 600}}

	// insert out of order
	require.NoError(t, g.AddCourse(ctx, late))
	require.NoError(t, g.AddCourse(ctx, early))

	node, _ := g.GetNode(1)
	soonest, ok := g.SoonestCourse(node, "L1", 0)
	require.True(t, ok)
	assert.Equal(t, "early", soonest.CourseID)

	next, ok := g.SoonestCourse(node, "L1", 100)
	require.True(t, ok)
	assert.Equal(t, "late", next.CourseID)

	_, ok = g.SoonestCourse(node, "L1", 500)
	assert.False(t, ok, "expected no course after 500")
}

func TestSoonestCourseOnUnsealedBucketPanics(t *testing.T) {
	g := New(newFixtureOracle())
	node := newNode(model.Stop{ID: 1})
	node.variants["L1"] = &variantBucket{courses: []*model.SingleCourse{
		{CourseID: "x", Variant: &model.VariantStops{VariantID: "L1", Stops: []model.StopID{1}}, Arrival: map[model.StopID]int{1: 10}},
	}, sealed: false}
	g.AddNode(node)

	assert.Panics(t, func() {
		g.SoonestCourse(node, "L1", 0)
	})
}

func TestRemoveNeighbourErasesBackEdge(t *testing.T) {
	g := New(newFixtureOracle())
	ctx := context.Background()
	require.NoError(t, g.AddNeighbour(ctx, 1, 120, 2))

	node, _ := g.GetNode(1)
	assert.Len(t, node.Neighbours, 1)

	g.RemoveNeighbour(1, 2)
	assert.Empty(t, node.Neighbours)
}

func TestRemoveNodeDeletesFakeNode(t *testing.T) {
	g := New(newFixtureOracle())
	fake := newNode(model.Stop{ID: model.FakeStart, HasLocation: true})
	g.AddNode(fake)
	require.True(t, g.Has(model.FakeStart))

	g.RemoveNode(model.FakeStart)
	assert.False(t, g.Has(model.FakeStart))
}

func TestChunkLoadedTracking(t *testing.T) {
	g := New(newFixtureOracle())
	const c = 42
	assert.False(t, g.IsChunkLoaded(c), "expected chunk not loaded initially")

	g.MarkChunkLoaded(c)
	assert.True(t, g.IsChunkLoaded(c), "expected chunk marked loaded")
}
