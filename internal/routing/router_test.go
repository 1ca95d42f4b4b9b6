package routing

import (
	"context"
	"testing"

	"github.com/antigravity/transitcore/internal/model"
	"github.com/antigravity/transitcore/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildInStopSwitchFixture wires S1's topology directly onto a Router's
// Graph, bypassing the loader: variant L1 [1,2,3,6,4] ridden end to end by
// one course, crossed at stop 3 by variant L3 [3,4]'s faster course.
func buildInStopSwitchFixture(t *testing.T, cfg Config) (*Router, context.Context) {
	t.Helper()
	ctx := context.Background()
	fx := store.NewFixtureStore()
	stops := []model.Stop{
		{ID: 1, Lat: 51.90, Lon: 20.40, HasLocation: true},
		{ID: 2, Lat: 51.91, Lon: 20.41, HasLocation: true},
		{ID: 3, Lat: 51.92, Lon: 20.42, HasLocation: true},
		{ID: 6, Lat: 51.93, Lon: 20.43, HasLocation: true},
		{ID: 4, Lat: 51.94, Lon: 20.44, HasLocation: true},
	}
	for _, s := range stops {
		fx.AddStop(s)
	}

	r := NewRouter(fx, cfg)

	l1 := &model.VariantStops{VariantID: "L1", Stops: []model.StopID{1, 2, 3, 6, 4}}
	c1 := &model.SingleCourse{CourseID: "c1", Variant: l1, Arrival: map[model.StopID]int{
		1: 50, 2: 250, 3: 550, 6: 750, 4: 950,
	}}
	require.NoError(t, r.Graph.AddCourse(ctx, c1))

	l3 := &model.VariantStops{VariantID: "L3", Stops: []model.StopID{3, 4}}
	c2 := &model.SingleCourse{CourseID: "c2", Variant: l3, Arrival: map[model.StopID]int{
		3: 600, 4: 800,
	}}
	require.NoError(t, r.Graph.AddCourse(ctx, c2))

	return r, ctx
}

// S1: in-stop line switch.
func TestRouteInStopLineSwitch(t *testing.T) {
	r, ctx := buildInStopSwitchFixture(t, DefaultConfig())

	steps, err := r.Route(ctx, 0, StopEndpoint(1), StopEndpoint(4))
	require.NoError(t, err)
	require.Len(t, steps, 2)

	last := steps[len(steps)-1]
	assert.Equal(t, 800, last.TimeEnd)

	second := steps[1]
	assert.Equal(t, "L3", second.VariantID)
	assert.Equal(t, model.StopID(3), second.Start)
	assert.Equal(t, 600, second.TimeStart)
}

// S3: heuristic degeneration must not change the optimum, only how hard the
// search has to work to find it.
func TestRouteHeuristicDegenerationPreservesOptimum(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VStraight = 0.001
	r, ctx := buildInStopSwitchFixture(t, cfg)

	steps, err := r.Route(ctx, 0, StopEndpoint(1), StopEndpoint(4))
	require.NoError(t, err)

	last := steps[len(steps)-1]
	assert.Equal(t, 800, last.TimeEnd, "expected the optimum unchanged by a degenerate heuristic")
}

// S2: walk-then-ride across two disconnected triads joined by one walk edge.
func TestRouteWalkThenRide(t *testing.T) {
	ctx := context.Background()
	fx := store.NewFixtureStore()
	stops := []model.Stop{
		{ID: 1, Lat: 51.80, Lon: 20.40, HasLocation: true},
		{ID: 2, Lat: 51.81, Lon: 20.41, HasLocation: true},
		{ID: 3, Lat: 51.82, Lon: 20.42, HasLocation: true},
		{ID: 4, Lat: 51.95, Lon: 20.50, HasLocation: true},
		{ID: 5, Lat: 51.96, Lon: 20.51, HasLocation: true},
		{ID: 6, Lat: 51.97, Lon: 20.52, HasLocation: true},
	}
	for _, s := range stops {
		fx.AddStop(s)
	}
	r := NewRouter(fx, DefaultConfig())

	l1 := &model.VariantStops{VariantID: "L1", Stops: []model.StopID{1, 2, 3}}
	c1 := &model.SingleCourse{CourseID: "c1", Variant: l1, Arrival: map[model.StopID]int{1: 50, 2: 200, 3: 400}}
	require.NoError(t, r.Graph.AddCourse(ctx, c1))

	l2 := &model.VariantStops{VariantID: "L2", Stops: []model.StopID{4, 5, 6}}
	c2 := &model.SingleCourse{CourseID: "c2", Variant: l2, Arrival: map[model.StopID]int{4: 700, 5: 900, 6: 1200}}
	require.NoError(t, r.Graph.AddCourse(ctx, c2))

	require.NoError(t, r.Graph.AddNeighbour(ctx, 3, 200, 4))

	steps, err := r.Route(ctx, 0, StopEndpoint(1), StopEndpoint(6))
	require.NoError(t, err)

	last := steps[len(steps)-1]
	assert.Equal(t, 1200, last.TimeEnd)

	var sawWalkToFour bool
	for _, s := range steps {
		if s.Kind == model.StepWalk && s.End == 4 {
			sawWalkToFour = true
		}
	}
	assert.True(t, sawWalkToFour, "expected a walk step ending at stop 4")
}

// S4: equal endpoints are rejected before any search happens.
func TestRouteSameEndpointsGuard(t *testing.T) {
	ctx := context.Background()
	fx := store.NewFixtureStore()
	fx.AddStop(model.Stop{ID: 1, Lat: 51.9, Lon: 20.4, HasLocation: true})
	r := NewRouter(fx, DefaultConfig())

	_, err := r.Route(ctx, 0, StopEndpoint(1), StopEndpoint(1))
	assert.Equal(t, ErrSameEndpoints, err)
}

// S5: free geopoint endpoints adapt through fake nodes and are cleaned up
// afterwards, leaving no trace in the graph.
func TestRouteFreeGeopointEndpoints(t *testing.T) {
	ctx := context.Background()
	fx := store.NewFixtureStore()
	stopA := model.Stop{ID: 10, Lat: 52.000, Lon: 20.500, HasLocation: true}
	stopB := model.Stop{ID: 20, Lat: 52.072, Lon: 20.500, HasLocation: true} // ~8km north
	fx.AddStop(stopA)
	fx.AddStop(stopB)
	r := NewRouter(fx, DefaultConfig())

	variant := &model.VariantStops{VariantID: "EXPRESS", Stops: []model.StopID{10, 20}}
	course := &model.SingleCourse{CourseID: "e1", Variant: variant, Arrival: map[model.StopID]int{10: 120, 20: 720}}
	require.NoError(t, r.Graph.AddCourse(ctx, course))

	start := GeoEndpoint(52.0004, 20.5003)
	dest := GeoEndpoint(52.0716, 20.5003)

	steps, err := r.Route(ctx, 0, start, dest)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(steps), 2)

	assert.Equal(t, model.StepWalk, steps[0].Kind, "expected first step to be a walk from the fake start")
	last := steps[len(steps)-1]
	assert.Equal(t, model.StepWalk, last.Kind, "expected last step to be a walk to the fake destination")

	total := last.TimeEnd - steps[0].TimeStart
	assert.LessOrEqual(t, total, 100*60)

	assert.False(t, r.Graph.Has(model.FakeStart), "expected fake start cleaned up")
	assert.False(t, r.Graph.Has(model.FakeDestination), "expected fake destination cleaned up")
}

// Invariant: a query never leaves its fake start node behind, whether it is
// answered by the pure-walking fallback or ends in ErrNoRoute.
func TestRouteCleansUpFakeStartNode(t *testing.T) {
	ctx := context.Background()
	fx := store.NewFixtureStore()
	fx.AddStop(model.Stop{ID: 1, Lat: 51.9, Lon: 20.4, HasLocation: true})
	fx.AddStop(model.Stop{ID: 2, Lat: 51.91, Lon: 20.41, HasLocation: true})
	r := NewRouter(fx, DefaultConfig())

	start := GeoEndpoint(51.9001, 20.4001)
	_, err := r.Route(ctx, 0, start, StopEndpoint(2))
	// With V_walk = 1 and no transit loaded, the pure-walking fallback
	// always succeeds, so this should resolve rather than error — the
	// interesting assertion is that cleanup still ran.
	if err != nil {
		assert.Equal(t, ErrNoRoute, err)
	}
	assert.False(t, r.Graph.Has(model.FakeStart), "expected fake start node to be cleaned up")
}
