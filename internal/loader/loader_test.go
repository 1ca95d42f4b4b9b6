package loader

import (
	"context"
	"errors"
	"testing"

	"github.com/antigravity/transitcore/internal/chunk"
	"github.com/antigravity/transitcore/internal/graph"
	"github.com/antigravity/transitcore/internal/model"
	"github.com/antigravity/transitcore/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loaderOracle struct {
	s *store.FixtureStore
}

func (o *loaderOracle) FetchStop(ctx context.Context, id model.StopID) (model.Stop, error) {
	stop, err := o.s.StopByID(ctx, id)
	if err != nil {
		return model.Stop{}, errors.New("unknown stop")
	}
	return stop, nil
}

func buildFixture() *store.FixtureStore {
	f := store.NewFixtureStore()
	f.AddStop(model.Stop{ID: 1, Lat: 51.00, Lon: 20.00, HasLocation: true, Name: "Stop 1"})
	f.AddStop(model.Stop{ID: 2, Lat: 51.00, Lon: 20.00, HasLocation: true, Name: "Stop 2"})
	f.AddStop(model.Stop{ID: 3, Lat: 51.00, Lon: 20.00, HasLocation: true, Name: "Stop 3"})
	f.AddVariant("L1", []model.StopID{1, 2, 3})
	return f
}

func TestLoaderInsertsCoursesAndNeighbours(t *testing.T) {
	ctx := context.Background()
	f := buildFixture()
	require.NoError(t, f.AddCourse("c1", "L1", map[model.StopID]int{1: 5, 2: 15, 3: 25}))
	f.AddWalkNeighbour(1, 2, 150)

	g := graph.New(&loaderOracle{s: f})
	l := New(f)

	target := chunk.Of(51.00, 20.00, 5*60)
	latChunk, lngChunk, timeChunk := chunk.Unpack(target)

	require.NoError(t, l.Load(ctx, g, chunk.Pack(latChunk, lngChunk, timeChunk), nil))

	node1, ok := g.GetNode(1)
	require.True(t, ok, "expected node 1 to exist after load")
	require.Len(t, node1.Neighbours, 1)
	assert.Equal(t, model.StopID(2), node1.Neighbours[0].StopID)

	course, ok := g.SoonestCourse(node1, "L1", 0)
	require.True(t, ok)
	assert.Equal(t, "c1", course.CourseID)
}

func TestLoaderRejectsCourseMissingFirstStop(t *testing.T) {
	ctx := context.Background()
	f := buildFixture()
	// Course never departs stop 1, the variant's first stop.
	require.NoError(t, f.AddCourse("c2", "L1", map[model.StopID]int{2: 15, 3: 25}))

	g := graph.New(&loaderOracle{s: f})
	l := New(f)

	target := chunk.Of(51.00, 20.00, 15*60)
	latChunk, lngChunk, timeChunk := chunk.Unpack(target)
	require.NoError(t, l.Load(ctx, g, chunk.Pack(latChunk, lngChunk, timeChunk), nil))

	assert.False(t, g.Has(2), "expected node 2 to remain unghosted since the course was rejected before insertion")
}
