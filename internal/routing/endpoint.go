package routing

import (
	"context"
	"fmt"
	"sort"

	"github.com/antigravity/transitcore/internal/geo"
	"github.com/antigravity/transitcore/internal/graph"
	"github.com/antigravity/transitcore/internal/model"
	"github.com/antigravity/transitcore/internal/store"
)

// Endpoint is the tagged union §6.2 requires: either a known stop id or a
// free geographic point.
type Endpoint struct {
	isStop bool
	stopID model.StopID
	lat    float64
	lon    float64
}

// StopEndpoint builds an Endpoint referring to an existing stop.
func StopEndpoint(id model.StopID) Endpoint {
	return Endpoint{isStop: true, stopID: id}
}

// GeoEndpoint builds an Endpoint at a free geographic point.
func GeoEndpoint(lat, lon float64) Endpoint {
	return Endpoint{isStop: false, lat: lat, lon: lon}
}

// Equal reports whether two endpoints resolve to the same stop id or the
// same exact coordinates — the check §4.6 requires before search starts.
func (e Endpoint) Equal(o Endpoint) bool {
	if e.isStop != o.isStop {
		return false
	}
	if e.isStop {
		return e.stopID == o.stopID
	}
	return e.lat == o.lat && e.lon == o.lon
}

// resolved is the outcome of adapting one Endpoint into a graph node.
type resolved struct {
	node model.StopID
	// backEdgeStops holds the real stops that received a back-edge to a
	// fake destination node, so §4.5.5 cleanup can erase exactly those.
	backEdgeStops []model.StopID
}

// resolveEndpoint implements §4.6: a stop id resolves via ghost-or-fetch
// directly; a geopoint gets a FakeStop/FakeNode with outgoing edges to
// the N_near nearest real stops (by great-circle distance), generalising
// the teacher's FindNearestNodes radius/limit search from "nearest nodes"
// to "nearest stops" and from a fixed radius to a fixed count. isDestination
// controls whether symmetric back-edges are installed on the near stops.
func resolveEndpoint(ctx context.Context, g *graph.Graph, s store.Store, dist *geo.MemoDistance, cfg Config, ep Endpoint, fakeID model.StopID, isDestination bool) (*resolved, error) {
	if ep.isStop {
		if _, err := g.GetOrGhost(ctx, ep.stopID); err != nil {
			return nil, fmt.Errorf("routing: resolve stop endpoint %d: %w", ep.stopID, err)
		}
		return &resolved{node: ep.stopID}, nil
	}

	allStops, err := s.AllStops(ctx)
	if err != nil {
		return nil, fmt.Errorf("routing: fetch all stops for endpoint adaptation: %w", err)
	}

	point := geo.Point{Lat: ep.lat, Lon: ep.lon}
	type candidate struct {
		stop model.Stop
		d    float64
	}
	candidates := make([]candidate, 0, len(allStops))
	for _, stop := range allStops {
		if !stop.HasLocation {
			continue
		}
		d := dist.Distance(point, geo.Point{Lat: stop.Lat, Lon: stop.Lon})
		candidates = append(candidates, candidate{stop: stop, d: d})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].d < candidates[j].d })
	if len(candidates) > cfg.NNear {
		candidates = candidates[:cfg.NNear]
	}

	fakeStop := model.Stop{ID: fakeID, Lat: ep.lat, Lon: ep.lon, HasLocation: true}
	fakeNode := &graph.TransitNode{Stop: fakeStop}
	for _, c := range candidates {
		fakeNode.Neighbours = append(fakeNode.Neighbours, graph.Neighbour{Distance: c.d, StopID: c.stop.ID})
	}
	g.AddNode(fakeNode)

	out := &resolved{node: fakeID}
	if isDestination {
		for _, c := range candidates {
			if err := g.AddNeighbour(ctx, c.stop.ID, c.d, fakeID); err != nil {
				cleanupFakeEndpoint(g, out)
				return nil, fmt.Errorf("routing: install back-edge %d->%d: %w", c.stop.ID, fakeID, err)
			}
			out.backEdgeStops = append(out.backEdgeStops, c.stop.ID)
		}
	}
	return out, nil
}

// cleanupFakeEndpoint removes a fake node and every back-edge installed
// for it, per §4.5.5: this must run on every exit path.
func cleanupFakeEndpoint(g *graph.Graph, r *resolved) {
	if r == nil || !r.node.IsFake() {
		return
	}
	for _, stopID := range r.backEdgeStops {
		g.RemoveNeighbour(stopID, r.node)
	}
	g.RemoveNode(r.node)
}
