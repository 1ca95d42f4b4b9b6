// Package routing implements the A*-style earliest-arrival search (§4.5)
// and the endpoint adapters (§4.6) that feed it. The open-set and
// dominance-map shape is adapted directly from the teacher's
// internal/routing/astar.go: a container/heap priority queue, a "best
// known arrival" map guarding against stale re-expansion, and a periodic
// context-cancellation check. The teacher's single-pop termination is
// replaced by the two-phase download/fine-tune patience schedule of
// §4.5.3, which has no teacher precedent and is implemented from the
// spec's decay formula directly.
package routing

import (
	"container/heap"
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/antigravity/transitcore/internal/chunk"
	"github.com/antigravity/transitcore/internal/geo"
	"github.com/antigravity/transitcore/internal/graph"
	"github.com/antigravity/transitcore/internal/loader"
	"github.com/antigravity/transitcore/internal/lru"
	"github.com/antigravity/transitcore/internal/model"
	"github.com/antigravity/transitcore/internal/store"
)

// storeOracle adapts a store.Store into the graph.StopOracle the graph
// needs for ghosting unknown stop ids.
type storeOracle struct {
	s store.Store
}

func (o storeOracle) FetchStop(ctx context.Context, id model.StopID) (model.Stop, error) {
	return o.s.StopByID(ctx, id)
}

// Router runs earliest-arrival queries against a Graph, lazily populating
// it through a Loader as the search expands. A Router owns exactly one
// Graph; per §5 a query holds that graph's exclusive attention for its
// duration, so concurrent queries against the same Router must be
// serialised by the caller (see internal/httpapi, which does this with a
// mutex).
type Router struct {
	Graph *graph.Graph

	store  store.Store
	loader *loader.Loader
	dist   *geo.MemoDistance
	cfg    Config
}

// NewRouter builds a Router backed by s, with a fresh Graph whose ghost
// nodes resolve through s. Per the "singletons become explicit
// dependencies" design note, nothing here reaches for a package-level
// connection.
func NewRouter(s store.Store, cfg Config) *Router {
	g := graph.New(storeOracle{s: s})
	return &Router{
		Graph:  g,
		store:  s,
		loader: loader.New(s),
		dist:   geo.NewMemoDistance(),
		cfg:    cfg,
	}
}

type searchPhase int

const (
	phaseDownload searchPhase = iota
	phaseFineTune
)

// patienceFor implements §4.5.3's decay formula: floor(P * (1 - 1/N)^k)
// for the k-th reach (0-indexed) within a phase.
func patienceFor(p float64, n int, k int) int {
	if n <= 0 {
		return int(p)
	}
	factor := math.Pow(1-1/float64(n), float64(k))
	return int(math.Floor(p * factor))
}

// Route implements §6.2: resolves start/destination into graph nodes,
// runs the A* search with lazy chunk loading, reconstructs the step
// sequence, and guarantees fake-node cleanup on every exit path.
func (r *Router) Route(ctx context.Context, startingTime time.Duration, start, destination Endpoint) ([]model.NavStep, error) {
	if start.Equal(destination) {
		return nil, ErrSameEndpoints
	}

	startRes, err := resolveEndpoint(ctx, r.Graph, r.store, r.dist, r.cfg, start, model.FakeStart, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer cleanupFakeEndpoint(r.Graph, startRes)

	destRes, err := resolveEndpoint(ctx, r.Graph, r.store, r.dist, r.cfg, destination, model.FakeDestination, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer cleanupFakeEndpoint(r.Graph, destRes)

	startingSeconds := int(startingTime.Seconds())
	steps, err := r.search(ctx, startingSeconds, startRes.node, destRes.node)
	if err != nil {
		return nil, err
	}
	return steps, nil
}

func (r *Router) heuristic(node, dest geo.Point, t int) float64 {
	return float64(t) + r.dist.Distance(node, dest)/r.cfg.VStraight
}

func (r *Router) search(ctx context.Context, startingSeconds int, startNode, destNode model.StopID) ([]model.NavStep, error) {
	startTNode, ok := r.Graph.GetNode(startNode)
	if !ok {
		return nil, fmt.Errorf("routing: start node %d missing after resolution", startNode)
	}
	destTNode, ok := r.Graph.GetNode(destNode)
	if !ok {
		return nil, fmt.Errorf("routing: destination node %d missing after resolution", destNode)
	}
	destPoint := geo.Point{Lat: destTNode.Stop.Lat, Lon: destTNode.Stop.Lon}
	startPoint := geo.Point{Lat: startTNode.Stop.Lat, Lon: startTNode.Stop.Lon}

	minArrival := map[model.StopID]int{}
	minPredecessor := map[model.StopID]*model.NavStep{}

	minArrival[startNode] = startingSeconds
	minPredecessor[startNode] = &model.NavStep{Kind: model.StepStart, Start: startNode, End: startNode, TimeStart: startingSeconds, TimeEnd: startingSeconds}

	pq := &priorityQueue{}
	heap.Init(pq)
	heap.Push(pq, &searchItem{
		heuristicArrival: r.heuristic(startPoint, destPoint, 0),
		actualArrival:    startingSeconds,
		lastVariant:      noVariant,
		node:             startNode,
	})

	// Pure-walking fallback (§4.5.2 initialisation): must be beaten by any
	// transit solution. Seeded into minArrival/minPredecessor only — it is
	// not a search-derived path, so it is never enqueued.
	walkDistance := r.dist.Distance(startPoint, destPoint)
	fallbackArrival := startingSeconds + int(walkDistance/r.cfg.VWalk) + int(r.cfg.TauWalkBase)
	minArrival[destNode] = fallbackArrival
	minPredecessor[destNode] = &model.NavStep{Kind: model.StepWalk, Start: startNode, End: destNode, TimeStart: startingSeconds, TimeEnd: fallbackArrival}

	recentChunks := lru.NewSet[chunk.ID](r.cfg.ChunkExclusionWindow)

	phase := phaseDownload
	reachIndex := 0
	budget := patienceFor(r.cfg.PDownload, r.cfg.NDownload, 0)
	iterUsed := 0
	explored := 0

	for pq.Len() > 0 {
		if explored%1000 == 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("routing: %w", ctx.Err())
			default:
			}
		}

		if iterUsed >= budget {
			if phase == phaseDownload {
				phase = phaseFineTune
				reachIndex = 0
				budget = patienceFor(r.cfg.PFineTune, r.cfg.NFineTune, 0)
				iterUsed = 0
				continue
			}
			break
		}

		item := heap.Pop(pq).(*searchItem)
		iterUsed++
		explored++

		// Dominance (§4.5.2 step 1).
		if best, ok := minArrival[item.node]; ok && best < item.actualArrival {
			continue
		}
		if destBest, ok := minArrival[destNode]; ok && item.actualArrival > destBest {
			continue
		}

		// Goal test (§4.5.2 step 2).
		if item.node == destNode {
			reachIndex++
			if phase == phaseDownload && reachIndex >= r.cfg.NDownload {
				phase = phaseFineTune
				reachIndex = 0
				budget = patienceFor(r.cfg.PFineTune, r.cfg.NFineTune, 0)
				iterUsed = 0
			} else if phase == phaseFineTune && reachIndex >= r.cfg.NFineTune {
				break
			} else {
				budget = patienceFor(patienceBase(phase, r.cfg), patienceN(phase, r.cfg), reachIndex)
				iterUsed = 0
			}
			continue
		}

		node, ok := r.Graph.GetNode(item.node)
		if !ok || !node.Stop.HasLocation {
			continue
		}

		// Lazy load (§4.5.2 step 3): only during the download phase.
		if phase == phaseDownload {
			c := chunk.Of(node.Stop.Lat, node.Stop.Lon, float64(item.actualArrival))
			r.ensureChunkLoaded(ctx, c, recentChunks)
			r.ensureChunkLoaded(ctx, chunk.NextChronological(c), recentChunks)
		}

		r.expandBoarding(node, item, minArrival, minPredecessor, destPoint, pq)
		r.expandWalking(node, item, minArrival, minPredecessor, destPoint, pq)
	}

	return reconstruct(minPredecessor, startNode, destNode)
}

func patienceBase(phase searchPhase, cfg Config) float64 {
	if phase == phaseDownload {
		return cfg.PDownload
	}
	return cfg.PFineTune
}

func patienceN(phase searchPhase, cfg Config) int {
	if phase == phaseDownload {
		return cfg.NDownload
	}
	return cfg.NFineTune
}

// ensureChunkLoaded loads c if not already loaded, retrying once on
// failure before giving up and continuing the search without it — per
// §7's "if a chunk fails to load, the search proceeds with what it has".
func (r *Router) ensureChunkLoaded(ctx context.Context, c chunk.ID, recentChunks *lru.Set[chunk.ID]) {
	if r.Graph.IsChunkLoaded(c) {
		return
	}
	excluded := recentChunks.Items()
	err := r.loader.Load(ctx, r.Graph, c, excluded)
	if err != nil {
		err = r.loader.Load(ctx, r.Graph, c, excluded)
	}
	if err != nil {
		log.Printf("routing: chunk %d failed to load after retry, continuing without it: %v", c, err)
		return
	}
	r.Graph.MarkChunkLoaded(c)
	recentChunks.Add(c)
}

// expandBoarding implements §4.5.2 step 4: the variant-switch budget.
func (r *Router) expandBoarding(node *graph.TransitNode, item *searchItem, minArrival map[model.StopID]int, minPredecessor map[model.StopID]*model.NavStep, destPoint geo.Point, pq *priorityQueue) {
	afterTime := item.actualArrival + int(r.cfg.TauSwitch)
	for _, variantID := range node.Variants() {
		if variantID == item.lastVariant {
			continue
		}
		course, ok := r.Graph.SoonestCourse(node, variantID, afterTime)
		if !ok {
			continue
		}
		boardTime, ok := course.ArrivalAt(node.Stop.ID)
		if !ok {
			continue
		}
		curIdx := course.Variant.IndexOf(node.Stop.ID)
		if curIdx < 0 {
			continue
		}
		for idx := len(course.Variant.Stops) - 1; idx > curIdx; idx-- {
			nextStop := course.Variant.Stops[idx]
			tArrive, ok := course.ArrivalAt(nextStop)
			if !ok {
				continue
			}
			nextNode, ok := r.Graph.GetNode(nextStop)
			if !ok || !nextNode.Stop.HasLocation {
				continue
			}
			if existing, ok := minArrival[nextStop]; ok && tArrive >= existing {
				continue
			}
			minArrival[nextStop] = tArrive
			minPredecessor[nextStop] = &model.NavStep{
				Kind: model.StepBoard, Start: node.Stop.ID, End: nextStop,
				TimeStart: boardTime, TimeEnd: tArrive,
				VariantID: variantID, CourseID: course.CourseID,
			}
			h := r.heuristic(geo.Point{Lat: nextNode.Stop.Lat, Lon: nextNode.Stop.Lon}, destPoint, tArrive-item.actualArrival)
			heap.Push(pq, &searchItem{heuristicArrival: h, actualArrival: tArrive, lastVariant: variantID, node: nextStop})
		}
	}
}

// expandWalking implements §4.5.2 step 5.
func (r *Router) expandWalking(node *graph.TransitNode, item *searchItem, minArrival map[model.StopID]int, minPredecessor map[model.StopID]*model.NavStep, destPoint geo.Point, pq *priorityQueue) {
	for _, nb := range node.Neighbours {
		tArrive := item.actualArrival + int(nb.Distance/r.cfg.VWalk) + int(r.cfg.TauWalkBase)
		nextNode, ok := r.Graph.GetNode(nb.StopID)
		if !ok || !nextNode.Stop.HasLocation {
			continue
		}
		if existing, ok := minArrival[nb.StopID]; ok && tArrive >= existing {
			continue
		}
		minArrival[nb.StopID] = tArrive
		minPredecessor[nb.StopID] = &model.NavStep{
			Kind: model.StepWalk, Start: node.Stop.ID, End: nb.StopID,
			TimeStart: item.actualArrival, TimeEnd: tArrive,
		}
		h := r.heuristic(geo.Point{Lat: nextNode.Stop.Lat, Lon: nextNode.Stop.Lon}, destPoint, tArrive-item.actualArrival)
		heap.Push(pq, &searchItem{heuristicArrival: h, actualArrival: tArrive, lastVariant: walkSentinel, node: nb.StopID})
	}
}

// reconstruct implements §4.5.4. Rather than treating "predecessor with
// no start node" as an ambiguous dead end (§9 open question (a)), it
// asserts reconstruction either reaches start or reports NoRoute.
func reconstruct(minPredecessor map[model.StopID]*model.NavStep, start, dest model.StopID) ([]model.NavStep, error) {
	var steps []model.NavStep
	current := dest
	for current != start {
		step, ok := minPredecessor[current]
		if !ok || step.Kind == model.StepStart {
			return nil, ErrNoRoute
		}
		steps = append(steps, *step)
		current = step.Start
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return steps, nil
}
