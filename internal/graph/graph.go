// Package graph implements the in-memory transit graph: a mutable mapping
// from stop id to TransitNode, growing on demand as the loader and
// endpoint adapters reference stops. It is adapted from the teacher's
// internal/graph/memory.go InMemoryGraph — same RWMutex-guarded map shape,
// with no logging of its own — but replaces the whole-graph
// LoadFromDB/sync.Once singleton with ghost nodes materialised one at a
// time through an injected StopOracle, per the "singletons become explicit
// dependencies" design note.
package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/antigravity/transitcore/internal/chunk"
	"github.com/antigravity/transitcore/internal/model"
)

// StopOracle resolves a stop id to its Stop record on first reference.
// Graph construction takes one explicitly rather than reaching for a
// package-level singleton.
type StopOracle interface {
	FetchStop(ctx context.Context, id model.StopID) (model.Stop, error)
}

// Neighbour is a walking edge out of a node: distance in metres to
// StopID.
type Neighbour struct {
	Distance float64
	StopID   model.StopID
}

type variantBucket struct {
	courses []*model.SingleCourse
	sealed  bool
}

// TransitNode is the search vertex: a Stop plus its per-variant sorted
// course lists and its walking neighbours.
type TransitNode struct {
	Stop       model.Stop
	Neighbours []Neighbour

	variants map[string]*variantBucket
}

func newNode(stop model.Stop) *TransitNode {
	return &TransitNode{Stop: stop, variants: make(map[string]*variantBucket)}
}

// Variants returns the set of variant ids this node currently carries
// courses for.
func (n *TransitNode) Variants() []string {
	out := make([]string, 0, len(n.variants))
	for id := range n.variants {
		out = append(out, id)
	}
	return out
}

// Graph is the mutable, process-lifetime transit graph. It is not safe for
// unsynchronised concurrent queries — §5 requires a query to hold
// exclusive access for its duration; callers serialise or shard.
type Graph struct {
	mu sync.RWMutex

	nodes          map[model.StopID]*TransitNode
	coursesPresent map[string]bool
	loadedChunks   map[chunk.ID]bool

	oracle StopOracle
}

// New returns an empty Graph that resolves unknown stop ids through
// oracle. oracle may be nil only for graphs that will never see an
// unknown id (e.g. a fully pre-seeded test fixture); calling GetOrGhost
// for an unknown id on such a graph panics, matching §4.2's "programming
// error" failure mode.
func New(oracle StopOracle) *Graph {
	return &Graph{
		nodes:          make(map[model.StopID]*TransitNode),
		coursesPresent: make(map[string]bool),
		loadedChunks:   make(map[chunk.ID]bool),
		oracle:         oracle,
	}
}

// Has reports whether a node for id is already present.
func (g *Graph) Has(id model.StopID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// AddNode inserts node under its own Stop.ID, overwriting any existing
// node at that id. Used directly by endpoint adaptation to install fake
// nodes, which carry no oracle-resolved Stop.
func (g *Graph) AddNode(node *TransitNode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if node.variants == nil {
		node.variants = make(map[string]*variantBucket)
	}
	g.nodes[node.Stop.ID] = node
}

// RemoveNode deletes the node at id, if present.
func (g *Graph) RemoveNode(id model.StopID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.nodes, id)
}

// GetNode returns the node at id without creating a ghost.
func (g *Graph) GetNode(id model.StopID) (*TransitNode, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

// GetOrGhost returns the node at id, creating an empty "ghost" node
// (Stop metadata only, no courses or neighbours) via the oracle if this
// is the first reference. Panics if id is unknown and no oracle was
// configured — an InvariantViolated programming error per §4.2.
func (g *Graph) GetOrGhost(ctx context.Context, id model.StopID) (*TransitNode, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n, ok := g.nodes[id]; ok {
		return n, nil
	}
	if g.oracle == nil {
		panic(fmt.Sprintf("graph: get_or_ghost(%d) called on a graph with no stop oracle", id))
	}
	stop, err := g.oracle.FetchStop(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("graph: fetch stop %d: %w", id, err)
	}
	n := newNode(stop)
	g.nodes[id] = n
	return n, nil
}

// RemoveNeighbour erases the first neighbour edge from the node at id
// pointing at target, if one exists. Used to undo the back-edges
// endpoint adaptation installs on real nodes for a geopoint destination
// (§4.5.5 cleanup).
func (g *Graph) RemoveNeighbour(id, target model.StopID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok {
		return
	}
	for i, nb := range n.Neighbours {
		if nb.StopID == target {
			n.Neighbours = append(n.Neighbours[:i], n.Neighbours[i+1:]...)
			return
		}
	}
}

// AddNeighbour appends a walking edge from id to (distance, target),
// creating a ghost node at id first if necessary.
func (g *Graph) AddNeighbour(ctx context.Context, id model.StopID, distance float64, target model.StopID) error {
	node, err := g.GetOrGhost(ctx, id)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	node.Neighbours = append(node.Neighbours, Neighbour{Distance: distance, StopID: target})
	return nil
}

// HasCourse reports whether a course id has already been applied via
// AddCourse, the dedup guarantee the loader relies on for overlapping
// chunks.
func (g *Graph) HasCourse(courseID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.coursesPresent[courseID]
}

// AddCourse ghosts every stop along its variant's stop order, inserts
// course into the nodes the course actually serves (i.e. whose stop id
// appears in course.Arrival — §4.2's invariant that every node reachable
// through a course contains that node's stop in its arrival mapping),
// then reseals each touched node's bucket for this
// variant. A course whose id has already been applied is skipped
// wholesale (idempotent by course_id).
func (g *Graph) AddCourse(ctx context.Context, course *model.SingleCourse) error {
	g.mu.Lock()
	if g.coursesPresent[course.CourseID] {
		g.mu.Unlock()
		return nil
	}
	g.mu.Unlock()

	touched := make([]*TransitNode, 0, len(course.Variant.Stops))
	for _, stopID := range course.Variant.Stops {
		node, err := g.GetOrGhost(ctx, stopID)
		if err != nil {
			return err
		}
		if _, ok := course.Arrival[stopID]; !ok {
			continue
		}
		g.mu.Lock()
		bucket, ok := node.variants[course.Variant.VariantID]
		if !ok {
			bucket = &variantBucket{}
			node.variants[course.Variant.VariantID] = bucket
		}
		bucket.courses = append(bucket.courses, course)
		bucket.sealed = false
		g.mu.Unlock()
		touched = append(touched, node)
	}

	g.mu.Lock()
	for _, node := range touched {
		bucket := node.variants[course.Variant.VariantID]
		reseal(bucket, node.Stop.ID)
	}
	g.coursesPresent[course.CourseID] = true
	g.mu.Unlock()
	return nil
}

func reseal(b *variantBucket, stopID model.StopID) {
	sort.SliceStable(b.courses, func(i, j int) bool {
		ti, _ := b.courses[i].ArrivalAt(stopID)
		tj, _ := b.courses[j].ArrivalAt(stopID)
		return ti < tj
	})
	b.sealed = true
}

// SoonestCourse returns the first course of variant on node whose arrival
// at node's stop strictly exceeds afterTime, or (nil, false) if every
// course has already departed. Panics if the variant's bucket has not
// been sealed since its last insertion — an InvariantViolated programming
// error per §4.2.
func (g *Graph) SoonestCourse(node *TransitNode, variantID string, afterTime int) (*model.SingleCourse, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	bucket, ok := node.variants[variantID]
	if !ok || len(bucket.courses) == 0 {
		return nil, false
	}
	if !bucket.sealed {
		panic(fmt.Sprintf("graph: soonest_course called on unsealed bucket (stop %d, variant %s)", node.Stop.ID, variantID))
	}
	lo, hi := 0, len(bucket.courses)
	for lo < hi {
		mid := (lo + hi) / 2
		t, _ := bucket.courses[mid].ArrivalAt(node.Stop.ID)
		if t > afterTime {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	if lo == len(bucket.courses) {
		return nil, false
	}
	return bucket.courses[lo], true
}

// MarkChunkLoaded records that chunk c has been loaded. The set grows
// monotonically for the lifetime of the graph (§5).
func (g *Graph) MarkChunkLoaded(c chunk.ID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loadedChunks[c] = true
}

// IsChunkLoaded reports whether c has previously been loaded.
func (g *Graph) IsChunkLoaded(c chunk.ID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.loadedChunks[c]
}
