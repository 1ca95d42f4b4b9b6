package routing

import "github.com/antigravity/transitcore/internal/model"

// noVariant marks a queue entry that has not yet boarded anything (the
// Start seed). walkSentinel marks an entry reached by walking, which must
// force reconsideration of every variant at the next expansion (§4.5.2
// step 5) since no single real variant id equals this sentinel.
const (
	noVariant    = ""
	walkSentinel = "\x00walk"
)

// searchItem is one entry in the router's open set: the priority tuple
// (heuristicArrival, actualArrival, lastVariant, node) from §4.5.1, plus
// the heap index container/heap needs for Push/Pop.
type searchItem struct {
	heuristicArrival float64
	actualArrival    int
	lastVariant      string
	node             model.StopID

	index int
}

// priorityQueue implements heap.Interface over searchItem, ordered by the
// full tie-break tuple the spec requires for deterministic search. The
// shape (index field, Len/Less/Swap/Push/Pop) follows the teacher's
// astar.go PriorityQueue, reinforced by katalvlaran/lvlath's nodePQ in
// graph/dijkstra.go.
type priorityQueue []*searchItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	a, b := pq[i], pq[j]
	if a.heuristicArrival != b.heuristicArrival {
		return a.heuristicArrival < b.heuristicArrival
	}
	if a.actualArrival != b.actualArrival {
		return a.actualArrival < b.actualArrival
	}
	if a.lastVariant != b.lastVariant {
		return a.lastVariant < b.lastVariant
	}
	return a.node < b.node
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x interface{}) {
	item := x.(*searchItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}
