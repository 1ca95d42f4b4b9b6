// Package model holds the core data types of the transit graph: stops,
// line variants, scheduled courses, and the navigation steps a route is
// expressed in. Courses and variants are immutable once constructed by the
// loader (internal/loader); the graph (internal/graph) holds references to
// them, never copies.
package model

// StopID identifies a Stop. FakeStart and FakeDestination are the two
// reserved sentinel ids used for synthetic geopoint endpoints (§3,
// "FakeStop / FakeNode").
type StopID int64

const (
	FakeStart       StopID = -1
	FakeDestination StopID = -2
)

// IsFake reports whether id is one of the transient fake-node sentinels.
func (id StopID) IsFake() bool {
	return id == FakeStart || id == FakeDestination
}

// Stop is a physical transit stop. A stop without a location (HasLocation
// false) is admissible only as a label, never as a routing node.
type Stop struct {
	ID          StopID
	Lat         float64
	Lon         float64
	HasLocation bool
	Code        string
	Name        string
}

// VariantStops identifies which stops belong to a line variant, in order.
type VariantStops struct {
	VariantID string
	Stops     []StopID
}

// IndexOf returns the position of stop in the variant's stop order, or -1.
func (v VariantStops) IndexOf(stop StopID) int {
	for i, s := range v.Stops {
		if s == stop {
			return i
		}
	}
	return -1
}

// SingleCourse is one timetabled vehicle run on a variant. Arrival holds
// seconds-since-midnight for every stop the course actually serves; within
// a node's bucket, courses are ordered by their arrival time at that node's
// stop (see graph.SoonestCourse).
type SingleCourse struct {
	CourseID string
	Variant  *VariantStops
	Arrival  map[StopID]int // stop id -> seconds since midnight
}

// ArrivalAt returns the course's arrival time at stop and whether the
// course serves that stop at all.
func (c *SingleCourse) ArrivalAt(stop StopID) (int, bool) {
	t, ok := c.Arrival[stop]
	return t, ok
}

// FirstStopDeparture returns the course's arrival time at its variant's
// first stop, or 0 if the course does not serve that stop.
func (c *SingleCourse) FirstStopDeparture() int {
	if len(c.Variant.Stops) == 0 {
		return 0
	}
	t, ok := c.Arrival[c.Variant.Stops[0]]
	if !ok {
		return 0
	}
	return t
}

// StepKind tags a NavStep.
type StepKind int

const (
	StepStart StepKind = iota
	StepWalk
	StepBoard
)

// NavStep is one leg of an emitted route, and also the unit path
// reconstruction walks backwards through (§4.5.4).
type NavStep struct {
	Kind      StepKind
	Start     StopID
	End       StopID
	TimeStart int // seconds since midnight; may exceed 86400 past midnight
	TimeEnd   int
	VariantID string // only set when Kind == StepBoard
	CourseID  string // only set when Kind == StepBoard
}
