// Package geo implements the great-circle distance primitive the router's
// heuristic and walking-edge costs depend on. The formula follows the
// teacher's astar.go haversineDistance and map_router's geo.Haversine
// (both agree on radius and the standard haversine form); this version adds
// a bounded memoisation cache since the search calls it on every expansion.
package geo

import (
	"math"

	"github.com/antigravity/transitcore/internal/lru"
)

// EarthRadiusMetres is the sphere radius used by the great-circle formula.
const EarthRadiusMetres = 6371000.0

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64
	Lon float64
}

type pairKey struct {
	lat1, lon1, lat2, lon2 float64
}

// Distance computes the great-circle distance between p and q in metres.
// It is pure, non-negative, symmetric, and zero for p == q.
func Distance(p, q Point) float64 {
	if p.Lat == q.Lat && p.Lon == q.Lon {
		return 0
	}
	return haversine(p.Lat, p.Lon, q.Lat, q.Lon)
}

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMetres * c
}

// MemoCacheCapacity is the reference bound from §4.1: 2,000 entries.
const MemoCacheCapacity = 2000

// MemoDistance wraps Distance with a bounded LRU cache keyed by the raw
// coordinate quadruple. It is not safe for concurrent use without external
// synchronisation, matching the router's single-threaded-per-query model.
type MemoDistance struct {
	cache *lru.Cache[pairKey, float64]
}

// NewMemoDistance returns a MemoDistance backed by a cache of the reference
// capacity (2,000 entries).
func NewMemoDistance() *MemoDistance {
	return &MemoDistance{cache: lru.New[pairKey, float64](MemoCacheCapacity)}
}

// Distance returns the great-circle distance between p and q, memoised on
// the exact coordinate pair in either order.
func (m *MemoDistance) Distance(p, q Point) float64 {
	if p.Lat == q.Lat && p.Lon == q.Lon {
		return 0
	}
	key := pairKey{p.Lat, p.Lon, q.Lat, q.Lon}
	if d, ok := m.cache.Get(key); ok {
		return d
	}
	rev := pairKey{q.Lat, q.Lon, p.Lat, p.Lon}
	if d, ok := m.cache.Get(rev); ok {
		return d
	}
	d := haversine(p.Lat, p.Lon, q.Lat, q.Lon)
	m.cache.Put(key, d)
	return d
}
