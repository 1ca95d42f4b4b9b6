package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceZeroForSamePoint(t *testing.T) {
	p := Point{Lat: 51.01, Lon: 20.01}
	assert.Zero(t, Distance(p, p))
}

func TestDistanceSymmetric(t *testing.T) {
	p := Point{Lat: 51.00, Lon: 20.00}
	q := Point{Lat: 51.03, Lon: 20.02}
	assert.Equal(t, Distance(p, q), Distance(q, p))
}

func TestDistanceBoundedByHalfCircumference(t *testing.T) {
	p := Point{Lat: 0, Lon: 0}
	q := Point{Lat: 0, Lon: 180}
	d := Distance(p, q)
	max := math.Pi * EarthRadiusMetres
	assert.LessOrEqual(t, d, max+1e-6)
}

func TestMemoDistanceMatchesDirect(t *testing.T) {
	m := NewMemoDistance()
	p := Point{Lat: 51.00, Lon: 20.00}
	q := Point{Lat: 51.02, Lon: 20.015}
	want := Distance(p, q)
	assert.Equal(t, want, m.Distance(p, q))
	// second call should hit the cache and still agree
	assert.Equal(t, want, m.Distance(p, q))
}

func TestMemoDistanceHitsReverseKey(t *testing.T) {
	m := NewMemoDistance()
	p := Point{Lat: 51.00, Lon: 20.00}
	q := Point{Lat: 51.02, Lon: 20.015}
	m.Distance(p, q)
	assert.Equal(t, Distance(p, q), m.Distance(q, p))
}
