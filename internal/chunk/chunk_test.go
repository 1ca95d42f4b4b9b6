package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	for lat := 0; lat < 32; lat++ {
		for lng := 0; lng < 32; lng++ {
			for tm := 0; tm < 32; tm++ {
				id := Pack(lat, lng, tm)
				gotLat, gotLng, gotTime := Unpack(id)
				assert.Equal(t, lat, gotLat)
				assert.Equal(t, lng, gotLng)
				assert.Equal(t, tm, gotTime)
			}
		}
	}
}

func TestNextChronologicalWraps(t *testing.T) {
	id := Pack(4, 1, 31)
	next := NextChronological(id)
	lat, lng, tm := Unpack(next)
	assert.Equal(t, 4, lat)
	assert.Equal(t, 1, lng)
	assert.Equal(t, 0, tm)
}

func TestNextChronologicalOnlyAdvancesTime(t *testing.T) {
	id := Pack(10, 20, 5)
	next := NextChronological(id)
	lat, lng, tm := Unpack(next)
	assert.Equal(t, 10, lat)
	assert.Equal(t, 20, lng)
	assert.Equal(t, 6, tm)
}

// S6: chunk_of((52, 20.5), 15h) = pack(4, 1, t_c).
func TestOfBitLayout(t *testing.T) {
	id := Of(52, 20.5, 15*3600)
	lat, lng, _ := Unpack(id)
	assert.Equal(t, 4, lat)
	assert.Equal(t, 1, lng)
}

func TestCellBoundsRoundTripsThroughOf(t *testing.T) {
	latChunk, lngChunk := 4, 1
	latMin, latMax, lonMin, lonMax := CellBounds(latChunk, lngChunk)
	midLat := (latMin + latMax) / 2
	midLon := (lonMin + lonMax) / 2
	id := Of(midLat, midLon, 0)
	gotLat, gotLng, _ := Unpack(id)
	assert.Equal(t, latChunk, gotLat)
	assert.Equal(t, lngChunk, gotLng)
}

func TestTimeBoundsMinutesRoundTrip(t *testing.T) {
	timeChunk := 10
	minM, maxM := TimeBoundsMinutes(timeChunk)
	mid := (minM + maxM) / 2
	id := Of(originLat, originLon, mid*60)
	_, _, gotTime := Unpack(id)
	assert.Equal(t, timeChunk, gotTime)
}

func TestSpatialCellDropsTime(t *testing.T) {
	a := Pack(7, 9, 0)
	b := Pack(7, 9, 31)
	la, ln := SpatialCell(a)
	lb, ln2 := SpatialCell(b)
	assert.Equal(t, la, lb)
	assert.Equal(t, ln, ln2)
}
