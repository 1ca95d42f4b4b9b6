// Package chunk implements the spatiotemporal grid the loader uses to
// bound store queries: a fixed 32x32x32 lattice over the service area and
// the 0-1777 minute schedule window, packed into a single integer id. The
// bit-packing style follows map_router's gridCell/cellKey flat-index
// idiom (pkg/routing/snap.go), generalised from two dimensions to three
// and from a uint64 map key to a dense 15-bit ID.
package chunk

// ID is a 15-bit integer packing (lat_chunk, lng_chunk, time_chunk), each
// in 0..31, as lat<<10 | lng<<5 | time.
type ID int32

const (
	gridSize        = 32
	timeSpanMinutes = 1777.0

	originLat = 51.921869
	originLon = 20.462591
	latSpan   = 0.561141
	lngSpan   = 1.001192
)

// Of packs a (latitude, longitude, seconds-since-midnight) triple into a
// chunk ID. The timetable expresses departures in minutes; the core stores
// times in seconds, so Of divides by 60 before bucketing (§4.3). Coordinates
// and times outside the grid are clamped into 0..31 so the function never
// panics on out-of-range input; callers that care about validity should
// check bounds themselves before calling.
func Of(lat, lon, seconds float64) ID {
	minutes := seconds / 60.0
	latChunk := clampCell(int((lat - originLat) / latSpan * gridSize))
	lngChunk := clampCell(int((lon - originLon) / lngSpan * gridSize))
	timeChunk := clampCell(int(minutes / timeSpanMinutes * gridSize))
	return Pack(latChunk, lngChunk, timeChunk)
}

func clampCell(c int) int {
	if c < 0 {
		return 0
	}
	if c > gridSize-1 {
		return gridSize - 1
	}
	return c
}

// Pack combines three 0..31 cell coordinates into a chunk ID. Behaviour is
// undefined if any coordinate falls outside 0..31 (programmer error, not
// validated here — callers that need clamping should use Of).
func Pack(latChunk, lngChunk, timeChunk int) ID {
	return ID(latChunk<<10 | lngChunk<<5 | timeChunk)
}

// Unpack splits a chunk ID back into its (lat_chunk, lng_chunk, time_chunk)
// components.
func Unpack(c ID) (latChunk, lngChunk, timeChunk int) {
	v := int(c)
	latChunk = (v >> 10) & 0x1f
	lngChunk = (v >> 5) & 0x1f
	timeChunk = v & 0x1f
	return
}

// NextChronological advances only the time component, wrapping modulo 32,
// leaving the spatial cell unchanged — the search uses this to also load
// the next time slice of the same spatial cell.
func NextChronological(c ID) ID {
	return ID(int(c)&^0b11111 | ((int(c) + 1) & 0b11111))
}

// SpatialCell returns the (lat_chunk, lng_chunk) pair a chunk ID belongs
// to, discarding the time component — used by the loader's Q2 walk
// neighbour query which is keyed on spatial cell alone.
func SpatialCell(c ID) (latChunk, lngChunk int) {
	latChunk, lngChunk, _ = Unpack(c)
	return
}

// CellBounds returns the geographic bounding box of a spatial cell, the
// inverse of the latitude/longitude arithmetic in Of. The store adapter
// uses this to scope a broad SQL WHERE clause before refiltering rows by
// exact chunk membership in Go (§6.1 of the expanded spec).
func CellBounds(latChunk, lngChunk int) (latMin, latMax, lonMin, lonMax float64) {
	latMin = originLat + float64(latChunk)*latSpan/gridSize
	latMax = originLat + float64(latChunk+1)*latSpan/gridSize
	lonMin = originLon + float64(lngChunk)*lngSpan/gridSize
	lonMax = originLon + float64(lngChunk+1)*lngSpan/gridSize
	return
}

// TimeBoundsMinutes returns the [min, max) minute range a time chunk
// covers over the 0-1777 minute timetable window.
func TimeBoundsMinutes(timeChunk int) (minMinutes, maxMinutes float64) {
	minMinutes = float64(timeChunk) * timeSpanMinutes / gridSize
	maxMinutes = float64(timeChunk+1) * timeSpanMinutes / gridSize
	return
}
