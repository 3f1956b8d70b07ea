package prefetch

import (
	"math"
	"sort"

	xearthlayer "github.com/xearthlayer/xearthlayer"
)

// Strategy produces an ordered (closest-first) candidate tile list for one
// prefetch cycle, before cache filtering and the cycle's max_tiles_per_cycle
// bound are applied.
type Strategy interface {
	Plan(s AircraftState) []xearthlayer.TileCoord
}

// lonLatToTile converts a lon/lat pair to the Web-Mercator tile containing
// it at the given zoom, using the standard slippy-map projection.
func lonLatToTile(lon, lat float64, zoom uint8) (col, row uint32) {
	n := math.Exp2(float64(zoom))
	col = uint32(math.Floor((lon + 180.0) / 360.0 * n))
	latRad := lat * math.Pi / 180.0
	row = uint32(math.Floor((1.0 - math.Asinh(math.Tan(latRad))/math.Pi) / 2.0 * n))
	return col, row
}

// tilesForDSF enumerates the DDS TileCoords (at zoom) covering the 1x1
// degree DSF cell whose southwest corner is (dsfLat, dsfLon).
func tilesForDSF(dsfLat, dsfLon int, zoom uint8) []xearthlayer.TileCoord {
	colNW, rowNW := lonLatToTile(float64(dsfLon), float64(dsfLat+1), zoom)
	colSE, rowSE := lonLatToTile(float64(dsfLon+1), float64(dsfLat), zoom)

	minCol, maxCol := minMax(colNW, colSE)
	minRow, maxRow := minMax(rowNW, rowSE)

	var out []xearthlayer.TileCoord
	for r := minRow; r <= maxRow; r++ {
		for c := minCol; c <= maxCol; c++ {
			t := xearthlayer.TileCoord{Row: r, Col: c, Zoom: zoom}
			if t.Valid() {
				out = append(out, t)
			}
		}
	}
	return out
}

func minMax(a, b uint32) (uint32, uint32) {
	if a < b {
		return a, b
	}
	return b, a
}

// GroundStrategy prefetches a (2N+1)x(2N+1) square of DDS tiles around the
// aircraft's current position at the terrain zoom.
type GroundStrategy struct {
	Zoom     uint8
	RingSize int // N: the ring extends N tiles in every direction from center
}

func (g GroundStrategy) Plan(s AircraftState) []xearthlayer.TileCoord {
	n := g.RingSize
	if n <= 0 {
		n = 3
	}
	centerCol, centerRow := lonLatToTile(s.Lon, s.Lat, g.Zoom)

	type candidate struct {
		tile xearthlayer.TileCoord
		dist int
	}
	var cands []candidate
	for dr := -n; dr <= n; dr++ {
		for dc := -n; dc <= n; dc++ {
			r := int64(centerRow) + int64(dr)
			c := int64(centerCol) + int64(dc)
			if r < 0 || c < 0 {
				continue
			}
			t := xearthlayer.TileCoord{Row: uint32(r), Col: uint32(c), Zoom: g.Zoom}
			if !t.Valid() {
				continue
			}
			cands = append(cands, candidate{tile: t, dist: dr*dr + dc*dc})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })

	out := make([]xearthlayer.TileCoord, len(cands))
	for i, c := range cands {
		out[i] = c.tile
	}
	return out
}

// CruiseStrategy prefetches one or two DSF-tile bands ahead of the current
// track, enumerating the DDS tiles contained in each DSF cell at the
// configured zoom. Cardinal tracks (within CardinalToleranceDeg of a
// compass axis) get one perpendicular band; diagonal tracks get both a lat
// band and a lon band, covering the L-shaped region either diagonal step
// could lead into.
type CruiseStrategy struct {
	Zoom                  uint8
	AheadCells            int // DSF cells ahead along the track
	BandHalfWidthCells    int // DSF cells on each side of the track line
	CardinalToleranceDeg  float64
}

func (c CruiseStrategy) Plan(s AircraftState) []xearthlayer.TileCoord {
	ahead := c.AheadCells
	if ahead <= 0 {
		ahead = 5
	}
	halfWidth := c.BandHalfWidthCells
	if halfWidth < 0 {
		halfWidth = 1
	}
	tol := c.CardinalToleranceDeg
	if tol <= 0 {
		tol = 15
	}

	dLat, dLon := stepVector(s.TrackDeg)
	baseLat, baseLon := int(math.Floor(s.Lat)), int(math.Floor(s.Lon))

	var dsfCells [][2]int
	if cardinal(s.TrackDeg, tol) {
		dsfCells = band(baseLat, baseLon, dLat, dLon, ahead, halfWidth)
	} else {
		latOnly := band(baseLat, baseLon, dLat, 0, ahead, halfWidth)
		lonOnly := band(baseLat, baseLon, 0, dLon, ahead, halfWidth)
		dsfCells = append(dsfCells, latOnly...)
		dsfCells = append(dsfCells, lonOnly...)
	}

	seen := make(map[xearthlayer.TileCoord]bool)
	var out []xearthlayer.TileCoord
	for _, cell := range dsfCells {
		for _, t := range tilesForDSF(cell[0], cell[1], c.Zoom) {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

// stepVector rounds a track in degrees to a unit step in {-1,0,1} x {-1,0,1}
// on the lat/lon grid (0 deg = north, clockwise).
func stepVector(trackDeg float64) (dLat, dLon int) {
	rad := trackDeg * math.Pi / 180.0
	dLat = signStep(math.Cos(rad))
	dLon = signStep(math.Sin(rad))
	return dLat, dLon
}

func signStep(v float64) int {
	const deadzone = 0.3826 // sin(22.5deg): below this, treat as "not this axis"
	switch {
	case v > deadzone:
		return 1
	case v < -deadzone:
		return -1
	default:
		return 0
	}
}

// cardinal reports whether trackDeg lies within tol of a compass axis
// (0/90/180/270).
func cardinal(trackDeg, tol float64) bool {
	norm := math.Mod(trackDeg, 90)
	if norm < 0 {
		norm += 90
	}
	return norm <= tol || norm >= 90-tol
}

// band enumerates DSF cells stepping (ahead) cells from (baseLat,baseLon)
// along (dLat,dLon), each with a perpendicular half-width.
func band(baseLat, baseLon, dLat, dLon, ahead, halfWidth int) [][2]int {
	var out [][2]int
	perpLat, perpLon := -dLon, dLat // perpendicular to the step direction
	for step := 1; step <= ahead; step++ {
		centerLat := baseLat + dLat*step
		centerLon := baseLon + dLon*step
		for w := -halfWidth; w <= halfWidth; w++ {
			out = append(out, [2]int{centerLat + perpLat*w, centerLon + perpLon*w})
		}
	}
	return out
}
