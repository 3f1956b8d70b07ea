package fuseadapter

import (
	"path"
	"regexp"
	"strconv"

	xearthlayer "github.com/xearthlayer/xearthlayer"
)

// ddsNamePattern matches the X-Plane ortho terrain filename grammar:
// "{row}_{col}_{tag}{zoom}.dds", where row/col are the chunk-space
// coordinates of the tile's first (0,0) chunk at the provider zoom
// (tile_zoom+4), and tag is a short provider/type code (e.g. "BI").
var ddsNamePattern = regexp.MustCompile(`^(\d+)_(\d+)_[A-Za-z]+(\d+)\.dds$`)

// ParseDDSPath extracts the TileCoord a mounted .dds path refers to. It
// never panics: any malformed input returns a NotFound (ENOENT) error, per
// §4.I's pass-through/ENOENT contract for paths that don't parse.
func ParseDDSPath(p string) (xearthlayer.TileCoord, error) {
	return ParseTerrainName(path.Base(p))
}

// ParseTerrainName parses just the filename component, without any
// directory prefix.
func ParseTerrainName(name string) (xearthlayer.TileCoord, error) {
	m := ddsNamePattern.FindStringSubmatch(name)
	if m == nil {
		return xearthlayer.TileCoord{}, NotFound("ParseTerrainName")
	}

	chunkRow, err1 := strconv.ParseUint(m[1], 10, 32)
	chunkCol, err2 := strconv.ParseUint(m[2], 10, 32)
	providerZoom, err3 := strconv.ParseUint(m[3], 10, 8)
	if err1 != nil || err2 != nil || err3 != nil {
		return xearthlayer.TileCoord{}, NotFound("ParseTerrainName")
	}
	if providerZoom < 4 || chunkRow%16 != 0 || chunkCol%16 != 0 {
		return xearthlayer.TileCoord{}, NotFound("ParseTerrainName")
	}

	t := xearthlayer.TileCoord{
		Row:  uint32(chunkRow / 16),
		Col:  uint32(chunkCol / 16),
		Zoom: uint8(providerZoom - 4),
	}
	if !t.Valid() {
		return xearthlayer.TileCoord{}, NotFound("ParseTerrainName")
	}
	return t, nil
}
