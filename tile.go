// Package xearthlayer implements the on-demand ortho-imagery tile production
// engine that backs the xearthlayer FUSE mount: request coalescing, a
// priority job executor, a multi-tier cache, an adaptive prefetch
// coordinator, and the DDS texture encoder.
package xearthlayer

import "fmt"

// TileCoord identifies one 4096x4096 DDS texture in the Web-Mercator tile
// scheme. Row and col must be less than 2^Zoom.
type TileCoord struct {
	Row  uint32
	Col  uint32
	Zoom uint8
}

// Valid reports whether t satisfies the row,col < 2^zoom invariant.
func (t TileCoord) Valid() bool {
	if t.Zoom >= 32 {
		return false
	}
	limit := uint32(1) << t.Zoom
	return t.Row < limit && t.Col < limit
}

func (t TileCoord) String() string {
	return fmt.Sprintf("%d:%d:%d", t.Zoom, t.Row, t.Col)
}

// CacheKey is the tile cache key, "tile:{z}:{r}:{c}".
func (t TileCoord) CacheKey() string {
	return fmt.Sprintf("tile:%d:%d:%d", t.Zoom, t.Row, t.Col)
}

// ChunkCoord identifies one 256x256 JPEG sub-tile within a TileCoord. The
// provider is queried at zoom+4 using (row*16+ChunkRow, col*16+ChunkCol).
type ChunkCoord struct {
	Tile     TileCoord
	ChunkRow uint8 // 0..16
	ChunkCol uint8 // 0..16
}

// Valid reports whether the chunk offsets are within the 16x16 grid and the
// parent tile is itself valid.
func (c ChunkCoord) Valid() bool {
	return c.Tile.Valid() && c.ChunkRow < 16 && c.ChunkCol < 16
}

// ProviderZoom is the zoom level at which the provider is queried for this
// chunk: the tile's zoom plus four levels (16x16 = 2^4 subdivision).
func (c ChunkCoord) ProviderZoom() int {
	return int(c.Tile.Zoom) + 4
}

// ProviderRow is the provider-space row for this chunk.
func (c ChunkCoord) ProviderRow() uint32 {
	return c.Tile.Row*16 + uint32(c.ChunkRow)
}

// ProviderCol is the provider-space col for this chunk.
func (c ChunkCoord) ProviderCol() uint32 {
	return c.Tile.Col*16 + uint32(c.ChunkCol)
}

// CacheKey is the chunk cache key,
// "chunk:{z}:{tile_row}:{tile_col}:{chunk_row}:{chunk_col}".
func (c ChunkCoord) CacheKey() string {
	return fmt.Sprintf("chunk:%d:%d:%d:%d:%d", c.Tile.Zoom, c.Tile.Row, c.Tile.Col, c.ChunkRow, c.ChunkCol)
}

func (c ChunkCoord) String() string {
	return fmt.Sprintf("%s/%d_%d", c.Tile, c.ChunkRow, c.ChunkCol)
}
