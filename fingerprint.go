package xearthlayer

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// EncoderConfig is the slice of texture-encoder configuration that
// participates in a fingerprint: two requests for the same tile under
// different encoder settings must not share a coalescer entry. The tile
// cache key (TileCoord.CacheKey) does not include these settings.
type EncoderConfig struct {
	Format       string // "BC1" or "BC3"
	MipmapCount  int
}

// Fingerprint derives the coalescer identity for a tile: blake2b-128 of the
// tile coordinate plus the encoder configuration, hex-encoded.
func Fingerprint(tile TileCoord, cfg EncoderConfig) string {
	h, err := blake2b.New(16, nil)
	if err != nil {
		// blake2b.New only errors on an invalid key or size; both are
		// compile-time constants here.
		panic(fmt.Errorf("fingerprint: %w", err))
	}
	var buf [9]byte
	binary.BigEndian.PutUint32(buf[0:4], tile.Row)
	binary.BigEndian.PutUint32(buf[4:8], tile.Col)
	buf[8] = tile.Zoom
	h.Write(buf[:])
	h.Write([]byte(cfg.Format))
	var mip [4]byte
	binary.BigEndian.PutUint32(mip[:], uint32(cfg.MipmapCount))
	h.Write(mip[:])
	return hex.EncodeToString(h.Sum(nil))
}
