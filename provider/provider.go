// Package provider implements the Chunk Provider: fetching a single JPEG
// sub-tile over HTTP from a configurable imagery source.
package provider

import (
	"context"
	"fmt"

	xearthlayer "github.com/xearthlayer/xearthlayer"
)

// Fetcher fetches a single chunk's encoded JPEG bytes. Implementations are
// stateless per call; construction parameters (base URL, API key, max zoom)
// are fixed at construction time.
type Fetcher interface {
	Fetch(ctx context.Context, chunk xearthlayer.ChunkCoord) ([]byte, error)
	// MaxZoom is the provider's configured ceiling for ChunkCoord.ProviderZoom().
	MaxZoom() int
}

// checkZoom validates chunk.ProviderZoom() <= maxZoom, returning a
// Permanent UnsupportedZoom error otherwise.
func checkZoom(chunk xearthlayer.ChunkCoord, maxZoom int) error {
	if z := chunk.ProviderZoom(); z > maxZoom {
		return xearthlayer.NewError("provider.fetch", xearthlayer.KindPermanent,
			fmt.Errorf("%w: zoom %d exceeds max %d", xearthlayer.ErrUnsupportedZoom, z, maxZoom))
	}
	return nil
}
