// Package orchestrator implements the Tile Orchestrator: downloading the
// 256 chunks of one texture tile in parallel and assembling them into a
// single 4096x4096 RGBA image.
package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"sync/atomic"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	xearthlayer "github.com/xearthlayer/xearthlayer"
	"github.com/xearthlayer/xearthlayer/cache"
	"github.com/xearthlayer/xearthlayer/provider"
)

// chunkPixels is the edge length of one provider chunk and the number of
// chunks per tile edge (16x16 = 256 chunks of 256x256 pixels make a
// 4096x4096 tile).
const (
	chunkPixels     = 256
	chunksPerEdge   = 16
	tilePixels      = chunkPixels * chunksPerEdge
)

// FailurePolicyMode selects how missing chunks are tolerated.
type FailurePolicyMode int

const (
	// RequireAll fails the tile unless every chunk produced pixels.
	RequireAll FailurePolicyMode = iota
	// MinSuccessful tolerates up to (256 - N) missing chunks, leaving a
	// neutral fill in their place. Never the default. The daemon's
	// DDS-generate job always passes RequireAll and does not read the job's
	// error policy; MinSuccessful applies only to callers that pass it to
	// Assemble directly.
	MinSuccessful
)

// FailurePolicy configures tolerance for partial chunk failure.
type FailurePolicy struct {
	Mode          FailurePolicyMode
	MinSuccessful int
}

// Options configures one Assemble call.
type Options struct {
	// FanOut bounds concurrent chunk fetches; default 32.
	FanOut int
	// Deadline is the hard per-tile generation deadline.
	Deadline time.Duration
	Policy   FailurePolicy
}

func (o Options) fanOut() int {
	if o.FanOut <= 0 {
		return 32
	}
	return o.FanOut
}

// Orchestrator downloads and assembles one tile's imagery.
type Orchestrator struct {
	fetcher provider.Fetcher
	chunks  cache.Cache
}

// New builds an Orchestrator over the given chunk fetcher and chunk cache.
func New(fetcher provider.Fetcher, chunks cache.Cache) *Orchestrator {
	return &Orchestrator{fetcher: fetcher, chunks: chunks}
}

// neutralFill is the pixel color used for a chunk left unfilled under
// MinSuccessful, a mid-gray that is visually distinguishable from any real
// imagery without being jarring.
var neutralFill = image.NewUniform(neutralGray{})

type neutralGray struct{}

func (neutralGray) RGBA() (r, g, b, a uint32) { return 0x8080, 0x8080, 0x8080, 0xffff }

// Assemble downloads the 256 chunks of tile at zoom+4 and blits each into
// its 256x256 slot of a 4096x4096 RGBA image, bounded by opts.FanOut
// concurrent fetches (errgroup + semaphore, the indexer/layerscanner.Scan
// shape).
func (o *Orchestrator) Assemble(ctx context.Context, tile xearthlayer.TileCoord, opts Options) (*image.RGBA, error) {
	if opts.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Deadline)
		defer cancel()
	}

	dst := image.NewRGBA(image.Rect(0, 0, tilePixels, tilePixels))

	sem := semaphore.NewWeighted(int64(opts.fanOut()))
	g, gctx := errgroup.WithContext(ctx)

	var downloaded atomic.Int32
	total := chunksPerEdge * chunksPerEdge

	for cr := 0; cr < chunksPerEdge; cr++ {
		for cc := 0; cc < chunksPerEdge; cc++ {
			chunk := xearthlayer.ChunkCoord{Tile: tile, ChunkRow: uint8(cr), ChunkCol: uint8(cc)}
			g.Go(func() error {
				if err := sem.Acquire(gctx, 1); err != nil {
					return err
				}
				defer sem.Release(1)

				img, err := o.fetchChunk(gctx, chunk)
				if err != nil {
					if opts.Policy.Mode == MinSuccessful {
						blit(dst, chunk, neutralFill, image.Point{})
						return nil
					}
					return err
				}
				downloaded.Add(1)
				blit(dst, chunk, img, img.Bounds().Min)
				return nil
			})
		}
	}

	err := g.Wait()
	if err != nil {
		if ctx.Err() != nil {
			return nil, xearthlayer.NewError("orchestrator.assemble", xearthlayer.KindTransient,
				&xearthlayer.TimeoutError{Downloaded: int(downloaded.Load()), Total: total})
		}
		return nil, err
	}

	if opts.Policy.Mode == RequireAll && int(downloaded.Load()) != total {
		return nil, xearthlayer.NewError("orchestrator.assemble", xearthlayer.KindCorrupt,
			fmt.Errorf("only %d/%d chunks produced pixels", downloaded.Load(), total))
	}
	if opts.Policy.Mode == MinSuccessful && int(downloaded.Load()) < opts.Policy.MinSuccessful {
		return nil, xearthlayer.NewError("orchestrator.assemble", xearthlayer.KindCorrupt,
			fmt.Errorf("only %d/%d chunks produced pixels, need >= %d", downloaded.Load(), total, opts.Policy.MinSuccessful))
	}

	return dst, nil
}

// fetchChunk consults the chunk cache, falling back to the provider on a
// miss and writing back on success.
func (o *Orchestrator) fetchChunk(ctx context.Context, chunk xearthlayer.ChunkCoord) (image.Image, error) {
	key := chunk.CacheKey()
	if o.chunks != nil {
		if data, ok, err := o.chunks.Get(ctx, key); err == nil && ok {
			img, decErr := jpeg.Decode(bytes.NewReader(data))
			if decErr == nil {
				return img, nil
			}
			// Corrupt cache entry: treat as a miss and re-fetch.
		}
	}

	data, err := o.fetcher.Fetch(ctx, chunk)
	if err != nil {
		return nil, err
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, xearthlayer.NewError("orchestrator.decode", xearthlayer.KindCorrupt, err)
	}
	if o.chunks != nil {
		_ = o.chunks.Set(ctx, key, data)
	}
	return img, nil
}

// blit copies src (expected 256x256, read starting at sp) into dst at
// chunk's grid offset.
func blit(dst *image.RGBA, chunk xearthlayer.ChunkCoord, src image.Image, sp image.Point) {
	x0 := int(chunk.ChunkCol) * chunkPixels
	y0 := int(chunk.ChunkRow) * chunkPixels
	rect := image.Rect(x0, y0, x0+chunkPixels, y0+chunkPixels)
	draw.Draw(dst, rect, src, sp, draw.Src)
}
