package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"sync/atomic"
	"testing"

	"go.uber.org/mock/gomock"

	xearthlayer "github.com/xearthlayer/xearthlayer"
	"github.com/xearthlayer/xearthlayer/cache"
	mock_cache "github.com/xearthlayer/xearthlayer/internal/mock/cache"
	mock_provider "github.com/xearthlayer/xearthlayer/internal/mock/provider"
)

// fakeFetcher returns a solid-color JPEG per chunk; it never fails unless
// failAt matches the chunk's (row,col).
type fakeFetcher struct {
	calls  atomic.Int64
	failAt map[[2]uint8]bool
}

func (f *fakeFetcher) MaxZoom() int { return 24 }

func (f *fakeFetcher) Fetch(ctx context.Context, chunk xearthlayer.ChunkCoord) ([]byte, error) {
	f.calls.Add(1)
	if f.failAt != nil && f.failAt[[2]uint8{chunk.ChunkRow, chunk.ChunkCol}] {
		return nil, errors.New("simulated fetch failure")
	}
	img := image.NewRGBA(image.Rect(0, 0, 256, 256))
	c := color.RGBA{R: chunk.ChunkRow * 10, G: chunk.ChunkCol * 10, B: 50, A: 255}
	for y := 0; y < 256; y++ {
		for x := 0; x < 256; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func TestAssembleProducesFullTile(t *testing.T) {
	f := &fakeFetcher{}
	mem := cache.NewMemory(1 << 30)
	o := New(f, mem)

	tile := xearthlayer.TileCoord{Row: 100, Col: 200, Zoom: 15}
	img, err := o.Assemble(context.Background(), tile, Options{FanOut: 8, Policy: FailurePolicy{Mode: RequireAll}})
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != tilePixels || img.Bounds().Dy() != tilePixels {
		t.Fatalf("assembled image is %dx%d, want %dx%d", img.Bounds().Dx(), img.Bounds().Dy(), tilePixels, tilePixels)
	}
	if f.calls.Load() != 256 {
		t.Errorf("expected 256 fetch calls, got %d", f.calls.Load())
	}

	// Spot check a pixel in the chunk at (row=3, col=5).
	px := img.RGBAAt(5*256+10, 3*256+10)
	if px.R != 30 || px.G != 50 {
		t.Errorf("pixel mismatch at chunk(3,5): got %+v", px)
	}
}

func TestAssembleUsesChunkCache(t *testing.T) {
	f := &fakeFetcher{}
	mem := cache.NewMemory(1 << 30)
	o := New(f, mem)
	tile := xearthlayer.TileCoord{Row: 1, Col: 1, Zoom: 10}

	if _, err := o.Assemble(context.Background(), tile, Options{FanOut: 8}); err != nil {
		t.Fatal(err)
	}
	firstCalls := f.calls.Load()
	if firstCalls != 256 {
		t.Fatalf("expected 256 calls, got %d", firstCalls)
	}

	if _, err := o.Assemble(context.Background(), tile, Options{FanOut: 8}); err != nil {
		t.Fatal(err)
	}
	if f.calls.Load() != firstCalls {
		t.Errorf("second Assemble call should hit the chunk cache and make no new fetches; calls=%d", f.calls.Load())
	}
}

func TestAssembleRequireAllFailsOnMissingChunk(t *testing.T) {
	f := &fakeFetcher{failAt: map[[2]uint8]bool{{0, 0}: true}}
	o := New(f, cache.NewMemory(1<<30))
	tile := xearthlayer.TileCoord{Row: 2, Col: 2, Zoom: 10}

	_, err := o.Assemble(context.Background(), tile, Options{FanOut: 8, Policy: FailurePolicy{Mode: RequireAll}})
	if err == nil {
		t.Fatal("expected failure when a chunk is missing under RequireAll")
	}
}

func TestAssembleMinSuccessfulToleratesMissingChunks(t *testing.T) {
	f := &fakeFetcher{failAt: map[[2]uint8]bool{{0, 0}: true, {1, 1}: true}}
	o := New(f, cache.NewMemory(1<<30))
	tile := xearthlayer.TileCoord{Row: 3, Col: 3, Zoom: 10}

	_, err := o.Assemble(context.Background(), tile, Options{
		FanOut: 8,
		Policy: FailurePolicy{Mode: MinSuccessful, MinSuccessful: 250},
	})
	if err != nil {
		t.Fatalf("expected success under MinSuccessful tolerance, got %v", err)
	}
}

// TestFetchChunkMissThenWriteBack drives a single fetchChunk call against
// gomock expectations: a cache miss must fall through to the provider
// exactly once and the fetched bytes must be written back under the
// chunk's cache key.
func TestFetchChunkMissThenWriteBack(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mock_provider.NewMockFetcher(ctrl)
	chunks := mock_cache.NewMockCache(ctrl)

	chunk := xearthlayer.ChunkCoord{Tile: xearthlayer.TileCoord{Row: 9, Col: 9, Zoom: 11}, ChunkRow: 2, ChunkCol: 3}
	key := chunk.CacheKey()
	data := solidJPEG(color.RGBA{R: 7, G: 8, B: 9, A: 255})

	chunks.EXPECT().Get(gomock.Any(), key).Return(nil, false, nil)
	fetcher.EXPECT().Fetch(gomock.Any(), chunk).Return(data, nil)
	chunks.EXPECT().Set(gomock.Any(), key, data).Return(nil)

	o := New(fetcher, chunks)
	if _, err := o.fetchChunk(context.Background(), chunk); err != nil {
		t.Fatal(err)
	}
}

// TestFetchChunkServesFromCacheWithoutFetching drives fetchChunk with a
// populated cache and asserts the provider is never called.
func TestFetchChunkServesFromCacheWithoutFetching(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mock_provider.NewMockFetcher(ctrl)
	chunks := mock_cache.NewMockCache(ctrl)

	chunk := xearthlayer.ChunkCoord{Tile: xearthlayer.TileCoord{Row: 4, Col: 4, Zoom: 12}, ChunkRow: 0, ChunkCol: 0}
	key := chunk.CacheKey()
	data := solidJPEG(color.RGBA{R: 1, G: 2, B: 3, A: 255})

	chunks.EXPECT().Get(gomock.Any(), key).Return(data, true, nil)
	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).Times(0)

	o := New(fetcher, chunks)
	if _, err := o.fetchChunk(context.Background(), chunk); err != nil {
		t.Fatal(err)
	}
}

func solidJPEG(c color.RGBA) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 256, 256))
	for y := 0; y < 256; y++ {
		for x := 0; x < 256; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
