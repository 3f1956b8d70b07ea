package fuseadapter

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sys/unix"

	xearthlayer "github.com/xearthlayer/xearthlayer"
	"github.com/xearthlayer/xearthlayer/cache"
	"github.com/xearthlayer/xearthlayer/coalescer"
	"github.com/xearthlayer/xearthlayer/daemon"
	"github.com/xearthlayer/xearthlayer/encoder"
	execpkg "github.com/xearthlayer/xearthlayer/executor"
	"github.com/xearthlayer/xearthlayer/orchestrator"
)

// TestParseTerrainNameMatchesScenario checks the reference example:
// "93248_139168_BI18.dds" must parse to {row:5828, col:8698, zoom:14}.
func TestParseTerrainNameMatchesScenario(t *testing.T) {
	tile, err := ParseTerrainName("93248_139168_BI18.dds")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := xearthlayer.TileCoord{Row: 5828, Col: 8698, Zoom: 14}
	if !cmp.Equal(tile, want) {
		t.Error(cmp.Diff(tile, want))
	}
}

func TestParseTerrainNameMalformedNeverPanics(t *testing.T) {
	cases := []string{
		"",
		"not_a_dds_file.txt",
		"abc_def_BI18.dds",
		"16_16_18.dds",     // missing tag letters
		"15_16_BI18.dds",   // row not a multiple of 16
		"16_16_BI2.dds",    // provider zoom below 4
		"../../etc/passwd",
	}
	for _, name := range cases {
		if _, err := ParseTerrainName(name); err == nil {
			t.Errorf("expected an error for malformed name %q", name)
		} else if fe, ok := err.(*Error); !ok || fe.Errno() != unix.ENOENT {
			t.Errorf("expected ENOENT for %q, got %v", name, err)
		}
	}
}

func TestParseDDSPathStripsDirectory(t *testing.T) {
	tile, err := ParseDDSPath("/mnt/xplane/textures/93248_139168_BI18.dds")
	if err != nil {
		t.Fatal(err)
	}
	if tile.Zoom != 14 {
		t.Errorf("expected zoom 14, got %d", tile.Zoom)
	}
}

type solidFetcher struct{ calls atomic.Int64 }

func (f *solidFetcher) MaxZoom() int { return 24 }
func (f *solidFetcher) Fetch(ctx context.Context, chunk xearthlayer.ChunkCoord) ([]byte, error) {
	f.calls.Add(1)
	img := image.NewRGBA(image.Rect(0, 0, 256, 256))
	c := color.RGBA{R: 1, G: 2, B: 3, A: 255}
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

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	fetcher := &solidFetcher{}
	chunkCache := cache.NewMemory(64 << 20)
	tileCache := cache.NewMemory(64 << 20)
	orch := orchestrator.New(fetcher, chunkCache)
	enc := encoder.New(encoder.Config{Format: encoder.BC1, MipmapCount: 5})
	exec := execpkg.New(prometheus.NewRegistry(), execpkg.Options{Workers: 4, NetworkPermits: 32, DiskIOPermits: 8, CPUPermits: 4})
	coal := coalescer.New(exec.NoteCoalesced)
	d := daemon.New(daemon.Options{Workers: 4}, exec, coal, orch, enc, tileCache)
	t.Cleanup(func() {
		d.Shutdown()
		exec.Shutdown()
	})
	return New(d, enc, xearthlayer.EncoderConfig{Format: "BC1", MipmapCount: 5})
}

func TestGetAttrDoesNotBlockOnProduction(t *testing.T) {
	a := newTestAdapter(t)
	attr, err := a.GetAttr(context.Background(), "93248_139168_BI18.dds")
	if err != nil {
		t.Fatal(err)
	}
	if attr.Size != 11_174_016 {
		t.Errorf("expected synthesized size 11174016, got %d", attr.Size)
	}
}

func TestOpenReadReleaseRoundTrip(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	fh, err := a.Open(ctx, "93248_139168_BI18.dds")
	if err != nil {
		t.Fatal(err)
	}

	first, err := a.Read(ctx, fh, 0, 128)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 128 {
		t.Fatalf("expected 128 header bytes, got %d", len(first))
	}

	second, err := a.Read(ctx, fh, 128, 256)
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 256 {
		t.Errorf("expected 256 bytes from the second range read, got %d", len(second))
	}

	if err := a.Release(ctx, fh); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Read(ctx, fh, 0, 16); err == nil {
		t.Error("expected an error reading a released handle")
	}
}

func TestOpenRejectsMalformedPath(t *testing.T) {
	a := newTestAdapter(t)
	if _, err := a.Open(context.Background(), "not-a-dds-file"); err == nil {
		t.Error("expected an error opening a non-DDS path")
	}
}
