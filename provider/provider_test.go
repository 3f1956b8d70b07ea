package provider

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	xearthlayer "github.com/xearthlayer/xearthlayer"
)

func TestXYZFetch(t *testing.T) {
	want := bytes.Repeat([]byte{0xFF}, 16)
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(want)
	}))
	defer svr.Close()

	p := NewXYZ(XYZOptions{
		URLTemplate: svr.URL + "/{z}/{x}/{y}.jpg",
		MaxZoomVal:  19,
		Timeout:     5 * time.Second,
	})
	chunk := xearthlayer.ChunkCoord{Tile: xearthlayer.TileCoord{Row: 100, Col: 200, Zoom: 15}, ChunkRow: 2, ChunkCol: 3}
	got, err := p.Fetch(context.Background(), chunk)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestXYZFetchUnsupportedZoom(t *testing.T) {
	p := NewXYZ(XYZOptions{URLTemplate: "http://example.invalid/{z}/{x}/{y}.jpg", MaxZoomVal: 10})
	chunk := xearthlayer.ChunkCoord{Tile: xearthlayer.TileCoord{Row: 1, Col: 1, Zoom: 15}}
	_, err := p.Fetch(context.Background(), chunk)
	if xearthlayer.KindOf(err) != xearthlayer.KindPermanent {
		t.Fatalf("want KindPermanent, got %v (%v)", xearthlayer.KindOf(err), err)
	}
}

func TestXYZFetchServerError(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer svr.Close()

	p := NewXYZ(XYZOptions{URLTemplate: svr.URL + "/{z}/{x}/{y}.jpg", MaxZoomVal: 19, Timeout: 5 * time.Second})
	chunk := xearthlayer.ChunkCoord{Tile: xearthlayer.TileCoord{Row: 1, Col: 1, Zoom: 10}}
	_, err := p.Fetch(context.Background(), chunk)
	if xearthlayer.KindOf(err) != xearthlayer.KindTransient {
		t.Fatalf("want KindTransient, got %v (%v)", xearthlayer.KindOf(err), err)
	}
}

func TestQuadKey(t *testing.T) {
	// Zoom 1: top-left quadrant is "0", top-right "1", bottom-left "2", bottom-right "3".
	cases := []struct {
		row, col uint32
		zoom     int
		want     string
	}{
		{0, 0, 1, "0"},
		{0, 1, 1, "1"},
		{1, 0, 1, "2"},
		{1, 1, 1, "3"},
	}
	for _, c := range cases {
		if got := quadKey(c.row, c.col, c.zoom); got != c.want {
			t.Errorf("quadKey(%d,%d,%d) = %q, want %q", c.row, c.col, c.zoom, got, c.want)
		}
	}
}
