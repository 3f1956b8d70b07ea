// Package cache implements the Multi-tier Cache: a value-weighted in-memory
// LRU for whole tile DDS textures, and an on-disk, GC'd store for the JPEG
// chunks that compose them. Neither tier is authoritative for correctness —
// misses are always productively served by the caller and read errors are
// demoted to misses.
package cache

import (
	"context"
	"time"
)

// GCResult is the synchronous outcome of one eviction pass.
type GCResult struct {
	EntriesRemoved int
	BytesFreed     int64
	Duration       time.Duration
}

// Cache is the generic key-value contract both tiers satisfy.
// get/put/delete/contains are concurrent-safe and observably linearizable
// per key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Contains(ctx context.Context, key string) bool
	GC(ctx context.Context) (GCResult, error)
	SetMaxSize(n int64)
	SizeBytes() int64
	// Shutdown stops accepting Set calls; in-flight GC finishes.
	Shutdown()
}
