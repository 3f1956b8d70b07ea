package cache

import (
	"context"
	"testing"
)

func TestMemorySetGet(t *testing.T) {
	m := NewMemory(1 << 20)
	ctx := context.Background()
	if err := m.Set(ctx, "tile:15:100:200", []byte("hello")); err != nil {
		t.Fatal(err)
	}
	got, ok, err := m.Get(ctx, "tile:15:100:200")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(got) != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}

func TestMemoryEviction(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10)
	m.Set(ctx, "a", make([]byte, 5))
	m.Set(ctx, "b", make([]byte, 5))
	// Both fit exactly; adding a third must evict the LRU entry ("a").
	m.Set(ctx, "c", make([]byte, 5))
	if m.SizeBytes() > 10 {
		t.Fatalf("size %d exceeds max", m.SizeBytes())
	}
	if _, ok, _ := m.Get(ctx, "a"); ok {
		t.Error("expected \"a\" to have been evicted")
	}
	if _, ok, _ := m.Get(ctx, "c"); !ok {
		t.Error("expected \"c\" to still be present")
	}
}

func TestMemorySetMaxSizeShrinks(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(1 << 20)
	for i := 0; i < 10; i++ {
		m.Set(ctx, string(rune('a'+i)), make([]byte, 100))
	}
	m.SetMaxSize(250)
	if got := m.SizeBytes(); got > 250 {
		t.Fatalf("size %d exceeds new max 250", got)
	}
}

func TestMemoryShutdownRejectsSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(1 << 20)
	m.Shutdown()
	if err := m.Set(ctx, "k", []byte("v")); err == nil {
		t.Fatal("expected ErrShuttingDown")
	}
}
