package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	xearthlayer "github.com/xearthlayer/xearthlayer"
)

// Memory is the tile cache: a value-weighted LRU. No generic weighted-LRU
// library exists in the example pack (internal/cache.Live is a
// sync.Map-plus-weak-pointer cache, not an LRU with eviction); built on
// container/list + sync.Mutex, matching that cache's level of
// sophistication rather than a lock-free ring of our own invention.
type Memory struct {
	mu       sync.Mutex
	ll       *list.List // front = most recently used
	items    map[string]*list.Element
	size     int64
	maxSize  atomic.Int64
	shutdown atomic.Bool
}

type memEntry struct {
	key   string
	value []byte
}

// NewMemory constructs a Memory cache with the given byte-size ceiling.
func NewMemory(maxSize int64) *Memory {
	m := &Memory{
		ll:    list.New(),
		items: make(map[string]*list.Element),
	}
	m.maxSize.Store(maxSize)
	return m
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	m.ll.MoveToFront(el)
	e := el.Value.(*memEntry)
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	if m.shutdown.Load() {
		return xearthlayer.ErrShuttingDown
	}
	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.items[key]; ok {
		old := el.Value.(*memEntry)
		m.size += int64(len(stored)) - int64(len(old.value))
		old.value = stored
		m.ll.MoveToFront(el)
	} else {
		el := m.ll.PushFront(&memEntry{key: key, value: stored})
		m.items[key] = el
		m.size += int64(len(stored))
	}
	m.evictLocked()
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(key)
	return nil
}

func (m *Memory) Contains(ctx context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[key]
	return ok
}

func (m *Memory) GC(ctx context.Context) (GCResult, error) {
	start := time.Now()
	m.mu.Lock()
	removed, freed := m.evictLocked()
	m.mu.Unlock()
	return GCResult{EntriesRemoved: removed, BytesFreed: freed, Duration: time.Since(start)}, nil
}

func (m *Memory) SetMaxSize(n int64) {
	m.maxSize.Store(n)
	m.mu.Lock()
	m.evictLocked()
	m.mu.Unlock()
}

func (m *Memory) SizeBytes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}

func (m *Memory) Shutdown() { m.shutdown.Store(true) }

// removeLocked removes key; caller holds m.mu.
func (m *Memory) removeLocked(key string) {
	el, ok := m.items[key]
	if !ok {
		return
	}
	e := el.Value.(*memEntry)
	m.size -= int64(len(e.value))
	m.ll.Remove(el)
	delete(m.items, key)
}

// evictLocked removes oldest entries until size <= maxSize; caller holds m.mu.
func (m *Memory) evictLocked() (removed int, freed int64) {
	max := m.maxSize.Load()
	for m.size > max {
		back := m.ll.Back()
		if back == nil {
			break
		}
		e := back.Value.(*memEntry)
		m.size -= int64(len(e.value))
		freed += int64(len(e.value))
		m.ll.Remove(back)
		delete(m.items, e.key)
		removed++
	}
	return removed, freed
}
