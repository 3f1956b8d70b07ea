// Package coalescer implements the Request Coalescer: while a tile
// generation job is in flight, concurrent requests for the same fingerprint
// join as followers instead of starting a duplicate job. Grounded on
// internal/cache.Live.Get's "load, or create-and-publish" loop, adapted
// from a weak-pointer value cache to a one-shot result broadcast.
package coalescer

import (
	"sync"

	xearthlayer "github.com/xearthlayer/xearthlayer"
)

// Role is what register returns to a caller joining a fingerprint.
type Role int

const (
	// Leader must produce the result and call Publish.
	Leader Role = iota
	// Follower waits on the channel register returns.
	Follower
)

// Result is what a leader publishes and every subscriber eventually
// receives exactly once.
type Result struct {
	Bytes []byte
	Err   error
}

// entry is one in-flight fingerprint: the leader's eventual result,
// broadcast to every subscriber registered before it was published.
type entry struct {
	mu          sync.Mutex
	done        bool
	result      Result
	subscribers []chan Result
}

// Coalescer deduplicates concurrent requests for the same fingerprint.
// jobs_coalesced is incremented once per Follower via the onCoalesced hook,
// so an Executor's counter stays the single source of truth for that
// metric.
type Coalescer struct {
	mu          sync.Mutex
	entries     map[string]*entry
	onCoalesced func()
}

// New builds a Coalescer. onCoalesced, if non-nil, is called once per
// Follower registration (wire it to Executor.NoteCoalesced).
func New(onCoalesced func()) *Coalescer {
	return &Coalescer{
		entries:     make(map[string]*entry),
		onCoalesced: onCoalesced,
	}
}

// Register joins fingerprint, returning Leader (the caller must run the job
// and call Publish) or Follower with a channel that receives the result
// exactly once. Subsequent registrations for an already-published
// fingerprint return a fresh Leader role, since the entry is removed on
// publish.
func (c *Coalescer) Register(fingerprint string) (Role, <-chan Result) {
	c.mu.Lock()
	e, ok := c.entries[fingerprint]
	if !ok {
		e = &entry{}
		c.entries[fingerprint] = e
		c.mu.Unlock()
		return Leader, nil
	}
	c.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		// The leader already published and the entry is about to be (or
		// just was) removed from the map; treat this caller as a new
		// leader rather than replay a stale result.
		return c.Register(fingerprint)
	}
	ch := make(chan Result, 1)
	e.subscribers = append(e.subscribers, ch)
	if c.onCoalesced != nil {
		c.onCoalesced()
	}
	return Follower, ch
}

// Publish delivers result to every current subscriber exactly once and
// retires the entry.
func (c *Coalescer) Publish(fingerprint string, result Result) {
	c.mu.Lock()
	e, ok := c.entries[fingerprint]
	if ok {
		delete(c.entries, fingerprint)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	e.mu.Lock()
	e.done = true
	e.result = result
	subs := e.subscribers
	e.subscribers = nil
	e.mu.Unlock()

	for _, ch := range subs {
		ch <- result
		close(ch)
	}
}

// CancelLeader is called by a leader that is giving up before publishing.
// Per the Open Question decision recorded in DESIGN.md, this closes the
// entry and tells every current subscriber Cancelled, rather than
// promoting a follower to leader.
func (c *Coalescer) CancelLeader(fingerprint string) {
	c.Publish(fingerprint, Result{Err: xearthlayer.NewError("coalescer", xearthlayer.KindCancelled, nil)})
}

// Remove drops a follower's subscription without affecting the leader or
// other subscribers; used when a follower's own caller context is
// cancelled independently of the leader's job.
func (c *Coalescer) Remove(fingerprint string, ch <-chan Result) {
	c.mu.Lock()
	e, ok := c.entries[fingerprint]
	c.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, s := range e.subscribers {
		if s == ch {
			e.subscribers = append(e.subscribers[:i], e.subscribers[i+1:]...)
			break
		}
	}
}

// InFlight reports whether an entry exists for fingerprint, for tests
// asserting the coalescer invariant: while an entry exists, at most one
// in-flight job is associated with the fingerprint.
func (c *Coalescer) InFlight(fingerprint string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[fingerprint]
	return ok
}
