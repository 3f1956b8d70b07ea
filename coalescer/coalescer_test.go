package coalescer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	xearthlayer "github.com/xearthlayer/xearthlayer"
)

// TestCoalescingTenConcurrentRequests exercises coalescing under load: 10
// concurrent identical requests for an uncached tile should produce one
// leader and at least 9 followers, all observing identical bytes.
func TestCoalescingTenConcurrentRequests(t *testing.T) {
	var coalesced atomic.Int32
	c := New(func() { coalesced.Add(1) })

	const fingerprint = "tile:15:100:200"
	const n = 10

	var wg sync.WaitGroup
	results := make([][]byte, n)
	var leaders atomic.Int32

	var start sync.WaitGroup
	start.Add(1)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start.Wait()
			role, ch := c.Register(fingerprint)
			if role == Leader {
				leaders.Add(1)
				payload := []byte("the-tile-bytes")
				results[i] = payload
				c.Publish(fingerprint, Result{Bytes: payload})
				return
			}
			r := <-ch
			results[i] = r.Bytes
		}(i)
	}
	start.Done()
	wg.Wait()

	if leaders.Load() != 1 {
		t.Fatalf("expected exactly one leader, got %d", leaders.Load())
	}
	if coalesced.Load() < 9 {
		t.Errorf("expected jobs_coalesced >= 9, got %d", coalesced.Load())
	}
	for i, r := range results {
		if string(r) != "the-tile-bytes" {
			t.Errorf("subscriber %d got %q, want %q", i, r, "the-tile-bytes")
		}
	}
}

// TestCancellationClearsEntryWithin100ms exercises leader cancellation: when
// the leader cancels, the entry must be gone (and every subscriber told
// Cancelled) well within 100ms.
func TestCancellationClearsEntryWithin100ms(t *testing.T) {
	c := New(nil)
	const fingerprint = "tile:15:1:1"

	role, _ := c.Register(fingerprint)
	if role != Leader {
		t.Fatal("first registrant must be Leader")
	}
	_, ch := c.Register(fingerprint)

	start := time.Now()
	c.CancelLeader(fingerprint)

	select {
	case r := <-ch:
		if r.Err == nil {
			t.Fatal("expected a Cancelled error on leader cancellation")
		}
		if xearthlayer.KindOf(r.Err) != xearthlayer.KindCancelled {
			t.Errorf("expected KindCancelled, got %v", xearthlayer.KindOf(r.Err))
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("follower never observed cancellation")
	}

	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("cancellation took %v, want <100ms", elapsed)
	}
	if c.InFlight(fingerprint) {
		t.Error("entry should be gone after leader cancellation")
	}
}

func TestRegisterAfterPublishStartsFreshLeader(t *testing.T) {
	c := New(nil)
	const fingerprint = "tile:15:2:2"

	role, _ := c.Register(fingerprint)
	if role != Leader {
		t.Fatal("expected Leader")
	}
	c.Publish(fingerprint, Result{Bytes: []byte("done")})

	role2, _ := c.Register(fingerprint)
	if role2 != Leader {
		t.Error("registration after publish should start a fresh leader, not replay the stale result")
	}
}

func TestInFlightReflectsEntryLifecycle(t *testing.T) {
	c := New(nil)
	const fingerprint = "tile:15:3:3"

	if c.InFlight(fingerprint) {
		t.Fatal("no entry should exist before registration")
	}
	c.Register(fingerprint)
	if !c.InFlight(fingerprint) {
		t.Fatal("entry should exist once a leader is registered")
	}
	c.Publish(fingerprint, Result{Bytes: []byte("x")})
	if c.InFlight(fingerprint) {
		t.Fatal("entry should be removed after publish")
	}
}
