package prefetch

import (
	"sync"
	"time"
)

// ThrottleState is the coarse answer a PrefetchThrottler gives the
// coordinator: whether this cycle should run at all.
type ThrottleState int

const (
	ThrottleActive ThrottleState = iota
	ThrottlePaused
)

// PrefetchThrottler gates prefetch cycles. The coordinator consults it once
// per cycle; a Paused answer skips the cycle entirely. Implementations may
// key off resource-pool utilization, request rate, or (as here) a fixed
// post-takeoff schedule.
type PrefetchThrottler interface {
	State() ThrottleState
	// Fraction reports the throughput fraction in [0, 1] a non-Paused
	// throttler currently allows; the coordinator scales max_tiles_per_cycle
	// by it.
	Fraction() float64
}

// TransitionThrottle implements the Ground<->Cruise takeoff schedule: a
// grace period of full suppression after Ground->Cruise, followed by a
// linear ramp back to full throughput, with Cruise->Ground resetting to
// full throughput immediately.
type TransitionThrottle struct {
	grace time.Duration
	ramp  time.Duration
	floor float64

	mu          sync.Mutex
	rampStartAt time.Time
	suppressed  bool
	now         func() time.Time
}

// NewTransitionThrottle builds a throttle with the default takeoff
// schedule: 45 s full suppression, then a 30 s linear ramp from 25% to 100%.
func NewTransitionThrottle() *TransitionThrottle {
	return &TransitionThrottle{
		grace: 45 * time.Second,
		ramp:  30 * time.Second,
		floor: 0.25,
		now:   time.Now,
	}
}

// OnGroundToCruise arms the suppression-then-ramp schedule anchored at now.
func (t *TransitionThrottle) OnGroundToCruise(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.suppressed = true
	t.rampStartAt = now.Add(t.grace)
}

// OnCruiseToGround clears any suppression; Cruise->Ground is full
// throughput immediately.
func (t *TransitionThrottle) OnCruiseToGround() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.suppressed = false
}

// State reports Paused while still inside the grace window, Active
// otherwise (including throughout the ramp, where Fraction is still < 1).
func (t *TransitionThrottle) State() ThrottleState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.suppressed && t.now().Before(t.rampStartAt) {
		return ThrottlePaused
	}
	return ThrottleActive
}

// Fraction reports the current throughput fraction: 0 during the grace
// window, a linear ramp from floor to 1.0 across the ramp window, and 1.0
// once the ramp completes or no transition is in effect.
func (t *TransitionThrottle) Fraction() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.suppressed {
		return 1.0
	}
	now := t.now()
	if now.Before(t.rampStartAt) {
		return 0
	}
	elapsed := now.Sub(t.rampStartAt)
	if elapsed >= t.ramp {
		t.suppressed = false
		return 1.0
	}
	progress := float64(elapsed) / float64(t.ramp)
	return t.floor + progress*(1.0-t.floor)
}
