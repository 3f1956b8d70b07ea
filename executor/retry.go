package executor

import (
	"math/rand"
	"time"

	xearthlayer "github.com/xearthlayer/xearthlayer"
)

// backoff computes the delay before retry attempt n (1-indexed: n=1 is the
// delay before the first retry), grounded on indexer/controller/controller.go's
// jitter(): min(cap, base*2^(n-1)) scaled by a uniform(0.5, 1.5) jitter factor.
func backoff(policy xearthlayer.RetryPolicy, n int) time.Duration {
	if policy.Mode != xearthlayer.RetryExponential || n < 1 {
		return 0
	}
	base := policy.BaseDelay
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	cap := policy.CapDelay
	if cap <= 0 {
		cap = 30 * time.Second
	}

	d := base
	for i := 1; i < n && d < cap; i++ {
		d *= 2
		if d > cap {
			d = cap
			break
		}
	}
	if d > cap {
		d = cap
	}

	jitter := 0.5 + rand.Float64()
	return time.Duration(float64(d) * jitter)
}

// shouldRetry reports whether attempt n (the attempt that just failed,
// 1-indexed) may be followed by another, per policy.MaxAttempts.
func shouldRetry(policy xearthlayer.RetryPolicy, n int, transient bool) bool {
	if policy.Mode == xearthlayer.RetryNone || !transient {
		return false
	}
	return uint32(n) < policy.MaxAttempts
}
