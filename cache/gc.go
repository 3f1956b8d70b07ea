package cache

import (
	"context"
	"time"

	"github.com/quay/zlog"
)

// RunGC runs c.GC once immediately, then on every tick of interval, until
// ctx is cancelled. Grounded on libvuln/updates.Manager.Start's
// initial-run-then-ticker-loop shape; the disk tier's background GC and the
// prefetch coordinator's cycle loop are two more instances of the same
// idiom rather than three separate designs.
func RunGC(ctx context.Context, c Cache, interval time.Duration) {
	runOnce := func() {
		res, err := c.GC(ctx)
		if err != nil {
			zlog.Error(ctx).Err(err).Msg("cache gc failed")
			return
		}
		if res.EntriesRemoved > 0 {
			zlog.Info(ctx).
				Int("entries_removed", res.EntriesRemoved).
				Int64("bytes_freed", res.BytesFreed).
				Dur("duration", res.Duration).
				Msg("cache gc pass complete")
		}
	}

	runOnce()

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			runOnce()
		}
	}
}
