// Package daemon implements the Executor Daemon: a long-lived mailbox that
// turns JobRequests into coalesced, prioritized DDS-generate jobs. Grounded
// on libindex.Libindex's facade-over-controller shape and
// libvuln/updates.Manager.Start's long-lived-goroutine-with-inbox shape.
package daemon

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	xearthlayer "github.com/xearthlayer/xearthlayer"
	"github.com/xearthlayer/xearthlayer/cache"
	"github.com/xearthlayer/xearthlayer/coalescer"
	"github.com/xearthlayer/xearthlayer/encoder"
	execpkg "github.com/xearthlayer/xearthlayer/executor"
	"github.com/xearthlayer/xearthlayer/orchestrator"
)

var tracer = otel.Tracer("github.com/xearthlayer/xearthlayer/daemon")

// Request is one inbound tile request, the daemon's JobRequest.
type Request struct {
	Tile     xearthlayer.TileCoord
	Cfg      xearthlayer.EncoderConfig
	Origin   xearthlayer.Origin
	Priority xearthlayer.Priority
	Policy   xearthlayer.ErrorPolicy
	Ctx      context.Context
	Reply    chan Response
}

// Response is the daemon's answer to one Request.
type Response struct {
	Bytes []byte
	Err   error
}

// Options configures a Daemon's mailbox, worker count and the per-tile
// download deadline passed to the orchestrator.
type Options struct {
	InboxSize       int
	Workers         int
	DownloadTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.InboxSize <= 0 {
		o.InboxSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 8
	}
	return o
}

// Daemon is the Executor Daemon: it owns the inbox and holds the coalescer
// and the tile cache (the chunk cache sits behind the orchestrator), and
// drives requests through the executor.
type Daemon struct {
	opts Options

	exec   *execpkg.Executor
	coal   *coalescer.Coalescer
	orch   *orchestrator.Orchestrator
	enc    *encoder.Encoder
	tiles  cache.Cache

	inbox chan *Request
	wg    sync.WaitGroup

	fuseReads atomic.Int64
}

// New builds a Daemon. Every dependency is passed explicitly; none are
// package-global.
func New(opts Options, exec *execpkg.Executor, coal *coalescer.Coalescer, orch *orchestrator.Orchestrator, enc *encoder.Encoder, tileCache cache.Cache) *Daemon {
	opts = opts.withDefaults()
	d := &Daemon{
		opts:  opts,
		exec:  exec,
		coal:  coal,
		orch:  orch,
		enc:   enc,
		tiles: tileCache,
		inbox: make(chan *Request, opts.InboxSize),
	}
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Submit enqueues req. It blocks only if the inbox is full; the answer
// arrives on req.Reply.
func (d *Daemon) Submit(req *Request) {
	d.inbox <- req
}

// Shutdown closes the inbox and waits for in-flight requests to drain.
func (d *Daemon) Shutdown() {
	close(d.inbox)
	d.wg.Wait()
}

// LoadFUSEReads reports the number of FUSE-origin requests handled so far,
// for the adaptive prefetch coordinator's calibration.
func (d *Daemon) LoadFUSEReads() int64 { return d.fuseReads.Load() }

func (d *Daemon) worker() {
	defer d.wg.Done()
	for req := range d.inbox {
		d.handle(req)
	}
}

// handle implements §4.G's five-step request algorithm.
func (d *Daemon) handle(req *Request) {
	ctx, span := tracer.Start(req.Ctx, "daemon.handle",
		trace.WithAttributes(
			attribute.String("tile", req.Tile.String()),
			attribute.String("origin", req.Origin.String()),
		))
	defer span.End()

	if req.Origin == xearthlayer.OriginFuse {
		d.fuseReads.Add(1)
	}

	// Step 1: honor pre-existing cancellation.
	if ctx.Err() != nil {
		span.SetStatus(codes.Error, "cancelled before dispatch")
		d.reply(req, Response{Err: xearthlayer.NewError("daemon", xearthlayer.KindCancelled, ctx.Err())})
		return
	}

	// Step 2: memory-cache fast path.
	if data, ok, err := d.tiles.Get(ctx, req.Tile.CacheKey()); err == nil && ok {
		d.exec.NoteMemoryCacheHit()
		d.reply(req, Response{Bytes: data})
		return
	}

	// Step 3: coalesce.
	fingerprint := xearthlayer.Fingerprint(req.Tile, req.Cfg)
	role, followerCh := d.coal.Register(fingerprint)
	if role == coalescer.Follower {
		span.SetAttributes(attribute.Bool("coalesced", true))
		select {
		case r := <-followerCh:
			d.reply(req, Response{Bytes: r.Bytes, Err: r.Err})
		case <-ctx.Done():
			d.coal.Remove(fingerprint, followerCh)
			d.reply(req, Response{Err: xearthlayer.NewError("daemon", xearthlayer.KindCancelled, ctx.Err())})
		}
		return
	}

	// Step 4: leader path — build and submit the DDS-generate job.
	policy := req.Policy
	if policy == (xearthlayer.ErrorPolicy{}) {
		policy = xearthlayer.ErrorPolicy{Mode: xearthlayer.FailFast}
	}
	job, out := buildJob(req.Tile, req.Priority, policy, d.orch, d.enc, d.tiles, d.opts.DownloadTimeout)

	outcome, err := d.exec.Submit(ctx, job)
	if err != nil {
		span.RecordError(err)
		d.coal.CancelLeader(fingerprint)
		d.reply(req, Response{Err: err})
		return
	}

	// Step 5: finalize, publish to the coalescer, answer the caller.
	if len(outcome.Failed) > 0 || out.bytes == nil {
		result := coalescer.Result{Err: xearthlayer.NewError("daemon", xearthlayer.KindUnspecified, xearthlayer.ErrMissingInput)}
		if ctx.Err() != nil {
			result.Err = xearthlayer.NewError("daemon", xearthlayer.KindCancelled, ctx.Err())
		}
		span.SetStatus(codes.Error, "job did not produce dds bytes")
		d.coal.Publish(fingerprint, result)
		d.reply(req, Response{Err: result.Err})
		return
	}

	d.coal.Publish(fingerprint, coalescer.Result{Bytes: out.bytes})
	d.reply(req, Response{Bytes: out.bytes})
}

func (d *Daemon) reply(req *Request, resp Response) {
	select {
	case req.Reply <- resp:
	default:
		// Reply channel is buffered size 1 by convention; a caller that
		// isn't listening anymore (already cancelled) must not block the
		// worker.
	}
}
