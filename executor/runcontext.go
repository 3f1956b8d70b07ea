package executor

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	xearthlayer "github.com/xearthlayer/xearthlayer"
)

// runContext is the per-job state a running task reaches through its
// context.Context: published task outputs (output-by-key IPC) and the
// child-job fan-out group. Grounded on indexer/controller/coalesce.go's
// per-ecosystem errgroup.Go dispatch over a mutex-guarded results slice.
type runContext struct {
	exec *Executor
	ctx  context.Context
	jobID xearthlayer.JobId

	mu      sync.Mutex
	outputs map[string]*xearthlayer.TaskOutput
	children map[string]xearthlayer.JobOutcome

	eg errgroup.Group
}

func newRunContext(exec *Executor, ctx context.Context, jobID xearthlayer.JobId) *runContext {
	return &runContext{
		exec:     exec,
		ctx:      ctx,
		jobID:    jobID,
		outputs:  make(map[string]*xearthlayer.TaskOutput),
		children: make(map[string]xearthlayer.JobOutcome),
	}
}

func (rc *runContext) publish(key string, out *xearthlayer.TaskOutput) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.outputs[key] = out
}

func (rc *runContext) output(key string) (*xearthlayer.TaskOutput, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out, ok := rc.outputs[key]
	if !ok {
		return nil, xearthlayer.ErrMissingInput
	}
	return out, nil
}

// spawn submits job as a child of the currently running job. The parent does
// not finalize until every spawned child reaches a terminal state; children
// inherit the parent's cancellation (Submit cancels the child's own context
// when rc.ctx is cancelled).
func (rc *runContext) spawn(job *xearthlayer.Job, label string) {
	rc.eg.Go(func() error {
		outcome, err := rc.exec.Submit(rc.ctx, job)
		rc.mu.Lock()
		rc.children[label] = outcome
		rc.mu.Unlock()
		return err
	})
}

func (rc *runContext) wait() {
	_ = rc.eg.Wait()
}

func (rc *runContext) childOutcomes() map[string]xearthlayer.JobOutcome {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make(map[string]xearthlayer.JobOutcome, len(rc.children))
	for k, v := range rc.children {
		out[k] = v
	}
	return out
}

type runContextKey struct{}

func withRunContext(ctx context.Context, rc *runContext) context.Context {
	return context.WithValue(ctx, runContextKey{}, rc)
}

func fromContext(ctx context.Context) *runContext {
	rc, _ := ctx.Value(runContextKey{}).(*runContext)
	return rc
}

// Output reads the output a named task in the same job published, for
// downstream tasks to consume by key. It returns xearthlayer.ErrMissingInput
// if ctx carries no run context or the key was never published.
func Output(ctx context.Context, key string) (*xearthlayer.TaskOutput, error) {
	rc := fromContext(ctx)
	if rc == nil {
		return nil, xearthlayer.ErrMissingInput
	}
	return rc.output(key)
}

// Spawn submits job as a child of the task currently running under ctx. It
// is a no-op if ctx carries no run context (i.e. called outside a task).
func Spawn(ctx context.Context, job *xearthlayer.Job, label string) {
	if rc := fromContext(ctx); rc != nil {
		rc.spawn(job, label)
	}
}

// ChildOutcomes returns the terminal outcomes of every child job spawned so
// far under ctx's run context, keyed by label.
func ChildOutcomes(ctx context.Context) map[string]xearthlayer.JobOutcome {
	rc := fromContext(ctx)
	if rc == nil {
		return nil
	}
	return rc.childOutcomes()
}

// IsCancelled reports whether the job running under ctx has been cancelled,
// the cooperative check tasks perform at I/O boundaries.
func IsCancelled(ctx context.Context) bool {
	return ctx.Err() != nil
}
