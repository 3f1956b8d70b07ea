package executor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	xearthlayer "github.com/xearthlayer/xearthlayer"
)

func newTestExecutor(t *testing.T, opts Options) *Executor {
	t.Helper()
	e := New(prometheus.NewRegistry(), opts)
	t.Cleanup(e.Shutdown)
	return e
}

func simpleTask(name string, resource xearthlayer.ResourceType, fn func(ctx context.Context) xearthlayer.TaskResult) *xearthlayer.Task {
	return &xearthlayer.Task{Name: name, Resource: resource, Execute: fn}
}

func TestSubmitRunsTasksAndSucceeds(t *testing.T) {
	e := newTestExecutor(t, Options{Workers: 2, NetworkPermits: 2})

	var ran atomic.Bool
	job := &xearthlayer.Job{
		ID:       xearthlayer.NewJobId(),
		Priority: xearthlayer.OnDemand,
		Policy:   xearthlayer.ErrorPolicy{Mode: xearthlayer.FailFast},
		Tasks: []*xearthlayer.Task{
			simpleTask("step", xearthlayer.Network, func(ctx context.Context) xearthlayer.TaskResult {
				ran.Store(true)
				return xearthlayer.TaskResult{Status: xearthlayer.TaskSuccess}
			}),
		},
	}

	outcome, err := e.Submit(context.Background(), job)
	if err != nil {
		t.Fatal(err)
	}
	if !ran.Load() {
		t.Fatal("task never ran")
	}
	if len(outcome.Succeeded) != 1 || outcome.Succeeded[0] != "step" {
		t.Errorf("unexpected outcome: %+v", outcome)
	}
}

// TestPriorityPreemption exercises priority preemption: with a single
// Network permit, an ON_DEMAND job submitted while PREFETCH jobs are
// queued must be dispatched before the remaining PREFETCH work.
func TestPriorityPreemption(t *testing.T) {
	e := newTestExecutor(t, Options{Workers: 1, NetworkPermits: 1})

	var mu sync.Mutex
	var order []string
	hold := make(chan struct{})

	blocker := &xearthlayer.Job{
		ID:       xearthlayer.NewJobId(),
		Priority: xearthlayer.Prefetch,
		Tasks: []*xearthlayer.Task{
			simpleTask("blocker", xearthlayer.Network, func(ctx context.Context) xearthlayer.TaskResult {
				mu.Lock()
				order = append(order, "blocker")
				mu.Unlock()
				<-hold
				return xearthlayer.TaskResult{Status: xearthlayer.TaskSuccess}
			}),
		},
	}
	blockerDone := make(chan struct{})
	go func() {
		e.Submit(context.Background(), blocker)
		close(blockerDone)
	}()

	// Give the blocker time to claim the worker and the sole network permit.
	time.Sleep(50 * time.Millisecond)

	mkJob := func(name string, p xearthlayer.Priority) *xearthlayer.Job {
		return &xearthlayer.Job{
			ID:       xearthlayer.NewJobId(),
			Priority: p,
			Tasks: []*xearthlayer.Task{
				simpleTask(name, xearthlayer.Network, func(ctx context.Context) xearthlayer.TaskResult {
					mu.Lock()
					order = append(order, name)
					mu.Unlock()
					return xearthlayer.TaskResult{Status: xearthlayer.TaskSuccess}
				}),
			},
		}
	}

	prefetchDone := make(chan struct{})
	go func() {
		e.Submit(context.Background(), mkJob("prefetch-2", xearthlayer.Prefetch))
		close(prefetchDone)
	}()
	time.Sleep(20 * time.Millisecond)

	onDemandDone := make(chan struct{})
	go func() {
		e.Submit(context.Background(), mkJob("on-demand", xearthlayer.OnDemand))
		close(onDemandDone)
	}()
	time.Sleep(20 * time.Millisecond)

	close(hold)
	<-blockerDone
	<-prefetchDone
	<-onDemandDone

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 {
		t.Fatalf("expected 3 tasks to run, got %v", order)
	}
	if order[0] != "blocker" {
		t.Fatalf("blocker should run first, got %v", order)
	}
	if order[1] != "on-demand" {
		t.Errorf("on-demand job should preempt the queued prefetch job; order=%v", order)
	}
}

func TestCancellationPropagatesToQueuedJob(t *testing.T) {
	e := newTestExecutor(t, Options{Workers: 1, NetworkPermits: 1})

	hold := make(chan struct{})
	blocker := &xearthlayer.Job{
		ID:       xearthlayer.NewJobId(),
		Priority: xearthlayer.OnDemand,
		Tasks: []*xearthlayer.Task{
			simpleTask("blocker", xearthlayer.Network, func(ctx context.Context) xearthlayer.TaskResult {
				<-hold
				return xearthlayer.TaskResult{Status: xearthlayer.TaskSuccess}
			}),
		},
	}
	go e.Submit(context.Background(), blocker)
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	job := &xearthlayer.Job{
		ID:       xearthlayer.NewJobId(),
		Priority: xearthlayer.OnDemand,
		Tasks: []*xearthlayer.Task{
			simpleTask("never-runs", xearthlayer.Network, func(ctx context.Context) xearthlayer.TaskResult {
				return xearthlayer.TaskResult{Status: xearthlayer.TaskSuccess}
			}),
		},
	}

	start := time.Now()
	resultCh := make(chan xearthlayer.JobOutcome, 1)
	go func() {
		outcome, _ := e.Submit(ctx, job)
		resultCh <- outcome
	}()
	cancel()

	select {
	case outcome := <-resultCh:
		if time.Since(start) > 100*time.Millisecond {
			t.Errorf("cancellation took too long: %v", time.Since(start))
		}
		if len(outcome.Cancelled) != 1 || outcome.Cancelled[0] != "never-runs" {
			t.Errorf("expected the never-runs task marked cancelled, got %+v", outcome)
		}
	case <-time.After(time.Second):
		t.Fatal("cancellation never resolved the submit")
	}

	close(hold)
}

func TestRetryOnTransientEventuallySucceeds(t *testing.T) {
	e := newTestExecutor(t, Options{Workers: 1, NetworkPermits: 1})

	var attempts atomic.Int32
	job := &xearthlayer.Job{
		ID:       xearthlayer.NewJobId(),
		Priority: xearthlayer.OnDemand,
		Tasks: []*xearthlayer.Task{
			{
				Name:     "flaky",
				Resource: xearthlayer.Network,
				Retry: xearthlayer.RetryPolicy{
					Mode:        xearthlayer.RetryExponential,
					MaxAttempts: 5,
					BaseDelay:   time.Millisecond,
					CapDelay:    5 * time.Millisecond,
				},
				Execute: func(ctx context.Context) xearthlayer.TaskResult {
					n := attempts.Add(1)
					if n < 3 {
						return xearthlayer.TaskResult{
							Status:    xearthlayer.TaskFailed,
							Transient: true,
							Err:       xearthlayer.NewError("flaky", xearthlayer.KindTransient, nil),
						}
					}
					return xearthlayer.TaskResult{Status: xearthlayer.TaskSuccess}
				},
			},
		},
	}

	outcome, err := e.Submit(context.Background(), job)
	if err != nil {
		t.Fatal(err)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
	if len(outcome.Succeeded) != 1 {
		t.Errorf("expected eventual success, got %+v", outcome)
	}
}

func TestPermanentErrorNeverRetries(t *testing.T) {
	e := newTestExecutor(t, Options{Workers: 1, NetworkPermits: 1})

	var attempts atomic.Int32
	job := &xearthlayer.Job{
		ID:       xearthlayer.NewJobId(),
		Priority: xearthlayer.OnDemand,
		Tasks: []*xearthlayer.Task{
			{
				Name:     "permanent",
				Resource: xearthlayer.Network,
				Retry: xearthlayer.RetryPolicy{
					Mode:        xearthlayer.RetryExponential,
					MaxAttempts: 5,
					BaseDelay:   time.Millisecond,
				},
				Execute: func(ctx context.Context) xearthlayer.TaskResult {
					attempts.Add(1)
					return xearthlayer.TaskResult{
						Status: xearthlayer.TaskFailed,
						Err:    xearthlayer.NewError("permanent", xearthlayer.KindPermanent, xearthlayer.ErrUnsupportedZoom),
					}
				},
			},
		},
	}

	outcome, _ := e.Submit(context.Background(), job)
	if attempts.Load() != 1 {
		t.Errorf("permanent error must not be retried, got %d attempts", attempts.Load())
	}
	if len(outcome.Failed) != 1 {
		t.Errorf("expected failure, got %+v", outcome)
	}
}

func TestPartialSuccessPolicy(t *testing.T) {
	e := newTestExecutor(t, Options{Workers: 1, NetworkPermits: 2})

	ok := simpleTask("ok", xearthlayer.Network, func(ctx context.Context) xearthlayer.TaskResult {
		return xearthlayer.TaskResult{Status: xearthlayer.TaskSuccess}
	})
	bad := simpleTask("bad", xearthlayer.Network, func(ctx context.Context) xearthlayer.TaskResult {
		return xearthlayer.TaskResult{Status: xearthlayer.TaskFailed, Err: xearthlayer.ErrInvalidDimensions}
	})

	job := &xearthlayer.Job{
		ID:       xearthlayer.NewJobId(),
		Priority: xearthlayer.OnDemand,
		Policy:   xearthlayer.ErrorPolicy{Mode: xearthlayer.PartialSuccess, Threshold: 0.5},
		Tasks:    []*xearthlayer.Task{ok, ok, bad},
	}

	outcome, err := e.Submit(context.Background(), job)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcome.Succeeded) != 2 || len(outcome.Failed) != 1 {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}

func TestChildJobSpawnWaitsForCompletion(t *testing.T) {
	e := newTestExecutor(t, Options{Workers: 2, NetworkPermits: 2})

	var childRan atomic.Bool
	parent := &xearthlayer.Job{
		ID:       xearthlayer.NewJobId(),
		Priority: xearthlayer.OnDemand,
		Tasks: []*xearthlayer.Task{
			simpleTask("spawner", xearthlayer.Network, func(ctx context.Context) xearthlayer.TaskResult {
				child := &xearthlayer.Job{
					ID:       xearthlayer.NewJobId(),
					Priority: xearthlayer.OnDemand,
					Tasks: []*xearthlayer.Task{
						simpleTask("child-step", xearthlayer.Network, func(ctx context.Context) xearthlayer.TaskResult {
							time.Sleep(20 * time.Millisecond)
							childRan.Store(true)
							return xearthlayer.TaskResult{Status: xearthlayer.TaskSuccess}
						}),
					},
				}
				Spawn(ctx, child, "child-a")
				return xearthlayer.TaskResult{Status: xearthlayer.TaskSuccess}
			}),
		},
	}

	_, err := e.Submit(context.Background(), parent)
	if err != nil {
		t.Fatal(err)
	}
	if !childRan.Load() {
		t.Error("parent finalized before spawned child ran to completion")
	}
}

func TestOutputByKeyTaskIPC(t *testing.T) {
	e := newTestExecutor(t, Options{Workers: 1, NetworkPermits: 1})

	job := &xearthlayer.Job{
		ID:       xearthlayer.NewJobId(),
		Priority: xearthlayer.OnDemand,
		Tasks: []*xearthlayer.Task{
			simpleTask("produce", xearthlayer.Network, func(ctx context.Context) xearthlayer.TaskResult {
				return xearthlayer.TaskResult{
					Status: xearthlayer.TaskSuccessWithOutput,
					Output: &xearthlayer.TaskOutput{DDSData: []byte("dds-bytes")},
				}
			}),
			simpleTask("consume", xearthlayer.CPU, func(ctx context.Context) xearthlayer.TaskResult {
				out, err := Output(ctx, "produce")
				if err != nil {
					return xearthlayer.TaskResult{Status: xearthlayer.TaskFailed, Err: err}
				}
				if string(out.DDSData) != "dds-bytes" {
					return xearthlayer.TaskResult{Status: xearthlayer.TaskFailed}
				}
				return xearthlayer.TaskResult{Status: xearthlayer.TaskSuccess}
			}),
		},
	}

	outcome, err := e.Submit(context.Background(), job)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcome.Succeeded) != 2 {
		t.Fatalf("expected both tasks to succeed, got %+v", outcome)
	}
}

func TestMissingOutputReturnsErrMissingInput(t *testing.T) {
	e := newTestExecutor(t, Options{Workers: 1, NetworkPermits: 1})

	job := &xearthlayer.Job{
		ID:       xearthlayer.NewJobId(),
		Priority: xearthlayer.OnDemand,
		Tasks: []*xearthlayer.Task{
			simpleTask("consume", xearthlayer.Network, func(ctx context.Context) xearthlayer.TaskResult {
				_, err := Output(ctx, "never-published")
				if err != xearthlayer.ErrMissingInput {
					t.Errorf("expected ErrMissingInput, got %v", err)
				}
				return xearthlayer.TaskResult{Status: xearthlayer.TaskSuccess}
			}),
		},
	}
	if _, err := e.Submit(context.Background(), job); err != nil {
		t.Fatal(err)
	}
}
