package executor

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	xearthlayer "github.com/xearthlayer/xearthlayer"
)

// Options configures an Executor's resource pools and worker concurrency.
type Options struct {
	NetworkPermits int64
	DiskIOPermits  int64
	CPUPermits     int64
	// Workers is the number of dispatcher goroutines pulling from the
	// priority queue. Each worker runs one job's tasks sequentially.
	Workers int
	// SemaphoreTimeout bounds how long a task waits for a resource permit
	// before it is counted as a timeout (default 30s).
	SemaphoreTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.SemaphoreTimeout <= 0 {
		o.SemaphoreTimeout = 30 * time.Second
	}
	if o.NetworkPermits <= 0 {
		o.NetworkPermits = 1
	}
	if o.DiskIOPermits <= 0 {
		o.DiskIOPermits = 1
	}
	if o.CPUPermits <= 0 {
		o.CPUPermits = 1
	}
	return o
}

// Executor is the Job/Task dispatcher: a container/heap-ordered priority
// queue feeding a fixed worker pool, each task gated by a resource-typed
// semaphore, with cooperative cancellation and output-by-key task IPC.
type Executor struct {
	opts Options

	mu      sync.Mutex
	cond    *sync.Cond
	ready   jobQueue
	seq     uint64
	closed  bool
	cancels map[xearthlayer.JobId]context.CancelFunc
	states  map[xearthlayer.JobId]JobState

	pool *pool
	m    *metrics
	wg   sync.WaitGroup
}

// New builds an Executor and starts its worker goroutines. reg may be nil,
// in which case metrics are registered against prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer, opts Options) *Executor {
	opts = opts.withDefaults()
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	e := &Executor{
		opts:    opts,
		cancels: make(map[xearthlayer.JobId]context.CancelFunc),
		states:  make(map[xearthlayer.JobId]JobState),
		pool:    newPool(opts.NetworkPermits, opts.DiskIOPermits, opts.CPUPermits),
		m:       newMetrics(reg),
	}
	e.cond = sync.NewCond(&e.mu)
	for i := 0; i < opts.Workers; i++ {
		e.wg.Add(1)
		go e.worker()
	}
	return e
}

// Collector exposes resource-pool occupancy for a caller that wants to
// register it alongside the executor's own metrics.
func (e *Executor) Collector() prometheus.Collector { return newCollector(e.pool) }

// Submit enqueues job and blocks until it reaches a terminal state or ctx is
// cancelled. Cancelling ctx cancels the job (and, transitively, any child
// jobs it spawns) but Submit still returns the job's actual terminal
// outcome rather than ctx's error, since cancellation is cooperative.
func (e *Executor) Submit(ctx context.Context, job *xearthlayer.Job) (xearthlayer.JobOutcome, error) {
	e.m.jobsSubmitted.Inc()

	jobCtx, cancel := context.WithCancel(context.Background())
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		cancel()
		return xearthlayer.JobOutcome{}, xearthlayer.ErrShuttingDown
	}
	e.seq++
	qj := &queuedJob{
		job:    job,
		seq:    e.seq,
		done:   make(chan xearthlayer.JobOutcome, 1),
		ctx:    jobCtx,
		cancel: cancel,
	}
	e.cancels[job.ID] = cancel
	e.states[job.ID] = JobQueued
	heap.Push(&e.ready, qj)
	e.cond.Signal()
	e.mu.Unlock()

	select {
	case outcome := <-qj.done:
		return outcome, nil
	case <-jobCtx.Done():
		// Cancelled before a worker dequeued it: complete it here rather
		// than waiting on whatever else the worker pool is doing, so
		// cancellation of a queued job is immediate.
		e.mu.Lock()
		if qj.index >= 0 {
			heap.Remove(&e.ready, qj.index)
			delete(e.cancels, job.ID)
			e.states[job.ID] = JobCancelled
			e.mu.Unlock()
			outcome := xearthlayer.JobOutcome{}
			for _, t := range job.Tasks {
				outcome.Cancelled = append(outcome.Cancelled, t.Name)
			}
			e.m.jobsCancelled.Inc()
			return outcome, nil
		}
		e.mu.Unlock()
		// Already dequeued by a worker; it owns completion now.
		return <-qj.done, nil
	}
}

// Status returns the last-observed JobState for id, and false if the
// executor has no record of it (never submitted). Records of finished jobs
// are kept for the executor's lifetime.
func (e *Executor) Status(id xearthlayer.JobId) (JobState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.states[id]
	return s, ok
}

// Cancel cancels a previously submitted job by ID. A no-op if the job has
// already finished.
func (e *Executor) Cancel(id xearthlayer.JobId) {
	e.mu.Lock()
	cancel, ok := e.cancels[id]
	e.mu.Unlock()
	if ok {
		cancel()
	}
}

// Shutdown stops accepting new work and waits for queued and running jobs
// to drain.
func (e *Executor) Shutdown() {
	e.mu.Lock()
	e.closed = true
	e.cond.Broadcast()
	e.mu.Unlock()
	e.wg.Wait()
}

func (e *Executor) worker() {
	defer e.wg.Done()
	for {
		e.mu.Lock()
		for len(e.ready) == 0 && !e.closed {
			e.cond.Wait()
		}
		if len(e.ready) == 0 && e.closed {
			e.mu.Unlock()
			return
		}
		qj := heap.Pop(&e.ready).(*queuedJob)
		e.mu.Unlock()

		e.runJob(qj)
	}
}

func (e *Executor) runJob(qj *queuedJob) {
	job := qj.job
	e.m.jobStarted()
	defer e.m.jobFinished()
	defer func() {
		e.mu.Lock()
		delete(e.cancels, job.ID)
		e.mu.Unlock()
	}()

	var outcome xearthlayer.JobOutcome

	if qj.ctx.Err() != nil {
		for _, t := range job.Tasks {
			outcome.Cancelled = append(outcome.Cancelled, t.Name)
		}
		e.setState(job.ID, JobCancelled)
		e.m.jobsCancelled.Inc()
		qj.done <- outcome
		return
	}

	e.setState(job.ID, JobRunning)

	rc := newRunContext(e, qj.ctx, job.ID)
	taskCtx := withRunContext(qj.ctx, rc)

	abort := false
	for _, task := range job.Tasks {
		if abort || qj.ctx.Err() != nil {
			outcome.Cancelled = append(outcome.Cancelled, task.Name)
			continue
		}
		status := e.runTask(taskCtx, rc, task)
		switch status {
		case xearthlayer.TaskSuccess, xearthlayer.TaskSuccessWithOutput:
			outcome.Succeeded = append(outcome.Succeeded, task.Name)
		case xearthlayer.TaskCancelled:
			outcome.Cancelled = append(outcome.Cancelled, task.Name)
		default:
			outcome.Failed = append(outcome.Failed, task.Name)
			if job.Policy.Mode == xearthlayer.FailFast {
				abort = true
			}
		}
	}

	rc.wait()

	final := e.reduce(job, outcome, qj.ctx.Err() != nil)

	if job.OnComplete != nil {
		switch job.OnComplete(outcome) {
		case xearthlayer.DecisionSucceeded:
			final = JobSucceeded
		case xearthlayer.DecisionFailed:
			final = JobFailed
		case xearthlayer.DecisionRetry:
			// Re-run the task list in place; OnComplete is trusted not to
			// request this indefinitely.
			e.mu.Lock()
			e.cancels[job.ID] = qj.cancel
			e.mu.Unlock()
			e.runJob(qj)
			return
		}
	}

	e.setState(job.ID, final)
	switch final {
	case JobSucceeded:
		e.m.jobsCompleted.Inc()
	case JobCancelled:
		e.m.jobsCancelled.Inc()
	default:
		e.m.jobsFailed.Inc()
	}

	qj.done <- outcome
}

func (e *Executor) setState(id xearthlayer.JobId, s JobState) {
	e.mu.Lock()
	e.states[id] = s
	e.mu.Unlock()
}

func (e *Executor) reduce(job *xearthlayer.Job, outcome xearthlayer.JobOutcome, cancelled bool) JobState {
	if cancelled {
		return JobCancelled
	}
	total := len(job.Tasks)
	switch job.Policy.Mode {
	case xearthlayer.FailFast:
		if len(outcome.Failed) > 0 {
			return JobFailed
		}
		return JobSucceeded
	case xearthlayer.PartialSuccess:
		if total == 0 {
			return JobSucceeded
		}
		ratio := float64(len(outcome.Succeeded)) / float64(total)
		if ratio >= job.Policy.Threshold {
			return JobSucceeded
		}
		return JobFailed
	case xearthlayer.ContinueAll:
		return JobSucceeded
	default:
		if len(outcome.Failed) > 0 {
			return JobFailed
		}
		return JobSucceeded
	}
}

// runTask acquires task.Resource's permit, then runs task.Execute with
// task.Retry's backoff applied between transient-error attempts.
func (e *Executor) runTask(ctx context.Context, rc *runContext, task *xearthlayer.Task) xearthlayer.TaskStatus {
	attempt := 0
	for {
		attempt++
		if ctx.Err() != nil {
			return xearthlayer.TaskCancelled
		}

		acqCtx, cancel := context.WithTimeout(ctx, e.opts.SemaphoreTimeout)
		err := e.pool.acquire(acqCtx, task.Resource)
		cancel()
		if err != nil {
			e.m.semaphoreTimeouts.Inc()
			if ctx.Err() != nil {
				return xearthlayer.TaskCancelled
			}
			return xearthlayer.TaskFailed
		}

		result := task.Execute(ctx)
		e.pool.release(task.Resource)

		if result.Output != nil {
			rc.publish(task.Name, result.Output)
		}

		switch result.Status {
		case xearthlayer.TaskSuccess, xearthlayer.TaskSuccessWithOutput:
			return result.Status
		case xearthlayer.TaskCancelled:
			return xearthlayer.TaskCancelled
		case xearthlayer.TaskRetry:
			if !shouldRetry(task.Retry, attempt, true) {
				return xearthlayer.TaskFailed
			}
		default: // TaskFailed
			transient := result.Transient || xearthlayer.KindOf(result.Err).Retryable()
			if !shouldRetry(task.Retry, attempt, transient) {
				return xearthlayer.TaskFailed
			}
		}

		delay := backoff(task.Retry, attempt)
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return xearthlayer.TaskCancelled
			}
		}
	}
}

// NoteDownloadStart/NoteDownloadEnd bracket a chunk download for the
// downloads_active gauge.
func (e *Executor) NoteDownloadStart() { e.m.downloadsActive.Inc() }
func (e *Executor) NoteDownloadEnd()   { e.m.downloadsActive.Dec() }

// NoteEncodeStart/NoteEncodeEnd bracket a DDS encode for the encodes_active
// gauge.
func (e *Executor) NoteEncodeStart() { e.m.encodesActive.Inc() }
func (e *Executor) NoteEncodeEnd()   { e.m.encodesActive.Dec() }

// NoteBytesDownloaded adds n to the bytes_downloaded counter.
func (e *Executor) NoteBytesDownloaded(n int64) { e.m.bytesDownloaded.Add(float64(n)) }

// NoteMemoryCacheHit/NoteDiskCacheHit increment the corresponding cache-hit
// counters.
func (e *Executor) NoteMemoryCacheHit() { e.m.memoryCacheHits.Inc() }
func (e *Executor) NoteDiskCacheHit()   { e.m.diskCacheHits.Inc() }

// NoteJobRecovered increments jobs_recovered, for a daemon that resubmits a
// job whose earlier attempt failed and later succeeds.
func (e *Executor) NoteJobRecovered() { e.m.jobsRecovered.Inc() }

// NoteCoalesced increments jobs_coalesced, for a coalescer reporting that a
// request joined an in-flight leader instead of starting a new job.
func (e *Executor) NoteCoalesced() { e.m.jobsCoalesced.Inc() }

// UptimeSeconds reports how long this Executor has been running.
func (e *Executor) UptimeSeconds() float64 { return e.m.uptimeSecs() }
