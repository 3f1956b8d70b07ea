package xearthlayer

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JobId is an opaque unique job identifier carrying a correlation tag for
// logging, following the same uuid.UUID-per-record convention used for
// update operation records elsewhere in this family of systems.
type JobId uuid.UUID

// NewJobId mints a fresh random JobId.
func NewJobId() JobId { return JobId(uuid.New()) }

func (id JobId) String() string { return uuid.UUID(id).String() }

// ErrorPolicy decides how task outcomes within one job are reduced to a job
// result.
type ErrorPolicy struct {
	// Mode selects the reduction strategy.
	Mode ErrorPolicyMode
	// Threshold is used only when Mode == PartialSuccess; a job succeeds
	// when succeeded/total >= Threshold.
	Threshold float64
}

type ErrorPolicyMode int

const (
	// FailFast aborts the job on the first failed task; remaining tasks
	// are cancelled.
	FailFast ErrorPolicyMode = iota
	// PartialSuccess succeeds the job when the success ratio clears
	// ErrorPolicy.Threshold.
	PartialSuccess
	// ContinueAll runs every task; failures are recorded but never
	// propagate to the job result.
	ContinueAll
)

// RetryPolicy governs whether and how a task's Retry(err) outcome is
// re-attempted.
type RetryPolicy struct {
	Mode        RetryMode
	MaxAttempts uint32
	BaseDelay   time.Duration
	CapDelay    time.Duration
}

type RetryMode int

const (
	RetryNone RetryMode = iota
	RetryExponential
)

// NoRetry is the zero-value convenience for tasks that must never retry.
var NoRetry = RetryPolicy{Mode: RetryNone}

// TaskOutput is the small tagged union output-by-key tasks publish for
// downstream tasks to consume. The key set (chunks, image, dds_data) is
// small and fixed, so a struct gives compile-time safety over a type-erased
// map.
type TaskOutput struct {
	Chunks  map[ChunkCoord][]byte
	Image   any // holds an *image.RGBA
	DDSData []byte
}

// TaskResult is the outcome of one Task.Execute call.
type TaskResult struct {
	Status  TaskStatus
	Output  *TaskOutput
	Err     error
	Transient bool
}

type TaskStatus int

const (
	TaskSuccess TaskStatus = iota
	TaskSuccessWithOutput
	TaskFailed
	TaskRetry
	TaskCancelled
)

// Task is a leaf unit of scheduling: one resource-typed unit of work with an
// optional retry policy.
type Task struct {
	Name     string
	Resource ResourceType
	Retry    RetryPolicy
	Execute  func(ctx context.Context) TaskResult
}

// Job is the unit of scheduling submitted to the executor: an ordered task
// list plus the policy that reduces their outcomes.
type Job struct {
	ID       JobId
	Name     string
	Priority Priority
	Policy   ErrorPolicy
	Tasks    []*Task
	// OnComplete, if set, lets the submitter veto an otherwise-successful
	// reduction or force a retry of the whole job.
	OnComplete func(JobOutcome) JobDecision
}

type JobOutcome struct {
	Succeeded []string
	Failed    []string
	Cancelled []string
}

type JobDecision int

const (
	DecisionSucceeded JobDecision = iota
	DecisionFailed
	DecisionRetry
)
