// Package executor implements the Job/Task Executor: priority scheduling,
// resource-typed admission control, retries, child-job spawning, and
// telemetry.
package executor

//go:generate go run golang.org/x/tools/cmd/stringer -type JobState -linecomment
//go:generate go run golang.org/x/tools/cmd/stringer -type TaskState -linecomment

// JobState is a job's position in its state machine:
// Submitted -> Queued -> Running -> (Succeeded | Failed | Cancelled).
type JobState int

const (
	JobSubmitted JobState = iota // submitted
	JobQueued                    // queued
	JobRunning                   // running
	JobSucceeded                 // succeeded
	JobFailed                    // failed
	JobCancelled                 // cancelled
)

// Terminal reports whether s is one of the job's terminal states.
func (s JobState) Terminal() bool {
	return s == JobSucceeded || s == JobFailed || s == JobCancelled
}

// TaskState is a task's position in its state machine:
// Queued -> ResourceWait -> Running -> (Success | Failed | Cancelled | Retrying).
// Retrying transitions back to Queued after a backoff.
type TaskState int

const (
	TaskQueued       TaskState = iota // queued
	TaskResourceWait                  // resource_wait
	TaskRunning                       // running
	TaskStateSuccess                  // success
	TaskStateFailed                   // failed
	TaskStateCancelled                // cancelled
	TaskStateRetrying                  // retrying
)
