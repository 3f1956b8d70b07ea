package executor

import (
	"container/heap"
	"context"

	xearthlayer "github.com/xearthlayer/xearthlayer"
)

// queuedJob is one heap entry: a submitted job plus the channel its result
// is delivered on. Grounded on indexer/controller/v2/states.go's
// execOrder/workItem heap.Interface implementation.
type queuedJob struct {
	job    *xearthlayer.Job
	seq    uint64
	done   chan xearthlayer.JobOutcome
	ctx    context.Context
	cancel context.CancelFunc
	index  int
}

// jobQueue orders queuedJobs by (priority desc, seq asc) — ON_DEMAND before
// PREFETCH, ties broken FIFO by enqueue order.
type jobQueue []*queuedJob

func (q jobQueue) Len() int { return len(q) }

func (q jobQueue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if a.job.Priority != b.job.Priority {
		return a.job.Priority > b.job.Priority
	}
	return a.seq < b.seq
}

func (q jobQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *jobQueue) Push(x any) {
	item := x.(*queuedJob)
	item.index = len(*q)
	*q = append(*q, item)
}

func (q *jobQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*q = old[:n-1]
	return item
}

var _ heap.Interface = (*jobQueue)(nil)
