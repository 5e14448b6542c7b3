package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is an in-process buffered queue. Jobs do not survive a
// restart; single-node deployments accept that in exchange for zero
// infrastructure.
type MemoryQueue struct {
	jobs   chan *BuildJob
	mu     sync.Mutex
	closed bool
}

// NewMemoryQueue creates a queue holding at most maxSize pending jobs.
func NewMemoryQueue(maxSize int) *MemoryQueue {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &MemoryQueue{jobs: make(chan *BuildJob, maxSize)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job *BuildJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueFull
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now()
	}
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Jobs() <-chan *BuildJob { return q.jobs }

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	return nil
}
