// Package queue feeds build jobs from the orchestrator to the worker pool.
// Two implementations exist: an in-process channel queue for single-node
// deployments and tests, and a JetStream-backed queue that survives
// restarts and fans jobs out across worker processes.
package queue

import (
	"context"
	"errors"
	"time"
)

// ErrQueueFull is returned when a job cannot be accepted right now.
var ErrQueueFull = errors.New("build queue is full")

// BuildJob is one unit of pipeline work: run build BuildID for the named
// project. LeaseToken identifies the build's project lease so the worker
// that finishes the build can release it, wherever it runs.
type BuildJob struct {
	BuildID    string    `json:"build_id"`
	Owner      string    `json:"owner"`
	Project    string    `json:"project"`
	LeaseToken string    `json:"lease_token"`
	Enqueued   time.Time `json:"enqueued"`
}

// Queue accepts build jobs and delivers them to workers.
type Queue interface {
	// Enqueue submits a job. Returns ErrQueueFull when the queue cannot
	// accept more work.
	Enqueue(ctx context.Context, job *BuildJob) error

	// Jobs is the delivery channel workers range over. It closes when the
	// queue shuts down.
	Jobs() <-chan *BuildJob

	// Close stops delivery and releases resources.
	Close() error
}
