package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/docshost/internal/logfields"
	"git.home.luguber.info/inful/docshost/internal/queue"
)

// Pool runs a fixed number of workers pulling jobs from the queue. Workers
// exit when the queue closes or the context is canceled; StopAndWait
// bounds the drain.
type Pool struct {
	runner  *Runner
	queue   queue.Queue
	workers int

	mu       sync.Mutex
	wg       sync.WaitGroup
	stopping bool
}

// NewPool creates a worker pool of the given size.
func NewPool(runner *Runner, q queue.Queue, workers int) *Pool {
	if workers <= 0 {
		workers = 2
	}
	return &Pool{runner: runner, queue: q, workers: workers}
}

// Start launches the workers. Safe to call once.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopping {
		return
	}
	for i := 0; i < p.workers; i++ {
		name := fmt.Sprintf("worker-%d", i)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.work(ctx, name)
		}()
	}
	slog.Info("Build worker pool started", logfields.Count(p.workers))
}

func (p *Pool) work(ctx context.Context, name string) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.queue.Jobs():
			if !ok {
				return
			}
			slog.Debug("Worker picked up job", logfields.Worker(name), logfields.BuildID(job.BuildID))
			if err := p.runner.Run(ctx, job); err != nil {
				slog.Error("Build job failed outside the pipeline",
					logfields.Worker(name), logfields.BuildID(job.BuildID), logfields.Error(err))
			}
		}
	}
}

// StopAndWait prevents new workers and waits for in-flight builds, bounded
// by ctx.
func (p *Pool) StopAndWait(ctx context.Context) error {
	p.mu.Lock()
	p.stopping = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
