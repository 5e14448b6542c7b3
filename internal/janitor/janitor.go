package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/docshost/internal/logfields"
)

// Janitor periodically removes leftover build workdirs. Workers clean up
// after themselves, but a crashed worker leaves its directory behind; the
// sweep reclaims those once they are older than maxAge.
type Janitor struct {
	scheduler gocron.Scheduler
	workRoot  string
	maxAge    time.Duration
}

// New creates a janitor sweeping workRoot every interval.
func New(workRoot string, interval, maxAge time.Duration) (*Janitor, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	j := &Janitor{scheduler: s, workRoot: workRoot, maxAge: maxAge}
	if _, err := s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(j.sweep),
		gocron.WithName("workdir-sweep"),
	); err != nil {
		return nil, fmt.Errorf("schedule sweep: %w", err)
	}
	return j, nil
}

// Start begins the periodic sweep.
func (j *Janitor) Start() {
	slog.Info("Starting janitor", slog.String("work_root", j.workRoot))
	j.scheduler.Start()
}

// Stop shuts the scheduler down, waiting for a running sweep to finish.
func (j *Janitor) Stop() error {
	return j.scheduler.Shutdown()
}

func (j *Janitor) sweep() {
	removed, err := j.SweepOnce(context.Background())
	if err != nil {
		slog.Error("Workdir sweep failed", logfields.Error(err))
		return
	}
	if removed > 0 {
		slog.Info("Workdir sweep removed stale directories", logfields.Count(removed))
	}
}

// SweepOnce removes every entry under the work root whose modification
// time is older than maxAge, returning how many were removed.
func (j *Janitor) SweepOnce(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(j.workRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read work root: %w", err)
	}

	cutoff := time.Now().Add(-j.maxAge)
	removed := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(j.workRoot, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			slog.Warn("Could not remove stale workdir", logfields.Path(path), logfields.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}
