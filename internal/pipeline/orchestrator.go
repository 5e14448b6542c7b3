package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docshost/internal/build"
	hosterr "git.home.luguber.info/inful/docshost/internal/errors"
	"git.home.luguber.info/inful/docshost/internal/lease"
	"git.home.luguber.info/inful/docshost/internal/logfields"
	"git.home.luguber.info/inful/docshost/internal/metrics"
	"git.home.luguber.info/inful/docshost/internal/queue"
)

// ErrBuildInFlight is returned by Trigger when the project already has an
// unfinished build. No build record is created in that case, so sequence
// numbers stay gapless.
var ErrBuildInFlight = errors.New("a build is already in flight for this project")

// Orchestrator accepts build triggers: it takes the project lease, creates
// the build record, and enqueues the job for the worker pool.
type Orchestrator struct {
	builds   *build.Store
	projects ProjectSource
	leases   *lease.Manager
	queue    queue.Queue
	recorder metrics.Recorder
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(builds *build.Store, projects ProjectSource, leases *lease.Manager, q queue.Queue, rec metrics.Recorder) *Orchestrator {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Orchestrator{builds: builds, projects: projects, leases: leases, queue: q, recorder: rec}
}

// Trigger starts a build for owner/project. Returns the created build, or
// ErrBuildInFlight when the project lease is held, or a notfound error for
// unknown projects.
func (o *Orchestrator) Trigger(ctx context.Context, owner, project string) (*build.Build, error) {
	proj, err := o.projects.GetProject(ctx, owner, project)
	if err != nil {
		return nil, err
	}
	if proj.IsNone() {
		return nil, hosterr.NotFound(fmt.Sprintf("project %s/%s", owner, project))
	}

	token := uuid.NewString()
	held, err := o.leases.Acquire(ctx, owner, project, token)
	if err != nil {
		if errors.Is(err, lease.ErrHeld) {
			o.recorder.IncBuildRejected()
			return nil, ErrBuildInFlight
		}
		return nil, err
	}

	b, err := o.builds.Create(ctx, owner, project)
	if err != nil {
		_ = held.Release(ctx)
		return nil, err
	}

	job := &queue.BuildJob{BuildID: b.ID, Owner: owner, Project: project, LeaseToken: token}
	if err := o.queue.Enqueue(ctx, job); err != nil {
		// The record exists but no worker will pick it up; fail it so the
		// status is terminal and the lease is not stranded.
		_ = o.builds.AppendOutput(ctx, b.ID, "ERROR: enqueue failed: "+err.Error()+"\n")
		_ = o.builds.Finish(ctx, b.ID, build.StatusFailure)
		_ = held.Release(ctx)
		return nil, fmt.Errorf("enqueue build: %w", err)
	}

	slog.Info("Build triggered",
		logfields.BuildID(b.ID), logfields.Owner(owner), logfields.Project(project), logfields.BuildSeq(b.Seq))
	return b, nil
}
