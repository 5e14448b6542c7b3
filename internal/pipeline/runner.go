package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"git.home.luguber.info/inful/docshost/internal/build"
	"git.home.luguber.info/inful/docshost/internal/envcache"
	"git.home.luguber.info/inful/docshost/internal/fetch"
	"git.home.luguber.info/inful/docshost/internal/foundation"
	"git.home.luguber.info/inful/docshost/internal/lease"
	"git.home.luguber.info/inful/docshost/internal/logfields"
	"git.home.luguber.info/inful/docshost/internal/metrics"
	"git.home.luguber.info/inful/docshost/internal/publish"
	"git.home.luguber.info/inful/docshost/internal/queue"
	"git.home.luguber.info/inful/docshost/internal/registry"
)

// ProjectSource supplies project rows to the pipeline. registry.Store
// satisfies it.
type ProjectSource interface {
	GetProject(ctx context.Context, owner, name string) (foundation.Option[*registry.Project], error)
	TouchProject(ctx context.Context, owner, name string) error
}

// Runner executes one build job end to end: stages in sequence, terminal
// status exactly once, diagnostics published, working directory removed,
// lease released.
type Runner struct {
	builds         *build.Store
	projects       ProjectSource
	fetcher        fetch.Fetcher
	envCache       *envcache.Cache
	publisher      *publish.Publisher
	leases         *lease.Manager
	recorder       metrics.Recorder
	workRoot       string
	commandTimeout time.Duration
}

// RunnerConfig wires a Runner's collaborators.
type RunnerConfig struct {
	Builds         *build.Store
	Projects       ProjectSource
	Fetcher        fetch.Fetcher
	EnvCache       *envcache.Cache
	Publisher      *publish.Publisher
	Leases         *lease.Manager
	Recorder       metrics.Recorder
	WorkRoot       string
	CommandTimeout time.Duration
}

// NewRunner creates a build runner.
func NewRunner(cfg RunnerConfig) *Runner {
	rec := cfg.Recorder
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Runner{
		builds:         cfg.Builds,
		projects:       cfg.Projects,
		fetcher:        cfg.Fetcher,
		envCache:       cfg.EnvCache,
		publisher:      cfg.Publisher,
		leases:         cfg.Leases,
		recorder:       rec,
		workRoot:       cfg.WorkRoot,
		commandTimeout: cfg.CommandTimeout,
	}
}

// Run processes one job. Errors inside the pipeline are captured into the
// build record rather than returned; the returned error covers only
// bookkeeping failures the record could not absorb (unknown build, store
// write failure on the terminal transition).
func (r *Runner) Run(ctx context.Context, job *queue.BuildJob) error {
	started := time.Now()

	rec, err := r.builds.Get(ctx, job.BuildID)
	if err != nil {
		return err
	}
	if rec.IsNone() {
		return fmt.Errorf("build %s not found", job.BuildID)
	}
	b := rec.Unwrap()
	if b.Status.Terminal() {
		slog.Warn("Skipping already-finished build", logfields.BuildID(b.ID), logfields.Status(string(b.Status)))
		return nil
	}

	proj, err := r.projects.GetProject(ctx, job.Owner, job.Project)
	if err != nil {
		return err
	}

	bc := &BuildContext{Build: b}
	var failure error
	if proj.IsNone() {
		failure = fmt.Errorf("project %s/%s not registered", job.Owner, job.Project)
	} else {
		bc.Project = proj.Unwrap()
		failure = r.runStages(ctx, bc)
	}

	if err := r.finish(ctx, bc, job, failure); err != nil {
		return err
	}
	r.recorder.ObserveBuildDuration(time.Since(started))
	return nil
}

func (r *Runner) runStages(ctx context.Context, bc *BuildContext) error {
	for _, st := range r.stages() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("stage %s canceled: %w", st.Name, err)
		}
		r.appendOutput(ctx, bc.Build.ID, fmt.Sprintf("--- stage %s", st.Name))
		t0 := time.Now()
		err := st.Fn(ctx, bc)
		dur := time.Since(t0)
		r.recorder.ObserveStageDuration(string(st.Name), dur)
		slog.Debug("Stage finished",
			logfields.BuildID(bc.Build.ID), logfields.Stage(string(st.Name)),
			logfields.DurationMS(float64(dur.Milliseconds())), logfields.Error(err))
		if err != nil {
			return fmt.Errorf("stage %s: %w", st.Name, err)
		}
	}
	return nil
}

// finish records the terminal status, publishes diagnostics, cleans up the
// working directory, and releases the project lease. It runs for every
// build exactly once, success or failure.
func (r *Runner) finish(ctx context.Context, bc *BuildContext, job *queue.BuildJob, failure error) error {
	b := bc.Build
	status := build.StatusSuccess
	failureText := ""
	if failure != nil {
		status = build.StatusFailure
		failureText = failure.Error()
		r.appendOutput(ctx, b.ID, "ERROR: "+failureText)
	}

	if err := r.builds.Finish(ctx, b.ID, status); err != nil {
		return fmt.Errorf("record terminal status: %w", err)
	}
	r.recorder.IncBuildOutcome(outcomeLabel(status))

	if bc.Project != nil {
		if rec, err := r.builds.Get(ctx, b.ID); err == nil && rec.IsSome() {
			r.publisher.PublishDiagnostics(ctx, bc.Project.StorageKeyPrefix(), rec.Unwrap().Output, failureText)
		}
		if status == build.StatusSuccess {
			r.recorder.ObserveArtifactsPublished(bc.Published)
			if err := r.projects.TouchProject(ctx, bc.Project.Owner, bc.Project.Name); err != nil {
				slog.Warn("Failed to touch project after publish", logfields.Owner(bc.Project.Owner), logfields.Project(bc.Project.Name), logfields.Error(err))
			}
		}
	}

	if bc.WorkDir != "" {
		if err := os.RemoveAll(bc.WorkDir); err != nil {
			slog.Warn("Failed to remove working directory", logfields.Path(bc.WorkDir), logfields.Error(err))
		}
	}

	if r.leases != nil && job.LeaseToken != "" {
		if err := r.leases.Resume(job.Owner, job.Project, job.LeaseToken).Release(ctx); err != nil {
			slog.Warn("Failed to release build lease", logfields.Owner(job.Owner), logfields.Project(job.Project), logfields.Error(err))
		}
	}

	slog.Info("Build finished",
		logfields.BuildID(b.ID), logfields.Owner(job.Owner), logfields.Project(job.Project),
		logfields.BuildSeq(b.Seq), logfields.Status(string(status)), logfields.Count(bc.Published))
	return nil
}

func (r *Runner) appendOutput(ctx context.Context, buildID, line string) {
	if err := r.builds.AppendOutput(ctx, buildID, line+"\n"); err != nil {
		slog.Warn("Failed to append build output", logfields.BuildID(buildID), logfields.Error(err))
	}
}

func outcomeLabel(s build.Status) string {
	if s == build.StatusSuccess {
		return metrics.OutcomeSuccess
	}
	return metrics.OutcomeFailure
}
