package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/docshost/internal/archive"
	"git.home.luguber.info/inful/docshost/internal/generator"
)

// StageName identifies a pipeline stage in logs, metrics, and build output.
type StageName string

const (
	StageFetch      StageName = "fetch"
	StageExtract    StageName = "extract"
	StageRestoreEnv StageName = "restore_env"
	StageBuild      StageName = "build"
	StagePublish    StageName = "publish"
)

// StageFunc advances one build by one stage. An error aborts the build.
type StageFunc func(ctx context.Context, bc *BuildContext) error

// StageDef pairs a stage with its name for execution and reporting.
type StageDef struct {
	Name StageName
	Fn   StageFunc
}

// stages returns the build pipeline in execution order.
func (r *Runner) stages() []StageDef {
	return []StageDef{
		{StageFetch, r.stageFetch},
		{StageExtract, r.stageExtract},
		{StageRestoreEnv, r.stageRestoreEnv},
		{StageBuild, r.stageBuild},
		{StagePublish, r.stagePublish},
	}
}

func (r *Runner) stageFetch(ctx context.Context, bc *BuildContext) error {
	workDir := filepath.Join(r.workRoot, bc.Build.ID)
	if err := os.MkdirAll(workDir, 0o750); err != nil {
		return fmt.Errorf("create working directory: %w", err)
	}
	bc.WorkDir = workDir
	if err := r.builds.SetWorkDir(ctx, bc.Build.ID, workDir); err != nil {
		return err
	}

	src, err := r.fetcher.Fetch(ctx, bc.Project, workDir)
	if err != nil {
		return err
	}
	bc.Source = src
	return nil
}

func (r *Runner) stageExtract(ctx context.Context, bc *BuildContext) error {
	if bc.Source.CheckoutDir != "" {
		bc.SourceRoot = bc.Source.CheckoutDir
		return nil
	}
	root, err := archive.Extract(ctx, bc.Source.ArchivePath, bc.WorkDir)
	if err != nil {
		return err
	}
	bc.SourceRoot = root
	return nil
}

func (r *Runner) stageRestoreEnv(ctx context.Context, bc *BuildContext) error {
	hit, err := r.envCache.Restore(ctx, bc.Project.Owner, bc.Project.Name, bc.SourceRoot)
	if err != nil {
		return err
	}
	bc.EnvRestored = hit
	if hit {
		r.appendOutput(ctx, bc.Build.ID, "restored cached build environment")
	} else {
		r.appendOutput(ctx, bc.Build.ID, "no cached build environment, starting cold")
	}
	return nil
}

func (r *Runner) stageBuild(ctx context.Context, bc *BuildContext) error {
	kind := generator.Kind(bc.Project.Generator)
	if !kind.Valid() {
		kind = generator.Detect(bc.SourceRoot, bc.Project.DocsPath)
	}
	gen, err := generator.ForKind(kind)
	if err != nil {
		return err
	}
	bc.Generator = gen

	buildCtx := ctx
	if r.commandTimeout > 0 {
		var cancel context.CancelFunc
		buildCtx, cancel = context.WithTimeout(ctx, r.commandTimeout)
		defer cancel()
	}
	sink := func(line string) { r.appendOutput(ctx, bc.Build.ID, line) }
	if err := gen.Build(buildCtx, bc.SourceRoot, bc.Project.DocsPath, bc.manifestPath(), sink); err != nil {
		return err
	}
	bc.OutputDir = gen.OutputDir(bc.SourceRoot)
	return nil
}

// manifestPath resolves the project's dependency manifest within the
// extracted source tree. Empty when none is declared or the file is
// absent from this revision.
func (bc *BuildContext) manifestPath() string {
	if bc.Project.RequirementsPath == "" {
		return ""
	}
	path := filepath.Join(bc.SourceRoot, filepath.FromSlash(bc.Project.RequirementsPath))
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return ""
	}
	return path
}

func (r *Runner) stagePublish(ctx context.Context, bc *BuildContext) error {
	count, err := r.publisher.Publish(ctx, bc.Project.StorageKeyPrefix(), bc.OutputDir)
	if err != nil {
		return err
	}
	bc.Published = count

	// The build populated the environment directory in the source root;
	// persist it so the next build starts warm.
	if err := r.envCache.Save(ctx, bc.Project.Owner, bc.Project.Name, bc.SourceRoot); err != nil {
		return err
	}
	return nil
}
