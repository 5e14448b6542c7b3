// Package pipeline runs builds: a typed sequence of stages executed by a
// worker pool over a shared mutable build context, fed from a durable
// queue. A stage failure is terminal for that build; the pipeline's job is
// to produce a terminal Build record, never to panic or retry on its own.
package pipeline

import (
	"context"

	"git.home.luguber.info/inful/docshost/internal/build"
	"git.home.luguber.info/inful/docshost/internal/fetch"
	"git.home.luguber.info/inful/docshost/internal/generator"
	"git.home.luguber.info/inful/docshost/internal/registry"
)

// BuildContext is the mutable state threaded through the stages of one
// build. Each stage reads what earlier stages produced and fills in its
// own outputs; nothing here is shared between builds.
type BuildContext struct {
	Build   *build.Build
	Project *registry.Project

	// WorkDir is the per-build scratch directory, removed after the
	// terminal status is recorded.
	WorkDir string

	// Source is what the fetch stage materialized.
	Source *fetch.Source

	// SourceRoot is the extracted tree the build runs against.
	SourceRoot string

	// Generator is chosen before the build stage runs.
	Generator generator.Generator

	// EnvRestored records whether a cached environment was unpacked into
	// the source root before the build stage ran.
	EnvRestored bool

	// OutputDir holds the rendered site after the build stage.
	OutputDir string

	// Published counts uploaded artifacts after the publish stage.
	Published int
}

// AppendOutput adds a line to the build's captured output through the
// runner's sink. Stages use it for progress markers and generators stream
// subprocess output through it.
type OutputAppender func(ctx context.Context, line string)
