// Package generator abstracts the documentation build tool. Each supported
// tool knows how to turn a checked-out source tree into a static HTML tree
// and where that tree ends up. Subprocess-based generators stream their
// output line by line so build logs can be persisted as they happen.
package generator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Kind identifies a documentation build tool.
type Kind string

const (
	KindSphinx   Kind = "sphinx"
	KindJekyll   Kind = "jekyll"
	KindMarkdown Kind = "markdown"
)

// Valid reports whether k names a supported generator.
func (k Kind) Valid() bool {
	switch k {
	case KindSphinx, KindJekyll, KindMarkdown:
		return true
	}
	return false
}

// OutputSink receives one line of build output at a time.
type OutputSink func(line string)

// Generator renders a source tree into static HTML.
type Generator interface {
	// Kind names the build tool.
	Kind() Kind

	// Build renders the documentation found at docsDir (relative to root)
	// into OutputDir(root), streaming tool output to sink. manifest is the
	// absolute path of the project's dependency manifest, empty when the
	// project has none; generators that support one install it into the
	// environment directory before rendering. A tool failure is reported
	// as an error after all output has been delivered.
	Build(ctx context.Context, root, docsDir, manifest string, sink OutputSink) error

	// OutputDir is the directory under root holding the rendered site
	// after a successful Build.
	OutputDir(root string) string
}

// ForKind returns the generator for k.
func ForKind(k Kind) (Generator, error) {
	switch k {
	case KindSphinx:
		return &Sphinx{}, nil
	case KindJekyll:
		return &Jekyll{}, nil
	case KindMarkdown:
		return &Markdown{}, nil
	}
	return nil, fmt.Errorf("unsupported generator kind %q", k)
}

// Detect inspects a source tree and picks the generator its layout implies.
// Sphinx wins on conf.py, Jekyll on _config.yml; plain Markdown is the
// fallback so every project builds something.
func Detect(root, docsDir string) Kind {
	docs := filepath.Join(root, filepath.FromSlash(docsDir))
	if fileExists(filepath.Join(docs, "conf.py")) || fileExists(filepath.Join(docs, "source", "conf.py")) {
		return KindSphinx
	}
	if fileExists(filepath.Join(root, "_config.yml")) || fileExists(filepath.Join(docs, "_config.yml")) {
		return KindJekyll
	}
	return KindMarkdown
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
