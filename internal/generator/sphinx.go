package generator

import (
	"context"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/docshost/internal/envcache"
)

// Sphinx builds reStructuredText documentation with sphinx-build. A
// requirements manifest, when present, is installed into the cached
// environment directory first and exposed to sphinx-build via PYTHONPATH.
// The rendered site lands in _build/html under the build root.
type Sphinx struct{}

func (Sphinx) Kind() Kind { return KindSphinx }

func (Sphinx) OutputDir(root string) string {
	return filepath.Join(root, "_build", "html")
}

func (s Sphinx) Build(ctx context.Context, root, docsDir, manifest string, sink OutputSink) error {
	if err := os.MkdirAll(s.OutputDir(root), 0o750); err != nil {
		return err
	}
	for _, c := range s.commands(root, docsDir, manifest) {
		if err := runStreaming(ctx, root, c.argv, c.env, sink); err != nil {
			return err
		}
	}
	return nil
}

func (s Sphinx) commands(root, docsDir, manifest string) []command {
	src := filepath.Join(root, filepath.FromSlash(docsDir))
	// Layouts with a source/ subdirectory keep conf.py there.
	if fileExists(filepath.Join(src, "source", "conf.py")) && !fileExists(filepath.Join(src, "conf.py")) {
		src = filepath.Join(src, "source")
	}
	envDir := filepath.Join(root, envcache.DirName)

	var cmds []command
	if manifest != "" {
		cmds = append(cmds, command{
			argv: []string{"pip", "install", "--target", envDir, "-r", manifest},
		})
	}
	cmds = append(cmds, command{
		argv: []string{"sphinx-build", "-b", "html", src, s.OutputDir(root)},
		env:  []string{"PYTHONPATH=" + envDir},
	})
	return cmds
}
