package generator

import (
	"context"
	"path/filepath"

	"git.home.luguber.info/inful/docshost/internal/envcache"
)

// Jekyll builds a site with the jekyll CLI. A Gemfile manifest, when
// present, is installed into the cached environment directory with
// bundler and the build runs under it. The rendered site lands in _site
// under the build root.
type Jekyll struct{}

func (Jekyll) Kind() Kind { return KindJekyll }

func (Jekyll) OutputDir(root string) string {
	return filepath.Join(root, "_site")
}

func (j Jekyll) Build(ctx context.Context, root, docsDir, manifest string, sink OutputSink) error {
	for _, c := range j.commands(root, docsDir, manifest) {
		if err := runStreaming(ctx, root, c.argv, c.env, sink); err != nil {
			return err
		}
	}
	return nil
}

func (j Jekyll) commands(root, docsDir, manifest string) []command {
	src := root
	if docsDir != "" && docsDir != "." && fileExists(filepath.Join(root, filepath.FromSlash(docsDir), "_config.yml")) {
		src = filepath.Join(root, filepath.FromSlash(docsDir))
	}
	buildArgv := []string{"jekyll", "build", "--source", src, "--destination", j.OutputDir(root)}
	if manifest == "" {
		return []command{{argv: buildArgv}}
	}

	envDir := filepath.Join(root, envcache.DirName)
	bundleEnv := []string{"BUNDLE_GEMFILE=" + manifest, "BUNDLE_PATH=" + envDir}
	return []command{
		{argv: []string{"bundle", "install"}, env: bundleEnv},
		{argv: append([]string{"bundle", "exec"}, buildArgv...), env: bundleEnv},
	}
}
