package generator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestDetect(t *testing.T) {
	t.Run("sphinx conf in docs", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "docs/conf.py", "project = 'x'")
		assert.Equal(t, KindSphinx, Detect(root, "docs"))
	})

	t.Run("sphinx conf under source", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "docs/source/conf.py", "project = 'x'")
		assert.Equal(t, KindSphinx, Detect(root, "docs"))
	})

	t.Run("jekyll config at root", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "_config.yml", "title: x")
		assert.Equal(t, KindJekyll, Detect(root, "docs"))
	})

	t.Run("markdown fallback", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "docs/index.md", "# hi")
		assert.Equal(t, KindMarkdown, Detect(root, "docs"))
	})

	t.Run("sphinx beats jekyll", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "docs/conf.py", "")
		writeFile(t, root, "_config.yml", "")
		assert.Equal(t, KindSphinx, Detect(root, "docs"))
	})
}

func TestForKind(t *testing.T) {
	for _, k := range []Kind{KindSphinx, KindJekyll, KindMarkdown} {
		g, err := ForKind(k)
		require.NoError(t, err)
		assert.Equal(t, k, g.Kind())
	}
	_, err := ForKind(Kind("latex"))
	assert.Error(t, err)
}

func TestSphinxCommands(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/conf.py", "")
	envDir := filepath.Join(root, ".venv")

	t.Run("without manifest", func(t *testing.T) {
		cmds := Sphinx{}.commands(root, "docs", "")
		require.Len(t, cmds, 1)
		assert.Equal(t, []string{"sphinx-build", "-b", "html",
			filepath.Join(root, "docs"), filepath.Join(root, "_build", "html")}, cmds[0].argv)
		assert.Contains(t, cmds[0].env, "PYTHONPATH="+envDir)
	})

	t.Run("manifest installs first", func(t *testing.T) {
		manifest := filepath.Join(root, "requirements.txt")
		cmds := Sphinx{}.commands(root, "docs", manifest)
		require.Len(t, cmds, 2)
		assert.Equal(t, []string{"pip", "install", "--target", envDir, "-r", manifest}, cmds[0].argv)
		assert.Equal(t, "sphinx-build", cmds[1].argv[0])
	})

	t.Run("source subdirectory layout", func(t *testing.T) {
		nested := t.TempDir()
		writeFile(t, nested, "docs/source/conf.py", "")
		cmds := Sphinx{}.commands(nested, "docs", "")
		require.Len(t, cmds, 1)
		assert.Contains(t, cmds[0].argv, filepath.Join(nested, "docs", "source"))
	})
}

func TestJekyllCommands(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "_config.yml", "title: x")

	t.Run("without manifest", func(t *testing.T) {
		cmds := Jekyll{}.commands(root, "docs", "")
		require.Len(t, cmds, 1)
		assert.Equal(t, []string{"jekyll", "build", "--source", root,
			"--destination", filepath.Join(root, "_site")}, cmds[0].argv)
	})

	t.Run("manifest bundles first", func(t *testing.T) {
		manifest := filepath.Join(root, "Gemfile")
		cmds := Jekyll{}.commands(root, "docs", manifest)
		require.Len(t, cmds, 2)
		assert.Equal(t, []string{"bundle", "install"}, cmds[0].argv)
		assert.Equal(t, []string{"bundle", "exec", "jekyll", "build"}, cmds[1].argv[:4])
		assert.Contains(t, cmds[1].env, "BUNDLE_GEMFILE="+manifest)
		assert.Contains(t, cmds[1].env, "BUNDLE_PATH="+filepath.Join(root, ".venv"))
	})
}

func TestOutputDirs(t *testing.T) {
	assert.Equal(t, filepath.Join("r", "_build", "html"), Sphinx{}.OutputDir("r"))
	assert.Equal(t, filepath.Join("r", "_site"), Jekyll{}.OutputDir("r"))
	assert.Equal(t, filepath.Join("r", "_rendered"), Markdown{}.OutputDir("r"))
}
