package envcache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docshost/internal/storage"
)

func newCache(t *testing.T) *Cache {
	t.Helper()
	store, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store, "venv.tar.gz")
}

// seedEnv creates root/.venv with a couple of files, as a build tool would.
func seedEnv(t *testing.T, root string) {
	t.Helper()
	envDir := filepath.Join(root, DirName)
	require.NoError(t, os.MkdirAll(filepath.Join(envDir, "lib", "pkg"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(envDir, "marker.txt"), []byte("cached"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(envDir, "lib", "pkg", "mod.py"), []byte("x = 1"), 0o600))
}

func TestKey(t *testing.T) {
	c := newCache(t)
	assert.Equal(t, "alice/demo/venv.tar.gz", c.Key("alice", "demo"))
}

func TestRestoreMissIsCold(t *testing.T) {
	c := newCache(t)
	root := t.TempDir()
	hit, err := c.Restore(context.Background(), "alice", "demo", root)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NoDirExists(t, filepath.Join(root, DirName))
}

func TestSaveRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newCache(t)

	built := t.TempDir()
	seedEnv(t, built)
	require.NoError(t, c.Save(ctx, "alice", "demo", built))

	// A later build in a fresh tree gets the environment unpacked in place.
	next := t.TempDir()
	hit, err := c.Restore(ctx, "alice", "demo", next)
	require.NoError(t, err)
	require.True(t, hit)

	data, err := os.ReadFile(filepath.Join(next, DirName, "marker.txt"))
	require.NoError(t, err)
	assert.Equal(t, "cached", string(data))

	data, err = os.ReadFile(filepath.Join(next, DirName, "lib", "pkg", "mod.py"))
	require.NoError(t, err)
	assert.Equal(t, "x = 1", string(data))
}

func TestSaveWithoutEnvDirIsNoop(t *testing.T) {
	c := newCache(t)
	require.NoError(t, c.Save(context.Background(), "alice", "demo", t.TempDir()))

	hit, err := c.Restore(context.Background(), "alice", "demo", t.TempDir())
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRestoreIgnoresEntriesOutsideEnvDir(t *testing.T) {
	ctx := context.Background()
	c := newCache(t)

	built := t.TempDir()
	seedEnv(t, built)
	// A stray sibling next to the env dir must not be archived.
	require.NoError(t, os.WriteFile(filepath.Join(built, "index.md"), []byte("# hi"), 0o600))
	require.NoError(t, c.Save(ctx, "alice", "demo", built))

	next := t.TempDir()
	hit, err := c.Restore(ctx, "alice", "demo", next)
	require.NoError(t, err)
	require.True(t, hit)
	assert.NoFileExists(t, filepath.Join(next, "index.md"))
}

func TestDrop(t *testing.T) {
	ctx := context.Background()
	c := newCache(t)

	built := t.TempDir()
	seedEnv(t, built)
	require.NoError(t, c.Save(ctx, "alice", "demo", built))

	require.NoError(t, c.Drop(ctx, "alice", "demo"))
	hit, err := c.Restore(ctx, "alice", "demo", t.TempDir())
	require.NoError(t, err)
	assert.False(t, hit)

	// Dropping again is fine.
	require.NoError(t, c.Drop(ctx, "alice", "demo"))
}
