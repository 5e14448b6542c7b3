package janitor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepRemovesOnlyStaleDirs(t *testing.T) {
	root := t.TempDir()

	stale := filepath.Join(root, "old-build")
	require.NoError(t, os.MkdirAll(filepath.Join(stale, "checkout"), 0o755))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	fresh := filepath.Join(root, "running-build")
	require.NoError(t, os.MkdirAll(fresh, 0o755))

	j, err := New(root, time.Minute, time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Stop() })

	removed, err := j.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.NoDirExists(t, stale)
	assert.DirExists(t, fresh)
}

func TestSweepMissingRootIsNoop(t *testing.T) {
	j, err := New(filepath.Join(t.TempDir(), "nope"), time.Minute, time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Stop() })

	removed, err := j.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, removed)
}
