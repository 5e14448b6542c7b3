package publish

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hosterr "git.home.luguber.info/inful/docshost/internal/errors"
	"git.home.luguber.info/inful/docshost/internal/storage"
)

type recordingInvalidator struct {
	keys []string
}

func (r *recordingInvalidator) Invalidate(key string) { r.keys = append(r.keys, key) }

func buildOutput(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return dir
}

func TestPublish(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)
	inv := &recordingInvalidator{}

	out := buildOutput(t, map[string]string{
		"index.html":      "<html>index</html>",
		"api/client.html": "<html>api</html>",
		"static/app.css":  "body {}",
	})

	n, err := New(store, inv).Publish(ctx, "alice/demo", out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	data, err := store.Get(ctx, "alice/demo/api/client.html")
	require.NoError(t, err)
	assert.Equal(t, "<html>api</html>", string(data))

	assert.ElementsMatch(t, []string{
		"alice/demo/index.html",
		"alice/demo/api/client.html",
		"alice/demo/static/app.css",
	}, inv.keys)
}

func TestPublishOverwritesPriorRevision(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)
	p := New(store, nil)

	require.NoError(t, store.Put(ctx, "alice/demo/index.html", []byte("old")))
	require.NoError(t, store.Put(ctx, "alice/demo/removed.html", []byte("stale")))

	out := buildOutput(t, map[string]string{"index.html": "new"})
	n, err := p.Publish(ctx, "alice/demo", out)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err := store.Get(ctx, "alice/demo/index.html")
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	// Keys from earlier revisions are kept, not swept.
	_, err = store.Get(ctx, "alice/demo/removed.html")
	assert.NoError(t, err)
}

func TestPublishEmptyOutputFails(t *testing.T) {
	store, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)

	_, err = New(store, nil).Publish(context.Background(), "alice/demo", t.TempDir())
	require.Error(t, err)
	assert.True(t, hosterr.IsCategory(err, hosterr.CategoryBuildTool))
}

func TestPublishDiagnostics(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)
	p := New(store, nil)

	p.PublishDiagnostics(ctx, "alice/demo", "line 1\nline 2\n", "boom")

	logs, err := store.Get(ctx, "alice/demo/logs.txt")
	require.NoError(t, err)
	assert.Equal(t, "line 1\nline 2\n", string(logs))

	errs, err := store.Get(ctx, "alice/demo/errs.txt")
	require.NoError(t, err)
	assert.Equal(t, "boom", string(errs))
}

func TestPublishDiagnosticsSkipsEmpty(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)

	New(store, nil).PublishDiagnostics(ctx, "alice/demo", "some output", "")

	_, err = store.Get(ctx, "alice/demo/errs.txt")
	assert.True(t, storage.IsNotFound(err))
}
