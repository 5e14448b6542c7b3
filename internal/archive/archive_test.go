package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hosterr "git.home.luguber.info/inful/docshost/internal/errors"
)

type tarEntry struct {
	name string
	body string
	dir  bool
}

func makeTarball(t *testing.T, dir string, entries []tarEntry) string {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0o644}
		if e.dir {
			hdr.Typeflag = tar.TypeDir
			hdr.Mode = 0o755
		} else {
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.body))
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if !e.dir {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	path := filepath.Join(dir, "source.tar.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func TestExtract(t *testing.T) {
	work := t.TempDir()
	archive := makeTarball(t, work, []tarEntry{
		{name: "alice-demo-abc123/", dir: true},
		{name: "alice-demo-abc123/docs/", dir: true},
		{name: "alice-demo-abc123/docs/index.md", body: "# hi"},
		{name: "alice-demo-abc123/README.md", body: "readme"},
	})

	root, err := Extract(context.Background(), archive, work)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(work, "alice-demo-abc123"), root)

	data, err := os.ReadFile(filepath.Join(root, "docs", "index.md"))
	require.NoError(t, err)
	assert.Equal(t, "# hi", string(data))

	// The payload is consumed by extraction.
	_, err = os.Stat(archive)
	assert.True(t, os.IsNotExist(err))
}

func TestExtractRemovesPayloadOnFailure(t *testing.T) {
	work := t.TempDir()
	bad := filepath.Join(work, "source.tar.gz")
	require.NoError(t, os.WriteFile(bad, []byte("definitely not gzip"), 0o600))

	_, err := Extract(context.Background(), bad, work)
	require.Error(t, err)
	assert.True(t, hosterr.IsCategory(err, hosterr.CategoryArchive))

	_, err = os.Stat(bad)
	assert.True(t, os.IsNotExist(err))
}

func TestExtractEmptyArchive(t *testing.T) {
	work := t.TempDir()
	archive := makeTarball(t, work, nil)

	_, err := Extract(context.Background(), archive, work)
	require.Error(t, err)
	assert.True(t, hosterr.IsCategory(err, hosterr.CategoryArchive))
}

func TestExtractStripsTraversalSegments(t *testing.T) {
	work := t.TempDir()
	archive := makeTarball(t, work, []tarEntry{
		{name: "root/", dir: true},
		{name: "root/../../escape.txt", body: "nope"},
	})

	root, err := Extract(context.Background(), archive, work)
	require.NoError(t, err)

	// Dot-dot segments collapse, so the file lands inside the tree.
	_, err = os.Stat(filepath.Join(filepath.Dir(work), "escape.txt"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "escape.txt"))
	assert.NoError(t, err)
}

func TestExtractSkipsSymlinks(t *testing.T) {
	work := t.TempDir()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "root/", Typeflag: tar.TypeDir, Mode: 0o755}))
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "root/link", Typeflag: tar.TypeSymlink, Linkname: "/etc/passwd", Mode: 0o777}))
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	archive := filepath.Join(work, "source.tar.gz")
	require.NoError(t, os.WriteFile(archive, buf.Bytes(), 0o600))

	root, err := Extract(context.Background(), archive, work)
	require.NoError(t, err)

	_, err = os.Lstat(filepath.Join(root, "link"))
	assert.True(t, os.IsNotExist(err))
}
