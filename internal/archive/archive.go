// Package archive unpacks provider source tarballs. Provider snapshots wrap
// the tree in a single versioned top-level directory (owner-repo-sha), so
// extraction reports that directory as the source root.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	hosterr "git.home.luguber.info/inful/docshost/internal/errors"
)

// maxFileSize bounds a single extracted file to keep a hostile archive from
// filling the disk.
const maxFileSize = 512 << 20

// Extract unpacks the gzipped tarball at archivePath into destDir and
// returns the extracted source root. The archive payload itself is removed
// whether or not extraction succeeds.
func Extract(ctx context.Context, archivePath, destDir string) (string, error) {
	defer func() { _ = os.Remove(archivePath) }()

	f, err := os.Open(archivePath) // #nosec G304 - path produced by the fetch stage
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return "", hosterr.ArchiveCorrupt("archive is not gzip", err)
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	var rootName string
	for {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", hosterr.ArchiveCorrupt("read tar entry", err)
		}

		name := cleanEntryName(hdr.Name)
		if name == "" {
			continue
		}
		if rootName == "" {
			rootName = strings.SplitN(name, "/", 2)[0]
		}

		target := filepath.Join(destDir, filepath.FromSlash(name))
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return "", hosterr.ArchiveCorrupt(fmt.Sprintf("entry escapes destination: %s", hdr.Name), nil)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o750); err != nil {
				return "", fmt.Errorf("create directory %s: %w", name, err)
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, hdr); err != nil {
				return "", err
			}
		default:
			// Symlinks and special files are dropped; published docs
			// never need them and links can point outside the tree.
		}
	}

	if rootName == "" {
		return "", hosterr.ArchiveCorrupt("archive is empty", nil)
	}
	return filepath.Join(destDir, rootName), nil
}

func writeEntry(target string, tr *tar.Reader, hdr *tar.Header) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode)&0o755) // #nosec G304
	if err != nil {
		return fmt.Errorf("create %s: %w", hdr.Name, err)
	}
	_, err = io.Copy(out, io.LimitReader(tr, maxFileSize))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return hosterr.ArchiveCorrupt(fmt.Sprintf("extract %s", hdr.Name), err)
	}
	return nil
}

func cleanEntryName(name string) string {
	parts := strings.Split(filepath.ToSlash(name), "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, "/")
}
