// Package envcache persists a project's build environment (a tool
// virtualenv, gem bundle, or similar) between builds. The directory the
// build tools populate is tarred up after a successful build and unpacked
// into the source tree at the start of the next one, keyed next to the
// project's published artifacts.
package envcache

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/docshost/internal/logfields"
	"git.home.luguber.info/inful/docshost/internal/storage"
)

// DirName is the directory under the source root where build tools place
// the reusable environment. Generators install dependencies into it and
// the pipeline persists it across builds.
const DirName = ".venv"

const maxEntrySize = 512 << 20

// Cache stores one environment archive per project.
type Cache struct {
	store       storage.ObjectStore
	archiveName string // e.g. "venv.tar.gz"
}

// New creates an environment cache over the given store.
func New(store storage.ObjectStore, archiveName string) *Cache {
	return &Cache{store: store, archiveName: archiveName}
}

// Key returns the object-store key holding owner/project's environment.
func (c *Cache) Key(owner, project string) string {
	return owner + "/" + project + "/" + c.archiveName
}

// Restore unpacks the cached environment into root/DirName so the build
// runs against it. Returns false when no environment has been cached yet;
// the build then proceeds cold.
func (c *Cache) Restore(ctx context.Context, owner, project, root string) (bool, error) {
	key := c.Key(owner, project)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if storage.IsNotFound(err) {
			slog.Debug("No cached build environment", logfields.Owner(owner), logfields.Project(project))
			return false, nil
		}
		return false, fmt.Errorf("restore environment %s: %w", key, err)
	}

	if err := unpack(data, root); err != nil {
		return false, fmt.Errorf("unpack environment %s: %w", key, err)
	}
	slog.Info("Restored cached build environment", logfields.Owner(owner), logfields.Project(project), logfields.Key(key))
	return true, nil
}

// Save archives root/DirName for reuse by later builds. A missing
// environment directory is not an error; not every build produces one.
func (c *Cache) Save(ctx context.Context, owner, project, root string) error {
	envDir := filepath.Join(root, DirName)
	info, err := os.Stat(envDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat environment dir: %w", err)
	}
	if !info.IsDir() {
		return nil
	}

	data, err := pack(envDir)
	if err != nil {
		return fmt.Errorf("pack environment: %w", err)
	}
	key := c.Key(owner, project)
	if err := c.store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("save environment %s: %w", key, err)
	}
	slog.Info("Saved build environment", logfields.Owner(owner), logfields.Project(project), logfields.Key(key))
	return nil
}

// Drop removes the cached environment, forcing the next build to start
// cold. Missing entries are ignored.
func (c *Cache) Drop(ctx context.Context, owner, project string) error {
	err := c.store.Delete(ctx, c.Key(owner, project))
	if err != nil && !storage.IsNotFound(err) {
		return err
	}
	return nil
}

// pack tars envDir with entry names rooted at DirName.
func pack(envDir string) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	err := filepath.WalkDir(envDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(envDir, path)
		if err != nil {
			return err
		}
		name := DirName
		if rel != "." {
			name = DirName + "/" + filepath.ToSlash(rel)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return tw.WriteHeader(&tar.Header{
				Name: name + "/", Typeflag: tar.TypeDir, Mode: 0o755, ModTime: info.ModTime(),
			})
		case info.Mode().IsRegular():
			if err := tw.WriteHeader(&tar.Header{
				Name: name, Typeflag: tar.TypeReg, Mode: int64(info.Mode() & 0o755),
				Size: info.Size(), ModTime: info.ModTime(),
			}); err != nil {
				return err
			}
			f, err := os.Open(path) // #nosec G304 - path walked under the pipeline's env dir
			if err != nil {
				return err
			}
			defer f.Close()
			_, err = io.Copy(tw, f)
			return err
		default:
			// Symlinks and specials are not portable across builds.
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// unpack extracts an environment archive under root. Only entries inside
// DirName are accepted.
func unpack(data []byte, root string) error {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		name := filepath.ToSlash(filepath.Clean(filepath.FromSlash(hdr.Name)))
		if name != DirName && !strings.HasPrefix(name, DirName+"/") {
			continue
		}
		dest := filepath.Join(root, filepath.FromSlash(name))
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0o750); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
				return err
			}
			f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode)&0o755) // #nosec G304
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, io.LimitReader(tr, maxEntrySize)); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		}
	}
}
