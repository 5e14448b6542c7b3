// Package publish uploads a rendered documentation tree into the object
// store under the project's key prefix, invalidating the serving cache per
// uploaded key so readers see the new artifacts immediately.
package publish

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	hosterr "git.home.luguber.info/inful/docshost/internal/errors"
	"git.home.luguber.info/inful/docshost/internal/logfields"
	"git.home.luguber.info/inful/docshost/internal/storage"
)

// Invalidator drops serving-cache entries for freshly uploaded keys.
// servecache.Cache satisfies it.
type Invalidator interface {
	Invalidate(key string)
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(string) {}

// Publisher copies rendered output into durable storage.
type Publisher struct {
	store storage.ObjectStore
	cache Invalidator
}

// New creates a publisher. cache may be nil when nothing serves reads.
func New(store storage.ObjectStore, cache Invalidator) *Publisher {
	if cache == nil {
		cache = noopInvalidator{}
	}
	return &Publisher{store: store, cache: cache}
}

// Publish walks outputDir and uploads every regular file to
// keyPrefix/relpath, returning the number of uploaded files. Keys are
// overwritten in place; files published by an earlier build and absent from
// this one are left behind rather than deleted, matching the append-only
// character of doc revisions.
func (p *Publisher) Publish(ctx context.Context, keyPrefix, outputDir string) (int, error) {
	uploaded := 0
	err := filepath.WalkDir(outputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(outputDir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path) // #nosec G304 - path comes from WalkDir
		if err != nil {
			return fmt.Errorf("read artifact %s: %w", rel, err)
		}
		key := keyPrefix + "/" + filepath.ToSlash(rel)
		if err := p.store.Put(ctx, key, data); err != nil {
			return hosterr.StorageUnavailable(fmt.Sprintf("upload %s", key), err)
		}
		p.cache.Invalidate(key)
		uploaded++
		return nil
	})
	if err != nil {
		return uploaded, err
	}
	if uploaded == 0 {
		return 0, hosterr.BuildToolFailure(fmt.Sprintf("build produced no artifacts under %s", outputDir), nil)
	}
	slog.Info("Published artifacts", logfields.Key(keyPrefix), logfields.Count(uploaded))
	return uploaded, nil
}

// PublishDiagnostics stores build logs next to the artifacts so operators
// can inspect a build after the working directory is gone. Log output goes
// to logs.txt; when the build failed the failure text also goes to
// errs.txt. Diagnostic upload is best effort.
func (p *Publisher) PublishDiagnostics(ctx context.Context, keyPrefix, output, failure string) {
	put := func(name, content string) {
		if content == "" {
			return
		}
		key := keyPrefix + "/" + name
		if err := p.store.Put(ctx, key, []byte(content)); err != nil {
			slog.Warn("Failed to store build diagnostics", logfields.Key(key), logfields.Error(err))
			return
		}
		p.cache.Invalidate(key)
	}
	put("logs.txt", output)
	put("errs.txt", failure)
}
