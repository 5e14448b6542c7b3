package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FSStore is a filesystem-based implementation of ObjectStore. Objects live
// under basePath mirroring their key layout:
//
//	<basePath>/
//	  alice/
//	    demo/
//	      index.html
//	      api/client.html
//	      venv.tar.gz
type FSStore struct {
	basePath string
	mu       sync.RWMutex
}

// NewFSStore creates a filesystem-backed object store rooted at basePath.
func NewFSStore(basePath string) (*FSStore, error) {
	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", basePath, err)
	}
	return &FSStore{basePath: basePath}, nil
}

// Put stores an object, overwriting any existing object at the key.
func (s *FSStore) Put(ctx context.Context, key string, data []byte) error {
	path, err := s.objectPath(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write object %s: %w", key, err)
	}
	return nil
}

// Get retrieves an object by key.
func (s *FSStore) Get(ctx context.Context, key string) ([]byte, error) {
	path, err := s.objectPath(key)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	// #nosec G304 - path is rooted at basePath and the key is sanitized
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound{Key: key}
		}
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

// Exists checks whether an object is stored at key.
func (s *FSStore) Exists(ctx context.Context, key string) (bool, error) {
	path, err := s.objectPath(key)
	if err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat object %s: %w", key, err)
	}
	return true, nil
}

// Delete removes the object at key.
func (s *FSStore) Delete(ctx context.Context, key string) error {
	path, err := s.objectPath(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound{Key: key}
		}
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	// Prune now-empty parent directories up to the root, best effort.
	dir := filepath.Dir(path)
	for dir != s.basePath {
		if os.Remove(dir) != nil {
			break
		}
		dir = filepath.Dir(dir)
	}
	return nil
}

// ListPrefix returns all keys under prefix, sorted.
func (s *FSStore) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	cleaned := CleanKey(prefix)
	root := s.basePath
	if cleaned != "" {
		root = filepath.Join(s.basePath, filepath.FromSlash(cleaned))
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return nil
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk objects under %s: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close releases resources.
func (s *FSStore) Close() error { return nil }

func (s *FSStore) objectPath(key string) (string, error) {
	cleaned := CleanKey(key)
	if cleaned == "" || strings.Count(cleaned, "/") < 1 {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.basePath, filepath.FromSlash(cleaned)), nil
}
