// Package storage provides durable object storage for published artifacts and
// cached build environments, keyed by owner/project/relative-path.
package storage

import (
	"context"
	"fmt"
	"strings"
)

// ObjectStore is the durable store behind the artifact publisher and the
// static artifact server. Writers overwrite by key with no concurrency
// check; builds are idempotent regenerations, so the last writer wins.
type ObjectStore interface {
	// Put stores data under key, overwriting any existing object.
	Put(ctx context.Context, key string, data []byte) error

	// Get retrieves the object at key. Returns ErrNotFound if absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Exists reports whether an object is stored at key.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the object at key. Returns ErrNotFound if absent.
	Delete(ctx context.Context, key string) error

	// ListPrefix returns all keys under the given prefix, sorted.
	ListPrefix(ctx context.Context, prefix string) ([]string, error)

	// Close releases resources.
	Close() error
}

// ErrNotFound indicates no object is stored at the requested key.
type ErrNotFound struct {
	Key string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("object not found: %s", e.Key)
}

// IsNotFound reports whether err is an ErrNotFound.
func IsNotFound(err error) bool {
	_, ok := err.(ErrNotFound)
	return ok
}

// CleanKey normalizes a storage key: forward slashes, no leading slash, no
// empty or dot-dot segments. An empty result means the key was invalid.
func CleanKey(key string) string {
	parts := strings.Split(strings.ReplaceAll(key, "\\", "/"), "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, "/")
}
