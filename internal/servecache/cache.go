// Package servecache is a read-through in-memory cache in front of the
// object store, used by the static artifact server. The publisher
// invalidates entries per key as it uploads, so readers converge on fresh
// content without a full flush. A TTL can additionally bound staleness; it
// is off by default because key invalidation already covers the common
// path.
package servecache

import (
	"context"
	"sync"
	"time"

	"git.home.luguber.info/inful/docshost/internal/storage"
)

type entry struct {
	data    []byte
	modTime time.Time
	cached  time.Time
}

// Cache serves object reads, filling misses from the backing store.
type Cache struct {
	store storage.ObjectStore
	ttl   time.Duration // 0 disables expiry

	mu      sync.RWMutex
	entries map[string]entry

	hits   func()
	misses func()
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL bounds how long an entry may be served without re-reading the
// backing store. Zero keeps entries until invalidated.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithCounters installs hit and miss callbacks for metrics.
func WithCounters(hit, miss func()) Option {
	return func(c *Cache) {
		c.hits = hit
		c.misses = miss
	}
}

// New creates a cache over the given store.
func New(store storage.ObjectStore, opts ...Option) *Cache {
	c := &Cache{
		store:   store,
		entries: make(map[string]entry),
		hits:    func() {},
		misses:  func() {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the object at key, reading through to the store on a miss.
// Misses are not negatively cached: an absent key stays a store round-trip
// until the publisher writes it.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, time.Time, error) {
	key = storage.CleanKey(key)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && (c.ttl == 0 || time.Since(e.cached) < c.ttl) {
		c.hits()
		return e.data, e.modTime, nil
	}

	c.misses()
	data, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, time.Time{}, err
	}
	now := time.Now()
	c.mu.Lock()
	c.entries[key] = entry{data: data, modTime: now, cached: now}
	c.mu.Unlock()
	return data, now, nil
}

// Invalidate drops the entry for key, if cached. The publisher calls this
// for every key it uploads so the next read sees the new artifact.
func (c *Cache) Invalidate(key string) {
	key = storage.CleanKey(key)
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidatePrefix drops all entries whose key starts with prefix.
func (c *Cache) InvalidatePrefix(prefix string) {
	prefix = storage.CleanKey(prefix) + "/"
	c.mu.Lock()
	for k := range c.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
