// Package lease enforces at-most-one in-flight build per project. The
// orchestrator acquires a Redis lease before creating a build and releases
// it when the build reaches a terminal status; the TTL bounds how long a
// crashed worker can hold a project hostage.
package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned when the project already has a build in flight.
var ErrHeld = errors.New("build already in flight for project")

// Manager hands out per-project leases.
type Manager struct {
	rdb *redis.Client
	ttl time.Duration
}

// New creates a lease manager. ttl bounds lease lifetime when the holder
// never releases.
func New(rdb *redis.Client, ttl time.Duration) *Manager {
	return &Manager{rdb: rdb, ttl: ttl}
}

// Lease is a held per-project lease. Release it when the build reaches a
// terminal status.
type Lease struct {
	mgr   *Manager
	key   string
	token string
}

func leaseKey(owner, project string) string {
	return fmt.Sprintf("docshost:lease:%s/%s", owner, project)
}

// Acquire takes the lease for (owner, project). token identifies the
// holder, usually the build ID. Returns ErrHeld when another build holds
// it.
func (m *Manager) Acquire(ctx context.Context, owner, project, token string) (*Lease, error) {
	key := leaseKey(owner, project)
	ok, err := m.rdb.SetNX(ctx, key, token, m.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	if !ok {
		return nil, ErrHeld
	}
	return &Lease{mgr: m, key: key, token: token}, nil
}

// releaseScript deletes the lease only while we still hold it, so a lease
// that expired and was re-acquired by a newer build is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Resume reconstructs a handle for a lease acquired elsewhere, typically by
// the orchestrator process, so the worker finishing the build can release
// it.
func (m *Manager) Resume(owner, project, token string) *Lease {
	return &Lease{mgr: m, key: leaseKey(owner, project), token: token}
}

// Release frees the lease if this holder still owns it.
func (l *Lease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.mgr.rdb, []string{l.key}, l.token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lease %s: %w", l.key, err)
	}
	return nil
}

// Holder reports the token currently holding (owner, project), if any.
func (m *Manager) Holder(ctx context.Context, owner, project string) (string, error) {
	val, err := m.rdb.Get(ctx, leaseKey(owner, project)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read lease holder: %w", err)
	}
	return val, nil
}
