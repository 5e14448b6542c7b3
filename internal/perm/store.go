package perm

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// Principal kinds stored in grant rows.
const (
	principalUser     = "user"
	principalTeam     = "team"
	principalEveryone = "everyone"
)

const grantSchema = `
	CREATE TABLE IF NOT EXISTS grants (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		principal_kind TEXT NOT NULL,
		principal      TEXT NOT NULL DEFAULT '',
		team_id        INTEGER NOT NULL DEFAULT 0,
		path           TEXT NOT NULL,
		action         TEXT NOT NULL,
		UNIQUE (principal_kind, principal, team_id, path, action)
	);
	CREATE INDEX IF NOT EXISTS idx_grants_path ON grants (path);
`

// Store persists permission grants. It shares the registry's database so
// team-grant evaluation can join against team membership.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// NewStore creates the grant store, ensuring its schema exists.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(grantSchema); err != nil {
		return nil, fmt.Errorf("create grants schema: %w", err)
	}
	return &Store{db: db}, nil
}

// GrantUser records that login holds action on path. Duplicate grants are
// ignored.
func (s *Store) GrantUser(ctx context.Context, login, path string, action Action) error {
	return s.insert(ctx, principalUser, login, 0, path, action)
}

// GrantTeam records that members of teamID hold action on path.
func (s *Store) GrantTeam(ctx context.Context, teamID int64, path string, action Action) error {
	return s.insert(ctx, principalTeam, "", teamID, path, action)
}

// GrantEveryone records a public grant of action on path.
func (s *Store) GrantEveryone(ctx context.Context, path string, action Action) error {
	return s.insert(ctx, principalEveryone, "", 0, path, action)
}

func (s *Store) insert(ctx context.Context, kind, principal string, teamID int64, path string, action Action) error {
	norm := NormalizePath(path)
	if norm == "" {
		return fmt.Errorf("path %q has no /owner/project/ prefix", path)
	}
	if !action.Valid() {
		return fmt.Errorf("unknown action %q", action)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO grants (principal_kind, principal, team_id, path, action)
		 VALUES (?, ?, ?, ?, ?)`, kind, principal, teamID, norm, string(action))
	if err != nil {
		return fmt.Errorf("insert grant: %w", err)
	}
	return nil
}

// ClearPath removes every grant row for path. Used by Sync before
// recreating a project's rows.
func (s *Store) ClearPath(ctx context.Context, path string) error {
	norm := NormalizePath(path)
	if norm == "" {
		return fmt.Errorf("path %q has no /owner/project/ prefix", path)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM grants WHERE path = ?`, norm); err != nil {
		return fmt.Errorf("clear grants for %s: %w", norm, err)
	}
	return nil
}

// userHolds reports whether a user-specific grant on path covers action.
func (s *Store) userHolds(ctx context.Context, login, path string, action Action) (bool, error) {
	return s.anyCovers(ctx, action,
		`SELECT action FROM grants WHERE principal_kind = ? AND principal = ? AND path = ?`,
		principalUser, login, path)
}

// teamHolds reports whether any team grant on path whose team includes
// login covers action.
func (s *Store) teamHolds(ctx context.Context, login, path string, action Action) (bool, error) {
	return s.anyCovers(ctx, action,
		`SELECT g.action FROM grants g
		 JOIN team_members tm ON tm.team_id = g.team_id
		 WHERE g.principal_kind = ? AND g.path = ? AND tm.login = ?`,
		principalTeam, path, login)
}

// everyoneHolds reports whether a public grant on path covers action.
func (s *Store) everyoneHolds(ctx context.Context, path string, action Action) (bool, error) {
	return s.anyCovers(ctx, action,
		`SELECT action FROM grants WHERE principal_kind = ? AND path = ?`,
		principalEveryone, path)
}

func (s *Store) anyCovers(ctx context.Context, action Action, query string, args ...any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("query grants: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var held string
		if err := rows.Scan(&held); err != nil {
			return false, fmt.Errorf("scan grant: %w", err)
		}
		if Action(held).implies(action) {
			return true, nil
		}
	}
	return false, rows.Err()
}
