package build

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docshost/internal/foundation"
)

// Store persists builds in sqlite.
type Store struct {
	db *sql.DB
}

// NewStore creates the schema if needed and returns a Store over db.
func NewStore(db *sql.DB) (*Store, error) {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		project TEXT NOT NULL,
		seq INTEGER NOT NULL,
		status TEXT NOT NULL,
		output TEXT NOT NULL DEFAULT '',
		work_dir TEXT NOT NULL DEFAULT '',
		started INTEGER NOT NULL,
		finished INTEGER,
		UNIQUE (owner, project, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_builds_project ON builds(owner, project);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("initialize build schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Create inserts a new build in UNKNOWN state, atomically assigning the next
// sequence number for the project. The (owner, project, seq) unique index
// backstops the subselect so concurrent creators can never produce a
// duplicate: a loser retries on the conflict.
func (s *Store) Create(ctx context.Context, owner, project string) (*Build, error) {
	b := &Build{
		ID:      uuid.NewString(),
		Owner:   owner,
		Project: project,
		Status:  StatusUnknown,
		Started: time.Now(),
	}

	const maxAttempts = 5
	for attempt := 0; attempt < maxAttempts; attempt++ {
		res, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO builds (id, owner, project, seq, status, started)
			SELECT ?, ?, ?, 1 + COALESCE(MAX(seq), 0), ?, ?
			FROM builds WHERE owner = ? AND project = ?`,
			b.ID, owner, project, string(StatusUnknown), b.Started.Unix(),
			owner, project)
		if err != nil {
			return nil, fmt.Errorf("insert build for %s/%s: %w", owner, project, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if n == 1 {
			row := s.db.QueryRowContext(ctx, "SELECT seq FROM builds WHERE id = ?", b.ID)
			if err := row.Scan(&b.Seq); err != nil {
				return nil, fmt.Errorf("read assigned seq: %w", err)
			}
			return b, nil
		}
		// Lost the race on the unique index; recompute and retry.
	}
	return nil, fmt.Errorf("assign build seq for %s/%s: contention not resolved after %d attempts", owner, project, maxAttempts)
}

// Get retrieves a build by ID; miss is a None, not an error.
func (s *Store) Get(ctx context.Context, id string) (foundation.Option[*Build], error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner, project, seq, status, output, work_dir, started, finished
		FROM builds WHERE id = ?`, id)
	b, err := scanBuild(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return foundation.None[*Build](), nil
		}
		return foundation.None[*Build](), err
	}
	return foundation.Some(b), nil
}

// List returns a project's builds ordered by sequence number descending.
func (s *Store) List(ctx context.Context, owner, project string, limit int) ([]Build, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, project, seq, status, output, work_dir, started, finished
		FROM builds WHERE owner = ? AND project = ?
		ORDER BY seq DESC LIMIT ?`, owner, project, limit)
	if err != nil {
		return nil, fmt.Errorf("query builds for %s/%s: %w", owner, project, err)
	}
	defer rows.Close()

	var out []Build
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// AppendOutput appends a chunk to a build's captured output. Called once per
// streamed subprocess line, so the output is observable while the build runs.
func (s *Store) AppendOutput(ctx context.Context, id, chunk string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE builds SET output = output || ? WHERE id = ?", chunk, id)
	if err != nil {
		return fmt.Errorf("append build output: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("build %s not found", id)
	}
	return nil
}

// SetWorkDir records the build's working directory once known.
func (s *Store) SetWorkDir(ctx context.Context, id, dir string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE builds SET work_dir = ? WHERE id = ?", dir, id)
	if err != nil {
		return fmt.Errorf("set build work dir: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("build %s not found", id)
	}
	return nil
}

// Finish transitions a build to its terminal status. The guard clause makes
// the transition idempotent-safe: a build that already reached a terminal
// state is never rewritten.
func (s *Store) Finish(ctx context.Context, id string, status Status) error {
	if !status.Terminal() {
		return fmt.Errorf("finish build %s: status %s is not terminal", id, status)
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE builds SET status = ?, finished = ? WHERE id = ? AND status = ?",
		string(status), time.Now().Unix(), id, string(StatusUnknown))
	if err != nil {
		return fmt.Errorf("finish build %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("build %s not found or already finished", id)
	}
	return nil
}

func scanBuild(row interface{ Scan(...any) error }) (*Build, error) {
	var b Build
	var status string
	var started int64
	var finished sql.NullInt64
	err := row.Scan(&b.ID, &b.Owner, &b.Project, &b.Seq, &status, &b.Output,
		&b.WorkDir, &started, &finished)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan build: %w", err)
	}
	b.Status = Status(status)
	b.Started = time.Unix(started, 0)
	if finished.Valid {
		b.Finished = time.Unix(finished.Int64, 0)
	}
	return &b, nil
}
