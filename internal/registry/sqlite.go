package registry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"git.home.luguber.info/inful/docshost/internal/foundation"
)

// Store persists accounts, projects, and teams in sqlite.
type Store struct {
	db *sql.DB
}

// NewStore creates the schema if needed and returns a Store over db.
func NewStore(db *sql.DB) (*Store, error) {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		login TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL,
		provider_token TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS projects (
		owner TEXT NOT NULL REFERENCES accounts(login),
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		private INTEGER NOT NULL DEFAULT 0,
		url TEXT NOT NULL DEFAULT '',
		git_url TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT '',
		generator TEXT NOT NULL DEFAULT '',
		docs_path TEXT NOT NULL DEFAULT 'docs',
		requirements_path TEXT NOT NULL DEFAULT '',
		pub_date INTEGER NOT NULL,
		mod_date INTEGER NOT NULL,
		PRIMARY KEY (owner, name)
	);
	CREATE TABLE IF NOT EXISTS project_collaborators (
		owner TEXT NOT NULL,
		project TEXT NOT NULL,
		login TEXT NOT NULL REFERENCES accounts(login),
		PRIMARY KEY (owner, project, login)
	);
	CREATE TABLE IF NOT EXISTS custom_domains (
		domain TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		project TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS teams (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		organization TEXT NOT NULL REFERENCES accounts(login),
		name TEXT NOT NULL,
		permission TEXT NOT NULL,
		UNIQUE (organization, name)
	);
	CREATE TABLE IF NOT EXISTS team_members (
		team_id INTEGER NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
		login TEXT NOT NULL REFERENCES accounts(login),
		PRIMARY KEY (team_id, login)
	);
	CREATE TABLE IF NOT EXISTS team_repos (
		team_id INTEGER NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
		project TEXT NOT NULL,
		PRIMARY KEY (team_id, project)
	);
	CREATE INDEX IF NOT EXISTS idx_projects_url ON projects(url);
	CREATE INDEX IF NOT EXISTS idx_projects_git_url ON projects(git_url);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("initialize registry schema: %w", err)
	}
	return &Store{db: db}, nil
}

// CreateAccount inserts an account.
func (s *Store) CreateAccount(ctx context.Context, a *Account) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO accounts (login, name, kind, provider_token) VALUES (?, ?, ?, ?)",
		a.Login, a.Name, string(a.Kind), a.ProviderToken)
	if err != nil {
		return fmt.Errorf("insert account %s: %w", a.Login, err)
	}
	return nil
}

// UpdateAccountToken replaces an account's provider token (OAuth refresh).
func (s *Store) UpdateAccountToken(ctx context.Context, login, token string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE accounts SET provider_token = ? WHERE login = ?", token, login)
	if err != nil {
		return fmt.Errorf("update account token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("account %s not found", login)
	}
	return nil
}

// GetAccount looks up an account by login; miss is a None, not an error.
func (s *Store) GetAccount(ctx context.Context, login string) (foundation.Option[*Account], error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT login, name, kind, provider_token FROM accounts WHERE login = ?", login)
	var a Account
	var kind string
	if err := row.Scan(&a.Login, &a.Name, &kind, &a.ProviderToken); err != nil {
		if err == sql.ErrNoRows {
			return foundation.None[*Account](), nil
		}
		return foundation.None[*Account](), fmt.Errorf("query account %s: %w", login, err)
	}
	a.Kind = AccountKind(kind)
	return foundation.Some(&a), nil
}

// CreateProject inserts a project; (owner, name) must be unique.
func (s *Store) CreateProject(ctx context.Context, p *Project) error {
	if p.DocsPath == "" {
		p.DocsPath = "docs"
	}
	now := time.Now()
	if p.PubDate.IsZero() {
		p.PubDate = now
	}
	if p.ModDate.IsZero() {
		p.ModDate = now
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects (owner, name, description, private, url, git_url, language,
			generator, docs_path, requirements_path, pub_date, mod_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Owner, p.Name, p.Description, boolToInt(p.Private), p.URL, p.GitURL,
		p.Language, p.Generator, p.DocsPath, p.RequirementsPath,
		p.PubDate.Unix(), p.ModDate.Unix())
	if err != nil {
		return fmt.Errorf("insert project %s/%s: %w", p.Owner, p.Name, err)
	}
	for _, d := range p.CustomDomains {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO custom_domains (domain, owner, project) VALUES (?, ?, ?)",
			strings.ToLower(d), p.Owner, p.Name); err != nil {
			return fmt.Errorf("insert custom domain %s: %w", d, err)
		}
	}
	for _, c := range p.Collaborators {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO project_collaborators (owner, project, login) VALUES (?, ?, ?)",
			p.Owner, p.Name, c); err != nil {
			return fmt.Errorf("insert collaborator %s: %w", c, err)
		}
	}
	return tx.Commit()
}

// UpdateProject rewrites a project's mutable fields along with its
// collaborator and custom-domain sets.
func (s *Store) UpdateProject(ctx context.Context, p *Project) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE projects SET description = ?, private = ?, url = ?, git_url = ?,
			language = ?, generator = ?, docs_path = ?, requirements_path = ?
		WHERE owner = ? AND name = ?`,
		p.Description, boolToInt(p.Private), p.URL, p.GitURL, p.Language,
		p.Generator, p.DocsPath, p.RequirementsPath, p.Owner, p.Name)
	if err != nil {
		return fmt.Errorf("update project %s/%s: %w", p.Owner, p.Name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("project %s/%s not found", p.Owner, p.Name)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM project_collaborators WHERE owner = ? AND project = ?", p.Owner, p.Name); err != nil {
		return fmt.Errorf("clear collaborators: %w", err)
	}
	for _, c := range p.Collaborators {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO project_collaborators (owner, project, login) VALUES (?, ?, ?)",
			p.Owner, p.Name, c); err != nil {
			return fmt.Errorf("insert collaborator %s: %w", c, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM custom_domains WHERE owner = ? AND project = ?", p.Owner, p.Name); err != nil {
		return fmt.Errorf("clear custom domains: %w", err)
	}
	for _, d := range p.CustomDomains {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO custom_domains (domain, owner, project) VALUES (?, ?, ?)",
			strings.ToLower(d), p.Owner, p.Name); err != nil {
			return fmt.Errorf("insert custom domain %s: %w", d, err)
		}
	}
	return tx.Commit()
}

// GetProject looks up a project by owner and name.
func (s *Store) GetProject(ctx context.Context, owner, name string) (foundation.Option[*Project], error) {
	return s.getProjectWhere(ctx, "owner = ? AND name = ?", owner, name)
}

// GetProjectByURL matches a project by its web URL or git URL. Webhook
// payloads identify repositories this way.
func (s *Store) GetProjectByURL(ctx context.Context, url string) (foundation.Option[*Project], error) {
	return s.getProjectWhere(ctx, "url = ? OR git_url = ?", url, url)
}

// GetProjectByDomain resolves a custom domain to its project.
func (s *Store) GetProjectByDomain(ctx context.Context, domain string) (foundation.Option[*Project], error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT owner, project FROM custom_domains WHERE domain = ?", strings.ToLower(domain))
	var owner, name string
	if err := row.Scan(&owner, &name); err != nil {
		if err == sql.ErrNoRows {
			return foundation.None[*Project](), nil
		}
		return foundation.None[*Project](), fmt.Errorf("query custom domain %s: %w", domain, err)
	}
	return s.GetProject(ctx, owner, name)
}

// ListProjects returns all projects for an owner, ordered by name.
func (s *Store) ListProjects(ctx context.Context, owner string) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner, name, description, private, url, git_url, language,
			generator, docs_path, requirements_path, pub_date, mod_date
		FROM projects WHERE owner = ? ORDER BY name`, owner)
	if err != nil {
		return nil, fmt.Errorf("query projects for %s: %w", owner, err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// TouchProject advances a project's modification date. The publisher calls
// this after a successful upload; the serving path uses the date as a cache
// validator.
func (s *Store) TouchProject(ctx context.Context, owner, name string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE projects SET mod_date = ? WHERE owner = ? AND name = ?",
		time.Now().Unix(), owner, name)
	if err != nil {
		return fmt.Errorf("touch project %s/%s: %w", owner, name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("project %s/%s not found", owner, name)
	}
	return nil
}

// CreateTeam inserts a team and its member/repo sets, returning the team ID.
func (s *Store) CreateTeam(ctx context.Context, t *Team) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO teams (organization, name, permission) VALUES (?, ?, ?)",
		t.Organization, t.Name, t.Permission)
	if err != nil {
		return 0, fmt.Errorf("insert team %s/%s: %w", t.Organization, t.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("team id: %w", err)
	}
	for _, m := range t.Members {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO team_members (team_id, login) VALUES (?, ?)", id, m); err != nil {
			return 0, fmt.Errorf("insert team member %s: %w", m, err)
		}
	}
	for _, r := range t.Repos {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO team_repos (team_id, project) VALUES (?, ?)", id, r); err != nil {
			return 0, fmt.Errorf("insert team repo %s: %w", r, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	t.ID = id
	return id, nil
}

// TeamsForProject returns the teams of the owning organization that hold the
// given project in their repo set.
func (s *Store) TeamsForProject(ctx context.Context, owner, name string) ([]Team, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.organization, t.name, t.permission
		FROM teams t JOIN team_repos tr ON tr.team_id = t.id
		WHERE t.organization = ? AND tr.project = ?`, owner, name)
	if err != nil {
		return nil, fmt.Errorf("query teams for %s/%s: %w", owner, name, err)
	}
	defer rows.Close()

	var teams []Team
	for rows.Next() {
		var t Team
		if err := rows.Scan(&t.ID, &t.Organization, &t.Name, &t.Permission); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		teams = append(teams, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range teams {
		members, err := s.teamMembers(ctx, teams[i].ID)
		if err != nil {
			return nil, err
		}
		teams[i].Members = members
	}
	return teams, nil
}

// IsTeamMember reports whether login is a member of the team.
func (s *Store) IsTeamMember(ctx context.Context, teamID int64, login string) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM team_members WHERE team_id = ? AND login = ?", teamID, login)
	var n int
	if err := row.Scan(&n); err != nil {
		return false, fmt.Errorf("query team membership: %w", err)
	}
	return n > 0, nil
}

// OwnersTokenHolders returns the logins and tokens of Owners-team members of
// the organization that hold a non-empty provider token, in login order.
func (s *Store) OwnersTokenHolders(ctx context.Context, org string) ([]Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.login, a.name, a.kind, a.provider_token
		FROM accounts a
		JOIN team_members tm ON tm.login = a.login
		JOIN teams t ON t.id = tm.team_id
		WHERE t.organization = ? AND t.name = ? AND a.provider_token != ''
		ORDER BY a.login`, org, OwnersTeamName)
	if err != nil {
		return nil, fmt.Errorf("query owners for %s: %w", org, err)
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		var a Account
		var kind string
		if err := rows.Scan(&a.Login, &a.Name, &kind, &a.ProviderToken); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.Kind = AccountKind(kind)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) teamMembers(ctx context.Context, teamID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT login FROM team_members WHERE team_id = ? ORDER BY login", teamID)
	if err != nil {
		return nil, fmt.Errorf("query team members: %w", err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) getProjectWhere(ctx context.Context, where string, args ...any) (foundation.Option[*Project], error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT owner, name, description, private, url, git_url, language,
			generator, docs_path, requirements_path, pub_date, mod_date
		FROM projects WHERE `+where, args...)
	p, err := scanProject(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return foundation.None[*Project](), nil
		}
		return foundation.None[*Project](), err
	}
	collabs, err := s.projectCollaborators(ctx, p.Owner, p.Name)
	if err != nil {
		return foundation.None[*Project](), err
	}
	p.Collaborators = collabs
	domains, err := s.projectDomains(ctx, p.Owner, p.Name)
	if err != nil {
		return foundation.None[*Project](), err
	}
	p.CustomDomains = domains
	return foundation.Some(p), nil
}

func (s *Store) projectCollaborators(ctx context.Context, owner, name string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT login FROM project_collaborators WHERE owner = ? AND project = ? ORDER BY login",
		owner, name)
	if err != nil {
		return nil, fmt.Errorf("query collaborators: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, fmt.Errorf("scan collaborator: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) projectDomains(ctx context.Context, owner, name string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT domain FROM custom_domains WHERE owner = ? AND project = ? ORDER BY domain",
		owner, name)
	if err != nil {
		return nil, fmt.Errorf("query custom domains: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanProject(row rowScanner) (*Project, error) {
	var p Project
	var private int
	var pub, mod int64
	err := row.Scan(&p.Owner, &p.Name, &p.Description, &private, &p.URL, &p.GitURL,
		&p.Language, &p.Generator, &p.DocsPath, &p.RequirementsPath, &pub, &mod)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan project: %w", err)
	}
	p.Private = private != 0
	p.PubDate = time.Unix(pub, 0)
	p.ModDate = time.Unix(mod, 0)
	return &p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
