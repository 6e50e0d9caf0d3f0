package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLite implements Store with a SQLite backend
type SQLite struct {
	db   *sql.DB
	path string
}

// NewSQLite opens (or creates) the database at dbPath. Pass ":memory:"
// for tests.
func NewSQLite(dbPath string) (*SQLite, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Enable foreign keys: forces leaf-first deletion order
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLite{db: db, path: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLite) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		name TEXT,
		password_hash TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		target_domain TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		owner TEXT NOT NULL,
		team TEXT NOT NULL DEFAULT '[]',
		subdomains_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_projects_owner ON projects(owner);
	CREATE INDEX IF NOT EXISTS idx_projects_name_status ON projects(name, status);

	CREATE TABLE IF NOT EXISTS subdomains (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		name TEXT NOT NULL,
		hostname TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (project_id) REFERENCES projects(id)
	);
	CREATE INDEX IF NOT EXISTS idx_subdomains_project ON subdomains(project_id);

	CREATE TABLE IF NOT EXISTS vulnerabilities (
		id TEXT PRIMARY KEY,
		subdomain_id TEXT NOT NULL,
		type TEXT NOT NULL,
		severity TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (subdomain_id) REFERENCES subdomains(id)
	);
	CREATE INDEX IF NOT EXISTS idx_vulns_subdomain ON vulnerabilities(subdomain_id);
	CREATE INDEX IF NOT EXISTS idx_vulns_status ON vulnerabilities(status);
	CREATE INDEX IF NOT EXISTS idx_vulns_severity ON vulnerabilities(severity);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

// ----- Users -----

func (s *SQLite) CreateUser(ctx context.Context, u *User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, u.ID, u.Email, u.Name, u.PasswordHash, u.CreatedAt)
	return err
}

func (s *SQLite) GetUser(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, created_at FROM users WHERE id = ?
	`, id)
	return scanUser(row)
}

func (s *SQLite) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, created_at FROM users WHERE email = ?
	`, email)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	var name sql.NullString
	err := row.Scan(&u.ID, &u.Email, &name, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Name = name.String
	return &u, nil
}

// ----- Projects -----

func (s *SQLite) PutProject(ctx context.Context, p *Project) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	team, err := json.Marshal(p.Team)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO projects (id, name, target_domain, status, owner, team, subdomains_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.TargetDomain, p.Status, p.Owner, string(team), p.SubdomainsCount, p.CreatedAt, p.UpdatedAt)
	return err
}

const projectColumns = `id, name, target_domain, status, owner, team, subdomains_count, created_at, updated_at`

func (s *SQLite) GetProject(ctx context.Context, id string) (*Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	return scanProject(row.Scan)
}

func (s *SQLite) ProjectsForUser(ctx context.Context, userID string) ([]*Project, error) {
	// Team is a JSON array; membership is checked after scanning
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*Project
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			continue
		}
		if p.AccessibleBy(userID) {
			results = append(results, p)
		}
	}
	return results, rows.Err()
}

func (s *SQLite) ActiveProjectByName(ctx context.Context, owner, name string) (*Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE owner = ? AND name = ? AND status = ? LIMIT 1`,
		owner, name, ProjectActive)
	return scanProject(row.Scan)
}

func scanProject(scan func(...any) error) (*Project, error) {
	var p Project
	var team string
	err := scan(&p.ID, &p.Name, &p.TargetDomain, &p.Status, &p.Owner, &team,
		&p.SubdomainsCount, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(team), &p.Team); err != nil {
		p.Team = nil
	}
	return &p, nil
}

func (s *SQLite) SetProjectStatus(ctx context.Context, id, status string) error {
	return s.updateProject(ctx, id, "status = ?", status)
}

func (s *SQLite) SetProjectTeam(ctx context.Context, id string, team []string) error {
	if team == nil {
		team = []string{}
	}
	data, err := json.Marshal(team)
	if err != nil {
		return err
	}
	return s.updateProject(ctx, id, "team = ?", string(data))
}

func (s *SQLite) SetSubdomainsCount(ctx context.Context, id string, count int) error {
	return s.updateProject(ctx, id, "subdomains_count = ?", count)
}

func (s *SQLite) updateProject(ctx context.Context, id, setClause string, value any) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET `+setClause+`, updated_at = ? WHERE id = ?`,
		value, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProject removes the project record itself. Its subdomains and
// vulnerabilities must already be gone: the foreign keys reject any
// other order.
func (s *SQLite) DeleteProject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ----- Subdomains -----

func (s *SQLite) GetSubdomain(ctx context.Context, id string) (*Subdomain, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, name, hostname, status, created_at, updated_at
		FROM subdomains WHERE id = ?
	`, id)
	return scanSubdomain(row.Scan)
}

func (s *SQLite) SubdomainsByProject(ctx context.Context, projectID string) ([]*Subdomain, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, name, hostname, status, created_at, updated_at
		FROM subdomains WHERE project_id = ? ORDER BY name
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*Subdomain
	for rows.Next() {
		sub, err := scanSubdomain(rows.Scan)
		if err != nil {
			continue
		}
		results = append(results, sub)
	}
	return results, rows.Err()
}

func scanSubdomain(scan func(...any) error) (*Subdomain, error) {
	var sub Subdomain
	var hostname sql.NullString
	err := scan(&sub.ID, &sub.ProjectID, &sub.Name, &hostname, &sub.Status,
		&sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	// Display alias falls back to the hostname itself
	sub.Hostname = hostname.String
	if sub.Hostname == "" {
		sub.Hostname = sub.Name
	}
	return &sub, nil
}

// ----- Vulnerabilities -----

func (s *SQLite) GetVulnerability(ctx context.Context, id string) (*Vulnerability, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, subdomain_id, type, severity, status, created_at, updated_at
		FROM vulnerabilities WHERE id = ?
	`, id)
	return scanVulnerability(row.Scan)
}

func (s *SQLite) VulnerabilitiesBySubdomain(ctx context.Context, subdomainID string) ([]*Vulnerability, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subdomain_id, type, severity, status, created_at, updated_at
		FROM vulnerabilities WHERE subdomain_id = ? ORDER BY created_at, id
	`, subdomainID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*Vulnerability
	for rows.Next() {
		v, err := scanVulnerability(rows.Scan)
		if err != nil {
			continue
		}
		results = append(results, v)
	}
	return results, rows.Err()
}

func scanVulnerability(scan func(...any) error) (*Vulnerability, error) {
	var v Vulnerability
	err := scan(&v.ID, &v.SubdomainID, &v.Type, &v.Severity, &v.Status,
		&v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *SQLite) UpdateVulnerability(ctx context.Context, id, status, severity string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE vulnerabilities
		SET status = COALESCE(NULLIF(?, ''), status),
		    severity = COALESCE(NULLIF(?, ''), severity),
		    updated_at = ?
		WHERE id = ?
	`, status, severity, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ----- Stats -----

func (s *SQLite) ProjectStats(ctx context.Context, projectID string) (*ProjectStats, error) {
	stats := &ProjectStats{
		VulnerabilitiesByStatus:   make(map[string]int),
		VulnerabilitiesBySeverity: make(map[string]int),
	}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subdomains WHERE project_id = ?`, projectID).
		Scan(&stats.TotalSubdomains)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT v.status, v.severity, COUNT(*)
		FROM vulnerabilities v
		JOIN subdomains sd ON v.subdomain_id = sd.id
		WHERE sd.project_id = ?
		GROUP BY v.status, v.severity
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var status, severity string
		var count int
		if err := rows.Scan(&status, &severity, &count); err != nil {
			continue
		}
		stats.VulnerabilitiesByStatus[status] += count
		stats.VulnerabilitiesBySeverity[severity] += count
	}
	return stats, rows.Err()
}

// ----- Batches -----

// BatchWrite commits all ops in one transaction. Batches above
// MaxBatchSize are rejected outright rather than silently split.
func (s *SQLite) BatchWrite(ctx context.Context, ops []Op) error {
	if len(ops) == 0 {
		return nil
	}
	if len(ops) > MaxBatchSize {
		return fmt.Errorf("batch of %d operations exceeds limit of %d", len(ops), MaxBatchSize)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, op := range ops {
		if err := s.applyOp(ctx, tx, op); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLite) applyOp(ctx context.Context, tx *sql.Tx, op Op) error {
	switch op.Kind {
	case OpDelete:
		var table string
		switch op.Collection {
		case CollectionProjects:
			table = "projects"
		case CollectionSubdomains:
			table = "subdomains"
		case CollectionVulnerabilities:
			table = "vulnerabilities"
		case CollectionUsers:
			table = "users"
		default:
			return fmt.Errorf("unknown collection %q", op.Collection)
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, op.ID)
		return err

	case OpPut:
		now := time.Now().UTC()
		switch r := op.Record.(type) {
		case *Subdomain:
			if r.CreatedAt.IsZero() {
				r.CreatedAt = now
			}
			r.UpdatedAt = now
			_, err := tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO subdomains (id, project_id, name, hostname, status, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, r.ID, r.ProjectID, r.Name, r.Hostname, r.Status, r.CreatedAt, r.UpdatedAt)
			return err
		case *Vulnerability:
			if r.CreatedAt.IsZero() {
				r.CreatedAt = now
			}
			r.UpdatedAt = now
			_, err := tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO vulnerabilities (id, subdomain_id, type, severity, status, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, r.ID, r.SubdomainID, r.Type, r.Severity, r.Status, r.CreatedAt, r.UpdatedAt)
			return err
		case *Project:
			if r.CreatedAt.IsZero() {
				r.CreatedAt = now
			}
			r.UpdatedAt = now
			team, err := json.Marshal(r.Team)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO projects (id, name, target_domain, status, owner, team, subdomains_count, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, r.ID, r.Name, r.TargetDomain, r.Status, r.Owner, string(team), r.SubdomainsCount, r.CreatedAt, r.UpdatedAt)
			return err
		default:
			return fmt.Errorf("unsupported record type %T", op.Record)
		}

	default:
		return fmt.Errorf("unknown op kind %d", op.Kind)
	}
}
