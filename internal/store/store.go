// Package store persists projects, subdomains, vulnerability records
// and users. Writes that create or delete many records flow through
// size-bounded batches: each batch commits atomically, but there is no
// rollback across batches - callers accept partial materialization when
// a later batch fails.
package store

import (
	"context"
	"errors"
	"time"
)

// MaxBatchSize is the maximum number of operations per atomic batch
const MaxBatchSize = 500

// ErrNotFound is returned when a referenced record does not exist
var ErrNotFound = errors.New("record not found")

// Collection names
const (
	CollectionProjects        = "projects"
	CollectionSubdomains      = "subdomains"
	CollectionVulnerabilities = "vulnerabilities"
	CollectionUsers           = "users"
)

// Project statuses
const (
	ProjectActive   = "active"
	ProjectArchived = "archived"
)

// Project is the aggregate root: it owns its subdomains, which own
// their vulnerability records
type Project struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	TargetDomain    string    `json:"targetDomain"`
	Status          string    `json:"status"`
	Owner           string    `json:"owner"`
	Team            []string  `json:"team"`
	SubdomainsCount int       `json:"subdomainsCount"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// AccessibleBy reports whether the given user owns the project or is a
// team member
func (p *Project) AccessibleBy(userID string) bool {
	if p.Owner == userID {
		return true
	}
	for _, member := range p.Team {
		if member == userID {
			return true
		}
	}
	return false
}

// Subdomain is one discovered hostname under a project
type Subdomain struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Name      string    `json:"name"`
	Hostname  string    `json:"hostname"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Vulnerability is one checklist record for a subdomain
type Vulnerability struct {
	ID          string    `json:"id"`
	SubdomainID string    `json:"subdomainId"`
	Type        string    `json:"type"`
	Severity    string    `json:"severity"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// User is a registered dashboard user
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ProjectStats summarizes a project for the dashboard
type ProjectStats struct {
	TotalSubdomains           int            `json:"totalSubdomains"`
	VulnerabilitiesByStatus   map[string]int `json:"vulnerabilitiesByStatus"`
	VulnerabilitiesBySeverity map[string]int `json:"vulnerabilitiesBySeverity"`
}

// OpKind distinguishes batch operation types
type OpKind int

const (
	OpPut OpKind = iota
	OpDelete
)

// Op is a single batched write. Put ops carry a typed record in Record;
// delete ops carry Collection and ID.
type Op struct {
	Kind       OpKind
	Collection string
	ID         string
	Record     any
}

// PutOp builds a create/replace operation for a typed record
func PutOp(record any) Op {
	return Op{Kind: OpPut, Record: record}
}

// DeleteOp builds a delete operation
func DeleteOp(collection, id string) Op {
	return Op{Kind: OpDelete, Collection: collection, ID: id}
}

// Store is the document-store surface the rest of the system depends on
type Store interface {
	// Users
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// Projects
	PutProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	ProjectsForUser(ctx context.Context, userID string) ([]*Project, error)
	ActiveProjectByName(ctx context.Context, owner, name string) (*Project, error)
	SetProjectStatus(ctx context.Context, id, status string) error
	SetProjectTeam(ctx context.Context, id string, team []string) error
	SetSubdomainsCount(ctx context.Context, id string, count int) error
	DeleteProject(ctx context.Context, id string) error

	// Subdomains
	GetSubdomain(ctx context.Context, id string) (*Subdomain, error)
	SubdomainsByProject(ctx context.Context, projectID string) ([]*Subdomain, error)

	// Vulnerabilities
	GetVulnerability(ctx context.Context, id string) (*Vulnerability, error)
	VulnerabilitiesBySubdomain(ctx context.Context, subdomainID string) ([]*Vulnerability, error)
	UpdateVulnerability(ctx context.Context, id, status, severity string) error

	// Stats
	ProjectStats(ctx context.Context, projectID string) (*ProjectStats, error)

	// BatchWrite commits all ops in one atomic batch. Implementations
	// must reject batches larger than MaxBatchSize.
	BatchWrite(ctx context.Context, ops []Op) error

	Close() error
}

// BulkWriter accumulates ops and commits them in MaxBatchSize-bounded
// batches. Flush must be called after the last Add; Commits reports how
// many batches were committed.
type BulkWriter struct {
	store   Store
	max     int
	ops     []Op
	commits int
}

// NewBulkWriter creates a writer bound to the store's batch limit
func NewBulkWriter(s Store) *BulkWriter {
	return &BulkWriter{store: s, max: MaxBatchSize}
}

// Add queues one op, committing the current batch first if it is full
func (w *BulkWriter) Add(ctx context.Context, op Op) error {
	w.ops = append(w.ops, op)
	if len(w.ops) >= w.max {
		return w.Flush(ctx)
	}
	return nil
}

// Flush commits any queued ops
func (w *BulkWriter) Flush(ctx context.Context) error {
	if len(w.ops) == 0 {
		return nil
	}
	if err := w.store.BatchWrite(ctx, w.ops); err != nil {
		return err
	}
	w.commits++
	w.ops = w.ops[:0]
	return nil
}

// Commits returns the number of committed batches so far
func (w *BulkWriter) Commits() int {
	return w.commits
}
