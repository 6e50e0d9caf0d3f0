// Package recon turns enumeration results into persisted projects and
// enforces the ownership and deletion rules around them. All bulk
// writes flow through the store's bounded batch writer; deletes are
// leaf-first so no orphaned child record can survive a failure.
package recon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/G381N/BugBesty/internal/catalog"
	"github.com/G381N/BugBesty/internal/store"
)

var (
	// ErrForbidden is returned when the user neither owns the project
	// nor belongs to its team
	ErrForbidden = errors.New("access denied")

	// ErrConflict is returned when an active project with the same name
	// already holds subdomains
	ErrConflict = errors.New("an active project with this name already exists")

	// ErrInvalidInput is returned for empty or malformed request fields
	ErrInvalidInput = errors.New("invalid input")
)

// Service coordinates project lifecycle, materialization and stats
type Service struct {
	store     store.Store
	checklist []catalog.Entry
	log       *logrus.Entry
}

// NewService builds a service writing the given vulnerability checklist
// under every materialized subdomain
func NewService(st store.Store, checklist []catalog.Entry, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Service{
		store:     st,
		checklist: checklist,
		log:       log.WithField("component", "recon"),
	}
}

// EnsureProject returns a fresh active project for (owner, name). An
// existing active project with subdomains is a conflict; an empty one
// is archived and replaced.
func (s *Service) EnsureProject(ctx context.Context, userID, name, targetDomain string) (*store.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: project name is required", ErrInvalidInput)
	}
	if targetDomain == "" {
		targetDomain = name
	}

	existing, err := s.store.ActiveProjectByName(ctx, userID, name)
	switch {
	case err == nil:
		if existing.SubdomainsCount > 0 {
			return nil, ErrConflict
		}
		// stale empty project from an aborted run: archive, don't block
		if err := s.store.SetProjectStatus(ctx, existing.ID, store.ProjectArchived); err != nil {
			return nil, fmt.Errorf("archiving empty project: %w", err)
		}
		s.log.WithFields(logrus.Fields{"project": existing.ID, "name": name}).
			Info("archived empty duplicate project")
	case errors.Is(err, store.ErrNotFound):
		// no duplicate, proceed
	default:
		return nil, err
	}

	now := time.Now().UTC()
	project := &store.Project{
		ID:           uuid.NewString(),
		Name:         name,
		TargetDomain: targetDomain,
		Status:       store.ProjectActive,
		Owner:        userID,
		Team:         []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.PutProject(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// ActiveProject returns the caller's active project with the given
// name, for resuming a chunked enumeration into an existing run
func (s *Service) ActiveProject(ctx context.Context, userID, name string) (*store.Project, error) {
	return s.store.ActiveProjectByName(ctx, userID, strings.TrimSpace(name))
}

// Materialize persists the hostnames under the project: one subdomain
// record plus the full vulnerability checklist per hostname, written in
// sorted order through bounded batches. Hostnames already present under
// the project are skipped, so successive chunk windows merge instead of
// duplicating rows. The project's subdomainsCount is updated only after
// every batch committed. Returns the project's total subdomain count.
func (s *Service) Materialize(ctx context.Context, projectID string, hostnames []string) (int, error) {
	existing, err := s.store.SubdomainsByProject(ctx, projectID)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]struct{}, len(existing)+len(hostnames))
	for _, sub := range existing {
		seen[sub.Name] = struct{}{}
	}

	cleaned := make([]string, 0, len(hostnames))
	for _, h := range hostnames {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		cleaned = append(cleaned, h)
	}
	sort.Strings(cleaned)

	w := store.NewBulkWriter(s.store)
	now := time.Now().UTC()
	for _, hostname := range cleaned {
		sub := &store.Subdomain{
			ID:        uuid.NewString(),
			ProjectID: projectID,
			Name:      hostname,
			Hostname:  hostname,
			Status:    catalog.StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := w.Add(ctx, store.PutOp(sub)); err != nil {
			return 0, fmt.Errorf("materializing %s: %w", hostname, err)
		}
		for _, entry := range s.checklist {
			vuln := &store.Vulnerability{
				ID:          uuid.NewString(),
				SubdomainID: sub.ID,
				Type:        entry.Type,
				Severity:    entry.Severity,
				Status:      catalog.StatusPending,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := w.Add(ctx, store.PutOp(vuln)); err != nil {
				return 0, fmt.Errorf("materializing %s: %w", hostname, err)
			}
		}
	}
	if err := w.Flush(ctx); err != nil {
		return 0, err
	}
	total := len(existing) + len(cleaned)
	if err := s.store.SetSubdomainsCount(ctx, projectID, total); err != nil {
		return 0, err
	}

	s.log.WithFields(logrus.Fields{
		"project": projectID,
		"written": len(cleaned),
		"total":   total,
		"batches": w.Commits(),
	}).Info("materialized enumeration results")
	return total, nil
}

// CreateProjectWithSubdomains handles a manual hostname upload: blank
// entries are dropped, the rest trimmed, then materialized like an
// enumeration run
func (s *Service) CreateProjectWithSubdomains(ctx context.Context, userID, name string, hostnames []string) (*store.Project, int, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, 0, err
	}
	project, err := s.EnsureProject(ctx, userID, name, name)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.Materialize(ctx, project.ID, hostnames)
	if err != nil {
		return nil, 0, err
	}
	project.SubdomainsCount = count
	return project, count, nil
}

// authorizeProject loads the project and checks owner/team access
func (s *Service) authorizeProject(ctx context.Context, userID, projectID string) (*store.Project, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !project.AccessibleBy(userID) {
		return nil, ErrForbidden
	}
	return project, nil
}

// Project returns one project after an access check
func (s *Service) Project(ctx context.Context, userID, projectID string) (*store.Project, error) {
	return s.authorizeProject(ctx, userID, projectID)
}

// Projects lists every project the user owns or belongs to
func (s *Service) Projects(ctx context.Context, userID string) ([]*store.Project, error) {
	return s.store.ProjectsForUser(ctx, userID)
}

// Subdomains lists a project's subdomains after an access check
func (s *Service) Subdomains(ctx context.Context, userID, projectID string) ([]*store.Subdomain, error) {
	if _, err := s.authorizeProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.store.SubdomainsByProject(ctx, projectID)
}

// Subdomain returns one subdomain after an access check through its project
func (s *Service) Subdomain(ctx context.Context, userID, subdomainID string) (*store.Subdomain, error) {
	sub, err := s.store.GetSubdomain(ctx, subdomainID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizeProject(ctx, userID, sub.ProjectID); err != nil {
		return nil, err
	}
	return sub, nil
}

// Vulnerabilities lists a subdomain's checklist after an access check
func (s *Service) Vulnerabilities(ctx context.Context, userID, subdomainID string) ([]*store.Vulnerability, error) {
	if _, err := s.Subdomain(ctx, userID, subdomainID); err != nil {
		return nil, err
	}
	return s.store.VulnerabilitiesBySubdomain(ctx, subdomainID)
}

// UpdateVulnerability patches status and/or severity on one checklist
// record. Empty fields keep their stored values.
func (s *Service) UpdateVulnerability(ctx context.Context, userID, vulnID, status, severity string) (*store.Vulnerability, error) {
	if status == "" && severity == "" {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	if status != "" && !catalog.ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	if severity != "" && !catalog.ValidSeverity(severity) {
		return nil, fmt.Errorf("%w: unknown severity %q", ErrInvalidInput, severity)
	}

	vuln, err := s.store.GetVulnerability(ctx, vulnID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Subdomain(ctx, userID, vuln.SubdomainID); err != nil {
		return nil, err
	}
	if err := s.store.UpdateVulnerability(ctx, vulnID, status, severity); err != nil {
		return nil, err
	}
	return s.store.GetVulnerability(ctx, vulnID)
}

// DeleteProject removes the project and its whole subtree. Children go
// first: per subdomain its vulnerabilities, then the subdomain itself,
// batch-bounded; the project record is deleted last, outside the
// batches, so a partial failure always leaves the project visible.
func (s *Service) DeleteProject(ctx context.Context, userID, projectID string) error {
	if _, err := s.authorizeProject(ctx, userID, projectID); err != nil {
		return err
	}

	subs, err := s.store.SubdomainsByProject(ctx, projectID)
	if err != nil {
		return err
	}

	w := store.NewBulkWriter(s.store)
	for _, sub := range subs {
		vulns, err := s.store.VulnerabilitiesBySubdomain(ctx, sub.ID)
		if err != nil {
			return err
		}
		for _, vuln := range vulns {
			if err := w.Add(ctx, store.DeleteOp(store.CollectionVulnerabilities, vuln.ID)); err != nil {
				return err
			}
		}
		if err := w.Add(ctx, store.DeleteOp(store.CollectionSubdomains, sub.ID)); err != nil {
			return err
		}
	}
	if err := w.Flush(ctx); err != nil {
		return err
	}

	if err := s.store.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{
		"project":    projectID,
		"subdomains": len(subs),
		"batches":    w.Commits(),
	}).Info("deleted project")
	return nil
}

// DeleteSubdomain removes one subdomain and its checklist, leaf-first,
// then fixes the project's subdomain count
func (s *Service) DeleteSubdomain(ctx context.Context, userID, subdomainID string) error {
	sub, err := s.store.GetSubdomain(ctx, subdomainID)
	if err != nil {
		return err
	}
	project, err := s.authorizeProject(ctx, userID, sub.ProjectID)
	if err != nil {
		return err
	}

	vulns, err := s.store.VulnerabilitiesBySubdomain(ctx, subdomainID)
	if err != nil {
		return err
	}
	w := store.NewBulkWriter(s.store)
	for _, vuln := range vulns {
		if err := w.Add(ctx, store.DeleteOp(store.CollectionVulnerabilities, vuln.ID)); err != nil {
			return err
		}
	}
	if err := w.Add(ctx, store.DeleteOp(store.CollectionSubdomains, subdomainID)); err != nil {
		return err
	}
	if err := w.Flush(ctx); err != nil {
		return err
	}

	count := project.SubdomainsCount - 1
	if count < 0 {
		count = 0
	}
	return s.store.SetSubdomainsCount(ctx, project.ID, count)
}

// SetProjectStatus patches a project's lifecycle status
func (s *Service) SetProjectStatus(ctx context.Context, userID, projectID, status string) error {
	if status != store.ProjectActive && status != store.ProjectArchived {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	if _, err := s.authorizeProject(ctx, userID, projectID); err != nil {
		return err
	}
	return s.store.SetProjectStatus(ctx, projectID, status)
}

// SetProjectTeam replaces a project's team list; only the owner may do this
func (s *Service) SetProjectTeam(ctx context.Context, userID, projectID string, team []string) error {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if project.Owner != userID {
		return ErrForbidden
	}
	if team == nil {
		team = []string{}
	}
	return s.store.SetProjectTeam(ctx, projectID, team)
}

// Stats summarizes a project for the dashboard
func (s *Service) Stats(ctx context.Context, userID, projectID string) (*store.ProjectStats, error) {
	if _, err := s.authorizeProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.store.ProjectStats(ctx, projectID)
}
