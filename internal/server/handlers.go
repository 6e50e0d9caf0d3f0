package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/G381N/BugBesty/internal/auth"
	"github.com/G381N/BugBesty/internal/enum"
	"github.com/G381N/BugBesty/internal/recon"
	"github.com/G381N/BugBesty/internal/report"
	"github.com/G381N/BugBesty/internal/store"
	"github.com/G381N/BugBesty/internal/version"
)

// writeError maps service errors onto HTTP status codes
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, recon.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
	case errors.Is(err, recon.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, recon.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": version.Version,
		"uptime":  time.Since(s.sessionStore.ServerEpoch()).Round(time.Second).String(),
	})
}

func (s *Server) getVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":    version.Version,
		"commit":     version.Commit,
		"build_date": version.BuildDate,
	})
}

// startEnumeration creates a project for the domain, fans out to the
// OSINT sources (optionally one chunk window at a time) and persists
// the merged results
func (s *Server) startEnumeration(c *gin.Context) {
	var req struct {
		Domain    string `json:"domain" binding:"required"`
		StartFrom *int   `json:"startFrom"`
		ChunkSize int    `json:"chunkSize"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "domain is required"})
		return
	}
	userID := c.GetString(auth.ContextUserID)
	ctx := c.Request.Context()

	startFrom := 0
	if req.StartFrom != nil {
		startFrom = *req.StartFrom
	}

	// resuming a later chunk merges into the run's existing project;
	// only the first window creates one
	var project *store.Project
	var err error
	if startFrom > 0 {
		project, err = s.recon.ActiveProject(ctx, userID, req.Domain)
	} else {
		project, err = s.recon.EnsureProject(ctx, userID, req.Domain, req.Domain)
	}
	if err != nil {
		writeError(c, err)
		return
	}

	var result *enum.Result
	if req.StartFrom != nil || req.ChunkSize > 0 {
		chunk := req.ChunkSize
		if chunk <= 0 {
			chunk = s.config.ChunkSize
		}
		result, err = s.orchestrator.EnumerateFrom(ctx, req.Domain, startFrom, chunk)
	} else {
		result, err = s.orchestrator.Enumerate(ctx, req.Domain)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	count, err := s.recon.Materialize(ctx, project.ID, result.Subdomains)
	if err != nil {
		writeError(c, err)
		return
	}
	project.SubdomainsCount = count

	s.wsHub.Broadcast(WebSocketMessage{
		Type: "enumeration_complete",
		Data: map[string]any{"projectId": project.ID, "subdomains": count, "done": result.Done},
	})

	c.JSON(http.StatusCreated, gin.H{
		"project":          project,
		"subdomainsCount":  count,
		"sources":          result.Sources,
		"completedSources": result.CompletedSources,
		"nextFrom":         result.NextFrom,
		"done":             result.Done,
		"message":          fmt.Sprintf("Enumeration found %d subdomains", count),
	})
}

func (s *Server) listProjects(c *gin.Context) {
	projects, err := s.recon.Projects(c.Request.Context(), c.GetString(auth.ContextUserID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (s *Server) getProject(c *gin.Context) {
	project, err := s.recon.Project(c.Request.Context(), c.GetString(auth.ContextUserID), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (s *Server) patchProject(c *gin.Context) {
	var req struct {
		Status string   `json:"status"`
		Team   []string `json:"team"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	userID := c.GetString(auth.ContextUserID)
	projectID := c.Param("id")
	ctx := c.Request.Context()

	if req.Status == "" && req.Team == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}
	if req.Status != "" {
		if err := s.recon.SetProjectStatus(ctx, userID, projectID, req.Status); err != nil {
			writeError(c, err)
			return
		}
	}
	if req.Team != nil {
		if err := s.recon.SetProjectTeam(ctx, userID, projectID, req.Team); err != nil {
			writeError(c, err)
			return
		}
	}

	project, err := s.recon.Project(ctx, userID, projectID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (s *Server) deleteProject(c *gin.Context) {
	err := s.recon.DeleteProject(c.Request.Context(), c.GetString(auth.ContextUserID), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Project deleted"})
}

func (s *Server) getProjectStats(c *gin.Context) {
	stats, err := s.recon.Stats(c.Request.Context(), c.GetString(auth.ContextUserID), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) listSubdomains(c *gin.Context) {
	subs, err := s.recon.Subdomains(c.Request.Context(), c.GetString(auth.ContextUserID), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subdomains": subs})
}

// createProjectWithSubdomains handles a manual hostname upload
func (s *Server) createProjectWithSubdomains(c *gin.Context) {
	var req struct {
		Name       string   `json:"name" binding:"required"`
		Subdomains []string `json:"subdomains"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	project, count, err := s.recon.CreateProjectWithSubdomains(
		c.Request.Context(), c.GetString(auth.ContextUserID), req.Name, req.Subdomains)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"project":         project,
		"subdomainsCount": count,
		"message":         fmt.Sprintf("Project created with %d subdomains", count),
	})
}

func (s *Server) getSubdomain(c *gin.Context) {
	sub, err := s.recon.Subdomain(c.Request.Context(), c.GetString(auth.ContextUserID), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (s *Server) deleteSubdomain(c *gin.Context) {
	err := s.recon.DeleteSubdomain(c.Request.Context(), c.GetString(auth.ContextUserID), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Subdomain deleted"})
}

func (s *Server) listVulnerabilities(c *gin.Context) {
	vulns, err := s.recon.Vulnerabilities(c.Request.Context(), c.GetString(auth.ContextUserID), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vulnerabilities": vulns})
}

func (s *Server) patchVulnerability(c *gin.Context) {
	var req struct {
		Status   string `json:"status"`
		Severity string `json:"severity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	vuln, err := s.recon.UpdateVulnerability(c.Request.Context(),
		c.GetString(auth.ContextUserID), c.Param("id"), req.Status, req.Severity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, vuln)
}

// generateReport renders a project report, LLM-backed when configured
func (s *Server) generateReport(c *gin.Context) {
	var req struct {
		ProjectID         string `json:"projectId" binding:"required"`
		ReproductionSteps string `json:"reproductionSteps"`
		AdditionalNotes   string `json:"additionalNotes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "projectId is required"})
		return
	}
	userID := c.GetString(auth.ContextUserID)
	ctx := c.Request.Context()

	project, err := s.recon.Project(ctx, userID, req.ProjectID)
	if err != nil {
		writeError(c, err)
		return
	}
	subs, err := s.recon.Subdomains(ctx, userID, req.ProjectID)
	if err != nil {
		writeError(c, err)
		return
	}

	data := &report.Data{
		ProjectName:       project.Name,
		ReproductionSteps: req.ReproductionSteps,
		AdditionalNotes:   req.AdditionalNotes,
	}
	for _, sub := range subs {
		vulns, err := s.store.VulnerabilitiesBySubdomain(ctx, sub.ID)
		if err != nil {
			writeError(c, err)
			return
		}
		findings := make([]report.Finding, 0, len(vulns))
		for _, v := range vulns {
			findings = append(findings, report.Finding{Type: v.Type, Severity: v.Severity, Status: v.Status})
		}
		data.Subdomains = append(data.Subdomains, report.SubdomainFindings{Name: sub.Name, Findings: findings})
	}

	text, llm, err := s.reports.Generate(ctx, data)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": text, "generated": llm})
}

// proxyService describes how to authenticate an outbound provider call
type proxyService struct {
	baseURL string
	auth    func(req *http.Request, key string)
}

var proxyServices = map[string]proxyService{
	"securitytrails": {"https://api.securitytrails.com", func(r *http.Request, k string) { r.Header.Set("APIKEY", k) }},
	"certspotter":    {"https://api.certspotter.com", func(r *http.Request, k string) { r.Header.Set("Authorization", "Bearer "+k) }},
	"virustotal":     {"https://www.virustotal.com", func(r *http.Request, k string) { r.Header.Set("x-apikey", k) }},
	"binaryedge":     {"https://api.binaryedge.io", func(r *http.Request, k string) { r.Header.Set("X-Key", k) }},
	"shodan": {"https://api.shodan.io", func(r *http.Request, k string) {
		q := r.URL.Query()
		q.Set("key", k)
		r.URL.RawQuery = q.Encode()
	}},
	"censys": {"https://search.censys.io", func(r *http.Request, k string) {
		if id, secret, ok := strings.Cut(k, ":"); ok {
			r.SetBasicAuth(id, secret)
		}
	}},
}

// proxyRequest forwards an authenticated GET to a known provider so the
// browser never sees a credential
func (s *Server) proxyRequest(c *gin.Context) {
	var req struct {
		Service  string            `json:"service" binding:"required"`
		Endpoint string            `json:"endpoint" binding:"required"`
		Params   map[string]string `json:"params"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "service and endpoint are required"})
		return
	}

	svc, ok := proxyServices[strings.ToLower(req.Service)]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown service"})
		return
	}
	if !strings.HasPrefix(req.Endpoint, "/") || strings.Contains(req.Endpoint, "..") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid endpoint"})
		return
	}
	key := s.keys.Key(req.Service)
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "service has no configured credential"})
		return
	}

	target := svc.baseURL + req.Endpoint
	if len(req.Params) > 0 {
		q := url.Values{}
		for k, v := range req.Params {
			q.Set(k, v)
		}
		target += "?" + q.Encode()
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()
	outReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid endpoint"})
		return
	}
	svc.auth(outReq, key)

	resp, err := http.DefaultClient.Do(outReq)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream request failed"})
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream read failed"})
		return
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(resp.StatusCode, contentType, body)
}
