package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G381N/BugBesty/internal/catalog"
	"github.com/G381N/BugBesty/internal/config"
	"github.com/G381N/BugBesty/internal/enum"
	"github.com/G381N/BugBesty/internal/report"
	"github.com/G381N/BugBesty/internal/store"
)

type fixedSource struct {
	name string
	subs []string
}

func (f *fixedSource) Name() string                               { return f.name }
func (f *fixedSource) Fetch(_ context.Context, _ string) []string { return f.subs }

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	st, err := store.NewSQLite(cfg.DatabasePath())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	s, err := New(cfg, st, log)
	require.NoError(t, err)

	// offline source set so no test ever leaves the process
	s.orchestrator = enum.NewOrchestrator([]enum.Source{
		&fixedSource{name: "alpha", subs: []string{"www.example.com", "api.example.com"}},
		&fixedSource{name: "beta", subs: []string{"api.example.com"}},
	}, log)
	// force the deterministic template even if the host has an LLM key
	s.reports = report.NewGenerator("", log)

	return s
}

func (s *Server) doJSON(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func registerAndLogin(t *testing.T, s *Server, email string) string {
	t.Helper()
	w := s.doJSON(t, http.MethodPost, "/api/v1/auth/register", "", payload{
		"email": email, "name": "Tester", "password": "correct-horse-battery",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.doJSON(t, http.MethodPost, "/api/v1/auth/login", "", payload{
		"email": email, "password": "correct-horse-battery",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Tokens struct {
			AccessToken string `json:"access_token"`
		} `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Tokens.AccessToken)
	return resp.Tokens.AccessToken
}

type payload = map[string]any

func TestHealthAndVersion(t *testing.T) {
	s := newTestServer(t)

	w := s.doJSON(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.doJSON(t, http.MethodGet, "/api/v1/version", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	w := s.doJSON(t, http.MethodGet, "/api/v1/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.doJSON(t, http.MethodGet, "/api/v1/projects", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	token := registerAndLogin(t, s, "alice@example.com")

	w := s.doJSON(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice@example.com")

	// duplicate registration conflicts
	w = s.doJSON(t, http.MethodPost, "/api/v1/auth/register", "", payload{
		"email": "alice@example.com", "password": "correct-horse-battery",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// logout invalidates the session behind the token
	w = s.doJSON(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.doJSON(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEnumerationFlow(t *testing.T) {
	s := newTestServer(t)
	token := registerAndLogin(t, s, "alice@example.com")

	w := s.doJSON(t, http.MethodPost, "/api/v1/enumeration", token, payload{"domain": "example.com"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Project struct {
			ID string `json:"id"`
		} `json:"project"`
		SubdomainsCount int  `json:"subdomainsCount"`
		Done            bool `json:"done"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	// root domain + www + api, deduplicated across sources
	assert.Equal(t, 3, resp.SubdomainsCount)
	assert.True(t, resp.Done)

	w = s.doJSON(t, http.MethodGet, "/api/v1/projects/"+resp.Project.ID+"/stats", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats store.ProjectStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.TotalSubdomains)
	assert.Equal(t, 3*catalog.Size(), stats.VulnerabilitiesByStatus[catalog.StatusPending])

	// a second run against the same domain conflicts while subdomains exist
	w = s.doJSON(t, http.MethodPost, "/api/v1/enumeration", token, payload{"domain": "example.com"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.doJSON(t, http.MethodDelete, "/api/v1/projects/"+resp.Project.ID, token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.doJSON(t, http.MethodGet, "/api/v1/projects/"+resp.Project.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChunkedEnumerationResume(t *testing.T) {
	s := newTestServer(t)
	token := registerAndLogin(t, s, "alice@example.com")

	type enumResp struct {
		Project struct {
			ID string `json:"id"`
		} `json:"project"`
		SubdomainsCount int  `json:"subdomainsCount"`
		NextFrom        int  `json:"nextFrom"`
		Done            bool `json:"done"`
	}

	w := s.doJSON(t, http.MethodPost, "/api/v1/enumeration", token, payload{
		"domain": "example.com", "startFrom": 0, "chunkSize": 1,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var first enumResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.Equal(t, 3, first.SubdomainsCount, "alpha window: root + www + api")
	assert.Equal(t, 1, first.NextFrom)
	assert.False(t, first.Done)

	// the follow-up window merges into the same project
	w = s.doJSON(t, http.MethodPost, "/api/v1/enumeration", token, payload{
		"domain": "example.com", "startFrom": first.NextFrom, "chunkSize": 1,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var second enumResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.Equal(t, first.Project.ID, second.Project.ID)
	assert.Equal(t, 3, second.SubdomainsCount, "beta window re-finds api only")
	assert.True(t, second.Done)

	// no duplicate rows for re-found hostnames
	w = s.doJSON(t, http.MethodGet, "/api/v1/projects/"+first.Project.ID+"/subdomains", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var subsResp struct {
		Subdomains []store.Subdomain `json:"subdomains"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &subsResp))
	require.Len(t, subsResp.Subdomains, 3)
	names := make(map[string]int)
	for _, sub := range subsResp.Subdomains {
		names[sub.Name]++
	}
	for name, n := range names {
		assert.Equal(t, 1, n, name)
	}

	// resuming a domain with no active run is a 404, not a new project
	w = s.doJSON(t, http.MethodPost, "/api/v1/enumeration", token, payload{
		"domain": "other.com", "startFrom": 1, "chunkSize": 1,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProjectAccessControl(t *testing.T) {
	s := newTestServer(t)
	owner := registerAndLogin(t, s, "owner@example.com")
	outsider := registerAndLogin(t, s, "outsider@example.com")

	w := s.doJSON(t, http.MethodPost, "/api/v1/projects/with-subdomains", owner, payload{
		"name": "example.com", "subdomains": []string{"www.example.com", " ", "api.example.com"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Project struct {
			ID string `json:"id"`
		} `json:"project"`
		SubdomainsCount int `json:"subdomainsCount"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.SubdomainsCount, "blank entries filtered")

	w = s.doJSON(t, http.MethodGet, "/api/v1/projects/"+resp.Project.ID, outsider, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.doJSON(t, http.MethodDelete, "/api/v1/projects/"+resp.Project.ID, outsider, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.doJSON(t, http.MethodGet, "/api/v1/projects/"+resp.Project.ID, owner, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestVulnerabilityPatch(t *testing.T) {
	s := newTestServer(t)
	token := registerAndLogin(t, s, "alice@example.com")

	w := s.doJSON(t, http.MethodPost, "/api/v1/projects/with-subdomains", token, payload{
		"name": "example.com", "subdomains": []string{"www.example.com"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Project struct {
			ID string `json:"id"`
		} `json:"project"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = s.doJSON(t, http.MethodGet, "/api/v1/projects/"+created.Project.ID+"/subdomains", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var subsResp struct {
		Subdomains []store.Subdomain `json:"subdomains"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &subsResp))
	require.Len(t, subsResp.Subdomains, 1)

	w = s.doJSON(t, http.MethodGet,
		fmt.Sprintf("/api/v1/subdomains/%s/vulnerabilities", subsResp.Subdomains[0].ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var vulnsResp struct {
		Vulnerabilities []store.Vulnerability `json:"vulnerabilities"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &vulnsResp))
	require.Len(t, vulnsResp.Vulnerabilities, catalog.Size())

	target := vulnsResp.Vulnerabilities[0]
	w = s.doJSON(t, http.MethodPatch, "/api/v1/vulnerabilities/"+target.ID, token,
		payload{"status": catalog.StatusFound})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), catalog.StatusFound)

	w = s.doJSON(t, http.MethodPatch, "/api/v1/vulnerabilities/"+target.ID, token,
		payload{"status": "nonsense"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportEndpointFallback(t *testing.T) {
	s := newTestServer(t)
	token := registerAndLogin(t, s, "alice@example.com")

	w := s.doJSON(t, http.MethodPost, "/api/v1/projects/with-subdomains", token, payload{
		"name": "example.com", "subdomains": []string{"www.example.com"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Project struct {
			ID string `json:"id"`
		} `json:"project"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = s.doJSON(t, http.MethodPost, "/api/v1/reports", token, payload{"projectId": created.Project.ID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "SECURITY REPORT")
}

func TestProxyValidation(t *testing.T) {
	s := newTestServer(t)
	token := registerAndLogin(t, s, "alice@example.com")

	w := s.doJSON(t, http.MethodPost, "/api/v1/proxy", token,
		payload{"service": "nosuch", "endpoint": "/v1/x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.doJSON(t, http.MethodPost, "/api/v1/proxy", token,
		payload{"service": "shodan", "endpoint": "../etc/passwd"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
