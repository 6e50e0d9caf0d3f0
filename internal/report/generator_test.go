package report

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G381N/BugBesty/internal/catalog"
)

func sampleData() *Data {
	return &Data{
		ProjectName: "example.com",
		Subdomains: []SubdomainFindings{
			{Name: "www.example.com", Findings: []Finding{
				{Type: "Cross-Site Scripting (XSS)", Severity: catalog.SeverityHigh, Status: catalog.StatusFound},
				{Type: "SQL Injection", Severity: catalog.SeverityCritical, Status: catalog.StatusNotFound},
			}},
			{Name: "api.example.com", Findings: []Finding{
				{Type: "Broken Authentication", Severity: catalog.SeverityCritical, Status: catalog.StatusFound},
				{Type: "Open Redirect", Severity: catalog.SeverityLow, Status: catalog.StatusPending},
			}},
		},
		ReproductionSteps: "1. Visit the search page.\n2. Inject the payload.",
	}
}

func TestFallbackIsDeterministic(t *testing.T) {
	data := sampleData()
	assert.Equal(t, Fallback(data), Fallback(data))
}

func TestFallbackContent(t *testing.T) {
	out := Fallback(sampleData())

	assert.True(t, strings.HasPrefix(out, "SECURITY REPORT"))
	assert.Contains(t, out, "Project: example.com")
	assert.Contains(t, out, "- Critical: 1")
	assert.Contains(t, out, "- High: 1")
	assert.Contains(t, out, "- Medium: 0")
	assert.Contains(t, out, "- Low: 0")
	assert.Contains(t, out, "[High] Cross-Site Scripting (XSS)")
	assert.Contains(t, out, "[Critical] Broken Authentication")
	assert.NotContains(t, out, "SQL Injection", "unconfirmed findings stay out")
	assert.Contains(t, out, "REPRODUCTION STEPS")
	assert.Contains(t, out, "RECOMMENDATIONS")
}

func TestFallbackNoConfirmedFindings(t *testing.T) {
	out := Fallback(&Data{ProjectName: "empty.com"})
	assert.Contains(t, out, "No confirmed findings.")
}

func TestGenerateWithoutKeyUsesFallback(t *testing.T) {
	g := NewGenerator("", nil)
	out, llm, err := g.Generate(context.Background(), sampleData())
	require.NoError(t, err)
	assert.False(t, llm)
	assert.Equal(t, Fallback(sampleData()), out)
}

func TestGenerateUsesProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.URL.Query().Get("key"))
		w.Write([]byte(`{"candidates": [{"content": {"parts": [{"text": "generated report"}]}}]}`))
	}))
	defer srv.Close()

	g := NewGenerator("tok", nil)
	g.baseURL = srv.URL

	out, llm, err := g.Generate(context.Background(), sampleData())
	require.NoError(t, err)
	assert.True(t, llm)
	assert.Equal(t, "generated report", out)
}

func TestGenerateProviderFailureFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := NewGenerator("tok", nil)
	g.baseURL = srv.URL

	out, llm, err := g.Generate(context.Background(), sampleData())
	require.NoError(t, err)
	assert.False(t, llm)
	assert.True(t, strings.HasPrefix(out, "SECURITY REPORT"))
}
