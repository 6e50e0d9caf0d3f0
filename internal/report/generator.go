// Package report renders a security report for a project. When a
// Gemini key is configured the report is LLM-written; otherwise, or on
// any provider failure, a deterministic template takes over so report
// generation never fails outright.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/G381N/BugBesty/internal/catalog"
)

// Finding is one confirmed or pending checklist entry
type Finding struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Status   string `json:"status"`
}

// SubdomainFindings groups findings under one hostname
type SubdomainFindings struct {
	Name     string    `json:"name"`
	Findings []Finding `json:"findings"`
}

// Data is everything a report is rendered from
type Data struct {
	ProjectName       string              `json:"projectName"`
	Subdomains        []SubdomainFindings `json:"subdomains"`
	ReproductionSteps string              `json:"reproductionSteps,omitempty"`
	AdditionalNotes   string              `json:"additionalNotes,omitempty"`
}

// recommendations closes every fallback report; the list is fixed so
// two renders of the same data are byte-identical
var recommendations = []string{
	"Prioritize remediation of Critical and High severity findings.",
	"Re-test confirmed findings after fixes are deployed.",
	"Review DNS records and retire unused subdomains to shrink the attack surface.",
	"Enforce HTTPS and security headers across all live hosts.",
	"Schedule periodic re-enumeration to catch newly exposed assets.",
}

// Generator renders reports, preferring the configured LLM provider
type Generator struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	log     *logrus.Entry
}

// NewGenerator builds a generator; an empty key means fallback-only
func NewGenerator(apiKey string, log *logrus.Logger) *Generator {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Generator{
		apiKey:  apiKey,
		model:   "gemini-1.5-flash",
		baseURL: "https://generativelanguage.googleapis.com",
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log.WithField("component", "report"),
	}
}

// Generate renders the report. The returned bool reports whether the
// LLM produced it (false means the deterministic fallback ran).
func (g *Generator) Generate(ctx context.Context, data *Data) (string, bool, error) {
	if g.apiKey == "" {
		g.log.Debug("no LLM key configured, using fallback template")
		return Fallback(data), false, nil
	}
	text, err := g.generateLLM(ctx, data)
	if err != nil {
		g.log.WithError(err).Warn("LLM generation failed, using fallback template")
		return Fallback(data), false, nil
	}
	return text, true, nil
}

func (g *Generator) generateLLM(ctx context.Context, data *Data) (string, error) {
	payload := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": buildPrompt(data)}}},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("provider status %d", resp.StatusCode)
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty provider response")
	}
	text := result.Candidates[0].Content.Parts[0].Text
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty provider response")
	}
	return text, nil
}

func buildPrompt(data *Data) string {
	var b strings.Builder
	b.WriteString("Write a professional bug bounty security report for the project ")
	b.WriteString(data.ProjectName)
	b.WriteString(".\n\nFindings by subdomain:\n")
	for _, sub := range data.Subdomains {
		fmt.Fprintf(&b, "- %s\n", sub.Name)
		for _, f := range sub.Findings {
			if f.Status == catalog.StatusFound {
				fmt.Fprintf(&b, "  - %s (%s, confirmed)\n", f.Type, f.Severity)
			}
		}
	}
	if data.ReproductionSteps != "" {
		fmt.Fprintf(&b, "\nReproduction steps:\n%s\n", data.ReproductionSteps)
	}
	if data.AdditionalNotes != "" {
		fmt.Fprintf(&b, "\nAdditional notes:\n%s\n", data.AdditionalNotes)
	}
	b.WriteString("\nStructure the report with summary, findings, impact and recommendations sections.")
	return b.String()
}

// Fallback renders the deterministic report template. Identical input
// always yields an identical report.
func Fallback(data *Data) string {
	confirmed := make(map[string][]Finding)
	counts := map[string]int{}
	var hosts []string
	for _, sub := range data.Subdomains {
		for _, f := range sub.Findings {
			if f.Status != catalog.StatusFound {
				continue
			}
			if _, ok := confirmed[sub.Name]; !ok {
				hosts = append(hosts, sub.Name)
			}
			confirmed[sub.Name] = append(confirmed[sub.Name], f)
			counts[f.Severity]++
		}
	}

	var b strings.Builder
	b.WriteString("SECURITY REPORT\n")
	b.WriteString("===============\n\n")
	fmt.Fprintf(&b, "Project: %s\n\n", data.ProjectName)

	b.WriteString("SEVERITY SUMMARY\n")
	for _, sev := range []string{
		catalog.SeverityCritical, catalog.SeverityHigh,
		catalog.SeverityMedium, catalog.SeverityLow,
	} {
		fmt.Fprintf(&b, "- %s: %d\n", sev, counts[sev])
	}
	b.WriteString("\n")

	b.WriteString("CONFIRMED FINDINGS\n")
	if len(hosts) == 0 {
		b.WriteString("No confirmed findings.\n")
	}
	for _, host := range hosts {
		fmt.Fprintf(&b, "%s\n", host)
		for _, f := range confirmed[host] {
			fmt.Fprintf(&b, "- [%s] %s\n", f.Severity, f.Type)
		}
	}
	b.WriteString("\n")

	if data.ReproductionSteps != "" {
		fmt.Fprintf(&b, "REPRODUCTION STEPS\n%s\n\n", data.ReproductionSteps)
	}
	if data.AdditionalNotes != "" {
		fmt.Fprintf(&b, "ADDITIONAL NOTES\n%s\n\n", data.AdditionalNotes)
	}

	b.WriteString("RECOMMENDATIONS\n")
	for _, rec := range recommendations {
		fmt.Fprintf(&b, "- %s\n", rec)
	}
	return b.String()
}
