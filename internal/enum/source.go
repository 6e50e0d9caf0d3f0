// Package enum discovers subdomains of a target domain by querying
// OSINT providers in parallel. Sources are best-effort: a failing or
// unconfigured provider contributes nothing instead of failing the run.
package enum

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// sourceTimeout is the default per-provider deadline; the orchestrator
// applies it (or a configured override) to every Fetch
const sourceTimeout = 10 * time.Second

// Source is one subdomain provider. Fetch never returns an error:
// missing credentials, timeouts, non-2xx responses and malformed
// payloads are logged and yield an empty result.
type Source interface {
	Name() string
	Fetch(ctx context.Context, domain string) []string
}

// Verifier reports whether a hostname positively resolves
type Verifier interface {
	Exists(ctx context.Context, hostname string) bool
}

// newHTTPClient builds the shared transport settings; request deadlines
// come from the caller's context
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     30 * time.Second,
		},
	}
}

// fetch makes an HTTP GET request and returns the body
func fetch(ctx context.Context, client *http.Client, url string, headers map[string]string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; bugbesty/1.0)")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// isValidSubdomain checks if a string belongs under the target domain.
// The root domain itself is accepted; it is always part of the result.
func isValidSubdomain(domain, s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "*.")

	if s == "" {
		return false
	}
	if s != domain && !strings.HasSuffix(s, "."+domain) {
		return false
	}
	if strings.ContainsAny(s, " \t\n\r") {
		return false
	}
	return true
}

// normalizeHost lowercases and strips wildcard prefixes
func normalizeHost(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimPrefix(s, "*.")
}

// filterSubdomains normalizes and keeps only hostnames under domain
func filterSubdomains(domain string, raw []string) []string {
	var out []string
	for _, s := range raw {
		s = normalizeHost(s)
		if isValidSubdomain(domain, s) {
			out = append(out, s)
		}
	}
	return out
}

func sourceLog(log *logrus.Logger, name string) *logrus.Entry {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		return logrus.NewEntry(l)
	}
	return log.WithField("source", name)
}
