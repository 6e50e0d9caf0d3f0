package enum

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCrtShParsesNameValueLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "%.example.com", r.URL.Query().Get("q"))
		w.Write([]byte(`[
			{"name_value": "www.example.com\napi.example.com"},
			{"name_value": "*.example.com"},
			{"name_value": "evil.other.com"}
		]`))
	}))
	defer srv.Close()

	c := NewCrtSh(nil)
	c.baseURL = srv.URL

	subs := c.Fetch(context.Background(), "example.com")
	assert.ElementsMatch(t, []string{"www.example.com", "api.example.com", "example.com"}, subs)
}

func TestHackerTargetParsesCSV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("www.example.com,1.2.3.4\nmail.example.com,1.2.3.5\n"))
	}))
	defer srv.Close()

	h := NewHackerTarget(nil)
	h.baseURL = srv.URL

	subs := h.Fetch(context.Background(), "example.com")
	assert.ElementsMatch(t, []string{"www.example.com", "mail.example.com"}, subs)
}

func TestHackerTargetRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("API count exceeded - Increase Quota with Membership"))
	}))
	defer srv.Close()

	h := NewHackerTarget(nil)
	h.baseURL = srv.URL

	assert.Empty(t, h.Fetch(context.Background(), "example.com"))
}

func TestSecurityTrailsBuildsHostnamesFromPrefixes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("APIKEY"))
		assert.Equal(t, "/v1/domain/example.com/subdomains", r.URL.Path)
		w.Write([]byte(`{"subdomains": ["www", "staging"]}`))
	}))
	defer srv.Close()

	s := NewSecurityTrails("secret", nil, nil)
	s.baseURL = srv.URL

	subs := s.Fetch(context.Background(), "example.com")
	assert.ElementsMatch(t, []string{"www.example.com", "staging.example.com"}, subs)
}

func TestSecurityTrailsFailureFallsBackToSpeculation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewSecurityTrails("bad-key", verifierFunc(func(_ context.Context, h string) bool {
		return h == "blog.example.com"
	}), nil)
	s.baseURL = srv.URL

	subs := s.Fetch(context.Background(), "example.com")
	assert.Equal(t, []string{"blog.example.com"}, subs)
}

func TestCensysParsesCertificateHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{"result": {"hits": [
			{"names": ["vpn.example.com", "example.com"]},
			{"names": ["unrelated.net"]}
		]}}`))
	}))
	defer srv.Close()

	c := NewCensys("id:secret", nil, nil)
	c.baseURL = srv.URL

	subs := c.Fetch(context.Background(), "example.com")
	assert.ElementsMatch(t, []string{"vpn.example.com", "example.com"}, subs)
}

func TestCertSpotterParsesDNSNames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`[{"dns_names": ["dev.example.com", "*.example.com"]}]`))
	}))
	defer srv.Close()

	c := NewCertSpotter("tok", nil, nil)
	c.baseURL = srv.URL

	subs := c.Fetch(context.Background(), "example.com")
	assert.ElementsMatch(t, []string{"dev.example.com", "example.com"}, subs)
}

func TestShodanWithoutKeyContributesNothing(t *testing.T) {
	s := NewShodan("", nil)
	assert.Empty(t, s.Fetch(context.Background(), "example.com"))
}

func TestVirusTotalParsesData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.Header.Get("x-apikey"))
		w.Write([]byte(`{"data": [{"id": "cdn.example.com"}, {"id": "m.example.com"}]}`))
	}))
	defer srv.Close()

	v := NewVirusTotal("tok", nil)
	v.baseURL = srv.URL

	subs := v.Fetch(context.Background(), "example.com")
	assert.ElementsMatch(t, []string{"cdn.example.com", "m.example.com"}, subs)
}

func TestAnubisDBParsesArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["a.example.com", "b.example.com", "junk"]`))
	}))
	defer srv.Close()

	a := NewAnubisDB(nil)
	a.baseURL = srv.URL

	subs := a.Fetch(context.Background(), "example.com")
	assert.ElementsMatch(t, []string{"a.example.com", "b.example.com"}, subs)
}

func TestAlienVaultParsesPassiveDNS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"passive_dns": [{"hostname": "legacy.example.com"}]}`))
	}))
	defer srv.Close()

	a := NewAlienVault(nil)
	a.baseURL = srv.URL

	subs := a.Fetch(context.Background(), "example.com")
	assert.Equal(t, []string{"legacy.example.com"}, subs)
}

func TestSourceNeverPanicsOnUnreachableEndpoint(t *testing.T) {
	c := NewCrtSh(nil)
	c.baseURL = "http://127.0.0.1:1"

	assert.Empty(t, c.Fetch(context.Background(), "example.com"))
}

func TestIsValidSubdomainFiltering(t *testing.T) {
	cases := map[string]bool{
		"www.example.com":      true,
		"example.com":          true,
		"*.api.example.com":    true,
		"":                     false,
		"other.com":            false,
		"notexample.com":       false,
		"bad host.example.com": false,
	}
	for input, want := range cases {
		assert.Equal(t, want, isValidSubdomain("example.com", input), input)
	}
}
