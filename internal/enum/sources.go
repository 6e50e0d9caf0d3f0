package enum

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/G381N/BugBesty/internal/apikeys"
)

// NewDefaultSources builds the full adapter set in a fixed order:
// credentialed providers first, then the keyless public ones. The order
// is what chunked enumeration windows index into, so it must be stable.
func NewDefaultSources(keys *apikeys.Manager, verifier Verifier, log *logrus.Logger) []Source {
	return []Source{
		NewSecurityTrails(keys.Key("securitytrails"), verifier, log),
		NewCensys(keys.Key("censys"), verifier, log),
		NewCertSpotter(keys.Key("certspotter"), verifier, log),
		NewShodan(keys.Key("shodan"), log),
		NewBinaryEdge(keys.Key("binaryedge"), log),
		NewVirusTotal(keys.Key("virustotal"), log),
		NewCrtSh(log),
		NewHackerTarget(log),
		NewAnubisDB(log),
		NewAlienVault(log),
	}
}

// SecurityTrails queries the SecurityTrails domain API. Without a
// credential, or when the call fails, it degrades to DNS-verified
// speculation instead of dropping out.
type SecurityTrails struct {
	key      string
	client   *http.Client
	baseURL  string
	verifier Verifier
	log      *logrus.Entry
}

func NewSecurityTrails(key string, verifier Verifier, log *logrus.Logger) *SecurityTrails {
	return &SecurityTrails{
		key:      key,
		client:   newHTTPClient(),
		baseURL:  "https://api.securitytrails.com",
		verifier: verifier,
		log:      sourceLog(log, "securitytrails"),
	}
}

func (s *SecurityTrails) Name() string { return "securitytrails" }

func (s *SecurityTrails) Fetch(ctx context.Context, domain string) []string {
	if s.key == "" {
		s.log.Info("no API key configured, falling back to DNS speculation")
		return speculate(ctx, s.verifier, domain, speculativePrefixes[s.Name()])
	}

	u := fmt.Sprintf("%s/v1/domain/%s/subdomains", s.baseURL, domain)
	body, err := fetch(ctx, s.client, u, map[string]string{"APIKEY": s.key})
	if err != nil {
		s.log.WithError(err).Warn("request failed, falling back to DNS speculation")
		return speculate(ctx, s.verifier, domain, speculativePrefixes[s.Name()])
	}

	var payload struct {
		Subdomains []string `json:"subdomains"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		s.log.WithError(err).Warn("malformed response, falling back to DNS speculation")
		return speculate(ctx, s.verifier, domain, speculativePrefixes[s.Name()])
	}

	subs := make([]string, 0, len(payload.Subdomains))
	for _, prefix := range payload.Subdomains {
		subs = append(subs, prefix+"."+domain)
	}
	return filterSubdomains(domain, subs)
}

// Censys searches certificate transparency records via the Censys v2
// API using basic auth ("api_id:api_secret" credential form).
type Censys struct {
	key      string
	client   *http.Client
	baseURL  string
	verifier Verifier
	log      *logrus.Entry
}

func NewCensys(key string, verifier Verifier, log *logrus.Logger) *Censys {
	return &Censys{
		key:      key,
		client:   newHTTPClient(),
		baseURL:  "https://search.censys.io",
		verifier: verifier,
		log:      sourceLog(log, "censys"),
	}
}

func (c *Censys) Name() string { return "censys" }

func (c *Censys) Fetch(ctx context.Context, domain string) []string {
	if c.key == "" || !strings.Contains(c.key, ":") {
		c.log.Info("no API credential configured, falling back to DNS speculation")
		return speculate(ctx, c.verifier, domain, speculativePrefixes[c.Name()])
	}

	u := fmt.Sprintf("%s/api/v2/certificates/search?q=names:%s&per_page=100", c.baseURL, domain)
	auth := "Basic " + base64.StdEncoding.EncodeToString([]byte(c.key))
	body, err := fetch(ctx, c.client, u, map[string]string{"Authorization": auth})
	if err != nil {
		c.log.WithError(err).Warn("request failed, falling back to DNS speculation")
		return speculate(ctx, c.verifier, domain, speculativePrefixes[c.Name()])
	}

	var payload struct {
		Result struct {
			Hits []struct {
				Names []string `json:"names"`
			} `json:"hits"`
		} `json:"result"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		c.log.WithError(err).Warn("malformed response, falling back to DNS speculation")
		return speculate(ctx, c.verifier, domain, speculativePrefixes[c.Name()])
	}

	var subs []string
	for _, hit := range payload.Result.Hits {
		subs = append(subs, hit.Names...)
	}
	return filterSubdomains(domain, subs)
}

// CertSpotter queries SSLMate's issuance log with dns_names expanded
type CertSpotter struct {
	key      string
	client   *http.Client
	baseURL  string
	verifier Verifier
	log      *logrus.Entry
}

func NewCertSpotter(key string, verifier Verifier, log *logrus.Logger) *CertSpotter {
	return &CertSpotter{
		key:      key,
		client:   newHTTPClient(),
		baseURL:  "https://api.certspotter.com",
		verifier: verifier,
		log:      sourceLog(log, "certspotter"),
	}
}

func (c *CertSpotter) Name() string { return "certspotter" }

func (c *CertSpotter) Fetch(ctx context.Context, domain string) []string {
	if c.key == "" {
		c.log.Info("no API key configured, falling back to DNS speculation")
		return speculate(ctx, c.verifier, domain, speculativePrefixes[c.Name()])
	}

	u := fmt.Sprintf("%s/v1/issuances?domain=%s&include_subdomains=true&expand=dns_names", c.baseURL, domain)
	body, err := fetch(ctx, c.client, u, map[string]string{"Authorization": "Bearer " + c.key})
	if err != nil {
		c.log.WithError(err).Warn("request failed, falling back to DNS speculation")
		return speculate(ctx, c.verifier, domain, speculativePrefixes[c.Name()])
	}

	var issuances []struct {
		DNSNames []string `json:"dns_names"`
	}
	if err := json.Unmarshal([]byte(body), &issuances); err != nil {
		c.log.WithError(err).Warn("malformed response, falling back to DNS speculation")
		return speculate(ctx, c.verifier, domain, speculativePrefixes[c.Name()])
	}

	var subs []string
	for _, iss := range issuances {
		subs = append(subs, iss.DNSNames...)
	}
	return filterSubdomains(domain, subs)
}

// Shodan queries the Shodan DNS domain endpoint
type Shodan struct {
	key     string
	client  *http.Client
	baseURL string
	log     *logrus.Entry
}

func NewShodan(key string, log *logrus.Logger) *Shodan {
	return &Shodan{key: key, client: newHTTPClient(), baseURL: "https://api.shodan.io", log: sourceLog(log, "shodan")}
}

func (s *Shodan) Name() string { return "shodan" }

func (s *Shodan) Fetch(ctx context.Context, domain string) []string {
	if s.key == "" {
		s.log.Debug("no API key configured, skipping")
		return nil
	}

	u := fmt.Sprintf("%s/dns/domain/%s?key=%s", s.baseURL, domain, s.key)
	body, err := fetch(ctx, s.client, u, nil)
	if err != nil {
		s.log.WithError(err).Warn("request failed")
		return nil
	}

	var payload struct {
		Subdomains []string `json:"subdomains"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		s.log.WithError(err).Warn("malformed response")
		return nil
	}

	subs := make([]string, 0, len(payload.Subdomains))
	for _, prefix := range payload.Subdomains {
		subs = append(subs, prefix+"."+domain)
	}
	return filterSubdomains(domain, subs)
}

// BinaryEdge queries the BinaryEdge subdomain dataset
type BinaryEdge struct {
	key     string
	client  *http.Client
	baseURL string
	log     *logrus.Entry
}

func NewBinaryEdge(key string, log *logrus.Logger) *BinaryEdge {
	return &BinaryEdge{key: key, client: newHTTPClient(), baseURL: "https://api.binaryedge.io", log: sourceLog(log, "binaryedge")}
}

func (b *BinaryEdge) Name() string { return "binaryedge" }

func (b *BinaryEdge) Fetch(ctx context.Context, domain string) []string {
	if b.key == "" {
		b.log.Debug("no API key configured, skipping")
		return nil
	}

	u := fmt.Sprintf("%s/v2/query/domains/subdomain/%s", b.baseURL, domain)
	body, err := fetch(ctx, b.client, u, map[string]string{"X-Key": b.key})
	if err != nil {
		b.log.WithError(err).Warn("request failed")
		return nil
	}

	var payload struct {
		Events []string `json:"events"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		b.log.WithError(err).Warn("malformed response")
		return nil
	}
	return filterSubdomains(domain, payload.Events)
}

// VirusTotal queries the v3 domain relationships endpoint
type VirusTotal struct {
	key     string
	client  *http.Client
	baseURL string
	log     *logrus.Entry
}

func NewVirusTotal(key string, log *logrus.Logger) *VirusTotal {
	return &VirusTotal{key: key, client: newHTTPClient(), baseURL: "https://www.virustotal.com", log: sourceLog(log, "virustotal")}
}

func (v *VirusTotal) Name() string { return "virustotal" }

func (v *VirusTotal) Fetch(ctx context.Context, domain string) []string {
	if v.key == "" {
		v.log.Debug("no API key configured, skipping")
		return nil
	}

	u := fmt.Sprintf("%s/api/v3/domains/%s/subdomains?limit=40", v.baseURL, domain)
	body, err := fetch(ctx, v.client, u, map[string]string{"x-apikey": v.key})
	if err != nil {
		v.log.WithError(err).Warn("request failed")
		return nil
	}

	var payload struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		v.log.WithError(err).Warn("malformed response")
		return nil
	}

	subs := make([]string, 0, len(payload.Data))
	for _, d := range payload.Data {
		subs = append(subs, d.ID)
	}
	return filterSubdomains(domain, subs)
}

// CrtSh queries Certificate Transparency logs; no key required
type CrtSh struct {
	client  *http.Client
	baseURL string
	log     *logrus.Entry
}

func NewCrtSh(log *logrus.Logger) *CrtSh {
	return &CrtSh{client: newHTTPClient(), baseURL: "https://crt.sh", log: sourceLog(log, "crtsh")}
}

func (c *CrtSh) Name() string { return "crtsh" }

func (c *CrtSh) Fetch(ctx context.Context, domain string) []string {
	// the wildcard query must go over the wire as %25.<domain>
	u := fmt.Sprintf("%s/?q=%s&output=json", c.baseURL, url.QueryEscape("%."+domain))
	body, err := fetch(ctx, c.client, u, nil)
	if err != nil {
		c.log.WithError(err).Warn("request failed")
		return nil
	}

	var entries []struct {
		NameValue string `json:"name_value"`
	}
	if err := json.Unmarshal([]byte(body), &entries); err != nil {
		c.log.WithError(err).Warn("malformed response")
		return nil
	}

	var subs []string
	for _, e := range entries {
		// name_value packs multiple SAN entries separated by newlines
		subs = append(subs, strings.Split(e.NameValue, "\n")...)
	}
	return filterSubdomains(domain, subs)
}

// HackerTarget queries the free hostsearch API (CSV "host,ip" lines)
type HackerTarget struct {
	client  *http.Client
	baseURL string
	log     *logrus.Entry
}

func NewHackerTarget(log *logrus.Logger) *HackerTarget {
	return &HackerTarget{client: newHTTPClient(), baseURL: "https://api.hackertarget.com", log: sourceLog(log, "hackertarget")}
}

func (h *HackerTarget) Name() string { return "hackertarget" }

func (h *HackerTarget) Fetch(ctx context.Context, domain string) []string {
	u := fmt.Sprintf("%s/hostsearch/?q=%s", h.baseURL, domain)
	body, err := fetch(ctx, h.client, u, nil)
	if err != nil {
		h.log.WithError(err).Warn("request failed")
		return nil
	}
	if strings.Contains(body, "API count exceeded") {
		h.log.Warn("rate limited")
		return nil
	}

	var subs []string
	for _, line := range strings.Split(body, "\n") {
		host, _, _ := strings.Cut(line, ",")
		subs = append(subs, host)
	}
	return filterSubdomains(domain, subs)
}

// AnubisDB queries jldc.me's passive subdomain dataset
type AnubisDB struct {
	client  *http.Client
	baseURL string
	log     *logrus.Entry
}

func NewAnubisDB(log *logrus.Logger) *AnubisDB {
	return &AnubisDB{client: newHTTPClient(), baseURL: "https://jldc.me", log: sourceLog(log, "anubisdb")}
}

func (a *AnubisDB) Name() string { return "anubisdb" }

func (a *AnubisDB) Fetch(ctx context.Context, domain string) []string {
	u := fmt.Sprintf("%s/anubis/subdomains/%s", a.baseURL, domain)
	body, err := fetch(ctx, a.client, u, nil)
	if err != nil {
		a.log.WithError(err).Warn("request failed")
		return nil
	}

	var subs []string
	if err := json.Unmarshal([]byte(body), &subs); err != nil {
		a.log.WithError(err).Warn("malformed response")
		return nil
	}
	return filterSubdomains(domain, subs)
}

// AlienVault queries OTX passive DNS records
type AlienVault struct {
	client  *http.Client
	baseURL string
	log     *logrus.Entry
}

func NewAlienVault(log *logrus.Logger) *AlienVault {
	return &AlienVault{client: newHTTPClient(), baseURL: "https://otx.alienvault.com", log: sourceLog(log, "alienvault")}
}

func (a *AlienVault) Name() string { return "alienvault" }

func (a *AlienVault) Fetch(ctx context.Context, domain string) []string {
	u := fmt.Sprintf("%s/api/v1/indicators/domain/%s/passive_dns", a.baseURL, domain)
	body, err := fetch(ctx, a.client, u, nil)
	if err != nil {
		a.log.WithError(err).Warn("request failed")
		return nil
	}

	var payload struct {
		PassiveDNS []struct {
			Hostname string `json:"hostname"`
		} `json:"passive_dns"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		a.log.WithError(err).Warn("malformed response")
		return nil
	}

	subs := make([]string, 0, len(payload.PassiveDNS))
	for _, rec := range payload.PassiveDNS {
		subs = append(subs, rec.Hostname)
	}
	return filterSubdomains(domain, subs)
}
