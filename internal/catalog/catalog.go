// Package catalog defines the fixed vulnerability checklist seeded for
// every subdomain. The list is ordered and read-only at run time; one
// pending vulnerability record is created per subdomain per entry.
package catalog

// Entry is a single checklist item with its default severity
type Entry struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
}

// Severity levels, ordered from least to most severe
const (
	SeverityLow      = "Low"
	SeverityMedium   = "Medium"
	SeverityHigh     = "High"
	SeverityCritical = "Critical"
)

// Vulnerability record statuses
const (
	StatusPending  = "pending"
	StatusFound    = "Found"
	StatusNotFound = "Not Found"
)

var entries = []Entry{
	{"Subdomain Takeover", SeverityHigh},
	{"SQL Injection", SeverityCritical},
	{"Cross-Site Scripting (XSS)", SeverityHigh},
	{"Cross-Site Request Forgery (CSRF)", SeverityMedium},
	{"Server-Side Request Forgery (SSRF)", SeverityHigh},
	{"XML External Entity (XXE)", SeverityHigh},
	{"Remote Code Execution", SeverityCritical},
	{"Local File Inclusion", SeverityHigh},
	{"Remote File Inclusion", SeverityHigh},
	{"Open Redirect", SeverityLow},
	{"Insecure Direct Object Reference (IDOR)", SeverityHigh},
	{"Broken Authentication", SeverityHigh},
	{"Broken Access Control", SeverityHigh},
	{"Security Misconfiguration", SeverityMedium},
	{"Sensitive Data Exposure", SeverityHigh},
	{"Directory Listing", SeverityLow},
	{"Exposed Git Repository", SeverityMedium},
	{"Exposed Environment File", SeverityHigh},
	{"Exposed Admin Panel", SeverityMedium},
	{"Default Credentials", SeverityHigh},
	{"Missing Security Headers", SeverityLow},
	{"Clickjacking", SeverityLow},
	{"CORS Misconfiguration", SeverityMedium},
	{"HTTP Request Smuggling", SeverityHigh},
	{"Host Header Injection", SeverityMedium},
	{"CRLF Injection", SeverityMedium},
	{"Command Injection", SeverityCritical},
	{"Path Traversal", SeverityHigh},
	{"Insecure Deserialization", SeverityCritical},
	{"Server-Side Template Injection", SeverityHigh},
	{"GraphQL Introspection Enabled", SeverityLow},
	{"API Key Leakage", SeverityHigh},
	{"JWT Weaknesses", SeverityHigh},
	{"Rate Limiting Bypass", SeverityMedium},
	{"Account Takeover", SeverityCritical},
	{"Business Logic Flaw", SeverityMedium},
	{"Information Disclosure", SeverityLow},
	{"Outdated Software Components", SeverityMedium},
	{"Weak SSL/TLS Configuration", SeverityLow},
	{"WebSocket Hijacking", SeverityMedium},
}

// Entries returns the full ordered checklist. The returned slice is a
// copy so callers cannot mutate the catalog.
func Entries() []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// Size returns the number of checklist entries
func Size() int {
	return len(entries)
}

// ValidSeverity reports whether s is one of the known severity levels
func ValidSeverity(s string) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// ValidStatus reports whether s is a known vulnerability status
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusFound, StatusNotFound:
		return true
	}
	return false
}
