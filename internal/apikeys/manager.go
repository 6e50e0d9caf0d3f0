// Package apikeys provides unified API key management for bugbesty.
// All provider credentials (OSINT sources, report generation) live in
// one YAML file; environment variables override file values so
// containerized deployments never need the file at all.
package apikeys

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the unified configuration with all keys in one file
type Config struct {
	// OSINT API keys for subdomain enumeration
	OSINT OSINTKeys `yaml:"osint"`

	// Report generation (Gemini)
	Gemini string `yaml:"gemini,omitempty"`
}

// OSINTKeys holds per-provider credentials. Censys uses "api_id:api_secret".
type OSINTKeys struct {
	SecurityTrails string `yaml:"securitytrails,omitempty"`
	Censys         string `yaml:"censys,omitempty"`
	CertSpotter    string `yaml:"certspotter,omitempty"`
	Shodan         string `yaml:"shodan,omitempty"`
	BinaryEdge     string `yaml:"binaryedge,omitempty"`
	VirusTotal     string `yaml:"virustotal,omitempty"`
	GitHub         string `yaml:"github,omitempty"`
	FullHunt       string `yaml:"fullhunt,omitempty"`
	Netlas         string `yaml:"netlas,omitempty"`
	LeakIX         string `yaml:"leakix,omitempty"`
}

// Manager handles API key operations
type Manager struct {
	config     *Config
	configPath string
}

// NewManager creates a manager bound to the default config path
func NewManager() *Manager {
	return &Manager{
		config:     &Config{},
		configPath: DefaultConfigPath(),
	}
}

// NewManagerWithPath creates a manager bound to a specific config file
func NewManagerWithPath(path string) *Manager {
	return &Manager{config: &Config{}, configPath: path}
}

// DefaultConfigPath returns the unified config file path
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".bugbesty", "config.yaml")
}

// Load loads API keys from the config file and environment variables.
// A missing file is not an error: keyless operation is a valid state.
func (m *Manager) Load() error {
	data, err := os.ReadFile(m.configPath)
	if err == nil {
		if err := yaml.Unmarshal(data, m.config); err != nil {
			return fmt.Errorf("failed to parse %s: %w", m.configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	m.loadFromEnv()
	return nil
}

func (m *Manager) loadFromEnv() {
	override := func(dst *string, envs ...string) {
		for _, env := range envs {
			if v := strings.TrimSpace(os.Getenv(env)); v != "" {
				*dst = v
				return
			}
		}
	}

	override(&m.config.OSINT.SecurityTrails, "BUGBESTY_SECURITYTRAILS_KEY", "SECURITYTRAILS_API_KEY")
	override(&m.config.OSINT.Censys, "BUGBESTY_CENSYS_KEY", "CENSYS_API_KEY")
	override(&m.config.OSINT.CertSpotter, "BUGBESTY_CERTSPOTTER_KEY", "CERTSPOTTER_API_KEY")
	override(&m.config.OSINT.Shodan, "BUGBESTY_SHODAN_KEY", "SHODAN_API_KEY")
	override(&m.config.OSINT.BinaryEdge, "BUGBESTY_BINARYEDGE_KEY", "BINARYEDGE_API_KEY")
	override(&m.config.OSINT.VirusTotal, "BUGBESTY_VIRUSTOTAL_KEY", "VIRUSTOTAL_API_KEY")
	override(&m.config.OSINT.GitHub, "BUGBESTY_GITHUB_TOKEN", "GITHUB_TOKEN")
	override(&m.config.OSINT.FullHunt, "BUGBESTY_FULLHUNT_KEY", "FULLHUNT_API_KEY")
	override(&m.config.OSINT.Netlas, "BUGBESTY_NETLAS_KEY", "NETLAS_API_KEY")
	override(&m.config.OSINT.LeakIX, "BUGBESTY_LEAKIX_KEY", "LEAKIX_API_KEY")
	override(&m.config.Gemini, "BUGBESTY_GEMINI_KEY", "GEMINI_API_KEY")
}

// Save writes the current config to disk with restrictive permissions
func (m *Manager) Save() error {
	if err := os.MkdirAll(filepath.Dir(m.configPath), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(m.config)
	if err != nil {
		return err
	}
	return os.WriteFile(m.configPath, data, 0o600)
}

// Key returns the credential for a provider, or "" when unconfigured
func (m *Manager) Key(service string) string {
	switch strings.ToLower(service) {
	case "securitytrails":
		return m.config.OSINT.SecurityTrails
	case "censys":
		return m.config.OSINT.Censys
	case "certspotter":
		return m.config.OSINT.CertSpotter
	case "shodan":
		return m.config.OSINT.Shodan
	case "binaryedge":
		return m.config.OSINT.BinaryEdge
	case "virustotal":
		return m.config.OSINT.VirusTotal
	case "github":
		return m.config.OSINT.GitHub
	case "fullhunt":
		return m.config.OSINT.FullHunt
	case "netlas":
		return m.config.OSINT.Netlas
	case "leakix":
		return m.config.OSINT.LeakIX
	case "gemini":
		return m.config.Gemini
	}
	return ""
}

// SetKey stores a credential for a provider
func (m *Manager) SetKey(service, key string) error {
	switch strings.ToLower(service) {
	case "securitytrails":
		m.config.OSINT.SecurityTrails = key
	case "censys":
		m.config.OSINT.Censys = key
	case "certspotter":
		m.config.OSINT.CertSpotter = key
	case "shodan":
		m.config.OSINT.Shodan = key
	case "binaryedge":
		m.config.OSINT.BinaryEdge = key
	case "virustotal":
		m.config.OSINT.VirusTotal = key
	case "github":
		m.config.OSINT.GitHub = key
	case "fullhunt":
		m.config.OSINT.FullHunt = key
	case "netlas":
		m.config.OSINT.Netlas = key
	case "leakix":
		m.config.OSINT.LeakIX = key
	case "gemini":
		m.config.Gemini = key
	default:
		return fmt.Errorf("unknown service %q", service)
	}
	return nil
}

// Services returns the configurable provider names in display order
func Services() []string {
	return []string{
		"securitytrails", "censys", "certspotter", "shodan", "binaryedge",
		"virustotal", "github", "fullhunt", "netlas", "leakix", "gemini",
	}
}

// MaskKey masks a credential for display
func MaskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
