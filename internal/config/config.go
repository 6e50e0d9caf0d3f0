package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds all configuration options for bugbesty
type Config struct {
	// DataDir is where the database, JWT keys and logs live
	DataDir string

	// Server
	Host           string
	Port           int
	AllowedOrigins []string

	// Enumeration
	SourceTimeout time.Duration // per-provider HTTP timeout
	ChunkSize     int           // sources queried per chunked enumeration call
	DNSTimeout    time.Duration // DNS verification timeout

	// Logging
	LogLevel  string
	LogFormat string // "text" or "json"
	LogFile   string // empty = console only

	// Debug
	Debug bool
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	homeDir, err := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".bugbesty")
	if err != nil {
		dataDir = "./bugbesty"
	}

	return &Config{
		DataDir:        dataDir,
		Host:           "127.0.0.1",
		Port:           8888,
		AllowedOrigins: []string{"http://localhost:8888", "http://127.0.0.1:8888"},
		SourceTimeout:  10 * time.Second,
		ChunkSize:      5,
		DNSTimeout:     5 * time.Second,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// DatabasePath returns the SQLite database location
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "bugbesty.db")
}

// KeyPath returns the directory holding the JWT signing keys
func (c *Config) KeyPath() string {
	return c.DataDir
}
