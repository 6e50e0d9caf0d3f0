// Package cli wires the bugbesty commands: the dashboard server,
// one-shot enumeration, credential management and version info.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/G381N/BugBesty/internal/config"
	"github.com/G381N/BugBesty/internal/logging"
	"github.com/G381N/BugBesty/internal/version"
)

var (
	cfg     = *config.DefaultConfig()
	rootCmd = &cobra.Command{
		Use:   "bugbesty",
		Short: "Bug bounty reconnaissance dashboard",
		Long: `BugBesty - bug bounty reconnaissance dashboard and toolkit.

Multi-source subdomain enumeration, per-target vulnerability checklists
and report generation, served as a self-hosted web dashboard.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory for the database, keys and logs")
	rootCmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text or json)")
	rootCmd.PersistentFlags().StringVar(&cfg.LogFile, "log-file", "", "Log file path (empty = console only)")
	rootCmd.PersistentFlags().BoolVar(&cfg.Debug, "debug", false, "Enable debug output")
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger from the global flags
func newLogger() *logrus.Logger {
	level := cfg.LogLevel
	if cfg.Debug {
		level = "debug"
	}
	return logging.New(logging.Options{
		Level:  level,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
}

func printBanner() {
	cyan := color.New(color.FgCyan, color.Bold)
	gray := color.New(color.FgHiBlack)

	cyan.Print(`
    ____              ____            __
   / __ )__  ______ _/ __ )___  _____/ /___  __
  / __  / / / / __ '/ __  / _ \/ ___/ __/ / / /
 / /_/ / /_/ / /_/ / /_/ /  __(__  ) /_/ /_/ /
/_____/\__,_/\__, /_____/\___/____/\__/\__, /
            /____/                    /____/
`)
	fmt.Println()
	gray.Printf("  Bug bounty reconnaissance dashboard  v%s\n", version.Version)
	fmt.Println()
}
