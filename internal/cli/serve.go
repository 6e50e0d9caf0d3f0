package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/G381N/BugBesty/internal/server"
	"github.com/G381N/BugBesty/internal/store"
)

var serveAllowAll bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web dashboard server",
	Long: `Start the BugBesty web dashboard.

The server provides:
  - REST API for projects, subdomains and vulnerability checklists
  - Multi-source subdomain enumeration
  - WebSocket for live enumeration progress
  - Embedded HTML dashboard

Security features:
  - JWT authentication (RSA-4096, sessions invalidated on restart)
  - Progressive lockout on failed logins
  - Rate limiting, CORS protection and security headers

Examples:
  # Start with default settings (localhost:8888)
  bugbesty serve

  # Start on a custom port
  bugbesty serve --port 9000

  # Allow external connections (use with caution!)
  bugbesty serve --host 0.0.0.0`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&cfg.Port, "port", "p", cfg.Port, "Server port")
	serveCmd.Flags().StringVarP(&cfg.Host, "host", "H", cfg.Host, "Server host (use 0.0.0.0 for all interfaces)")
	serveCmd.Flags().BoolVar(&serveAllowAll, "allow-all-origins", false, "Allow all CORS origins (insecure, for development)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	printBanner()

	yellow := color.New(color.FgYellow)
	if cfg.Host == "0.0.0.0" {
		yellow.Println("  [!] Server is accessible from all network interfaces")
		yellow.Println("  [!] Ensure you have proper firewall rules in place")
		fmt.Println()
	}

	cfg.AllowedOrigins = []string{
		fmt.Sprintf("http://localhost:%d", cfg.Port),
		fmt.Sprintf("http://127.0.0.1:%d", cfg.Port),
	}
	if serveAllowAll {
		cfg.AllowedOrigins = []string{"*"}
		yellow.Println("  [!] CORS allows all origins")
		fmt.Println()
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	st, err := store.NewSQLite(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	srv, err := server.New(&cfg, st, newLogger())
	if err != nil {
		return err
	}
	return srv.StartWithGracefulShutdown()
}
