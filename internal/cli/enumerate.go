package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/G381N/BugBesty/internal/apikeys"
	"github.com/G381N/BugBesty/internal/enum"
)

var (
	enumDomain    string
	enumStartFrom int
	enumChunkSize int
	enumJSON      bool
)

var enumerateCmd = &cobra.Command{
	Use:   "enumerate",
	Short: "Enumerate subdomains for a domain",
	Long: `Run multi-source subdomain enumeration from the terminal, without
starting the dashboard.

Sources that need an API key (SecurityTrails, Censys, CertSpotter,
Shodan, BinaryEdge, VirusTotal) are used when a key is configured;
run 'bugbesty config list' to see which keys are set. The keyed
certificate-transparency sources fall back to DNS-verified candidate
probing when no key is available.

Examples:
  # Full run across all sources
  bugbesty enumerate -d example.com

  # Only the first chunk of sources
  bugbesty enumerate -d example.com --chunk-size 5

  # Machine-readable output
  bugbesty enumerate -d example.com --json`,
	RunE: runEnumerate,
}

func init() {
	enumerateCmd.Flags().StringVarP(&enumDomain, "domain", "d", "", "Target domain (required)")
	enumerateCmd.Flags().IntVar(&enumStartFrom, "start-from", 0, "Index of the first source to run")
	enumerateCmd.Flags().IntVar(&enumChunkSize, "chunk-size", 0, "Number of sources to run (0 = all remaining)")
	enumerateCmd.Flags().BoolVar(&enumJSON, "json", false, "Emit the result as JSON")
	enumerateCmd.MarkFlagRequired("domain")

	rootCmd.AddCommand(enumerateCmd)
}

func runEnumerate(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	keys := apikeys.NewManager()
	if err := keys.Load(); err != nil {
		return fmt.Errorf("loading API keys: %w", err)
	}

	resolver := enum.NewResolver(cfg.DNSTimeout)
	sources := enum.NewDefaultSources(keys, resolver, logger)
	orch := enum.NewOrchestrator(sources, logger)
	orch.SourceTimeout = cfg.SourceTimeout

	if !enumJSON {
		printBanner()
		orch.OnProgress = func(source string, found int) {
			color.New(color.FgHiBlack).Printf("  [*] %-16s %d found\n", source, found)
		}
		color.New(color.FgCyan).Printf("  Enumerating %s across %d sources...\n\n", enumDomain, orch.SourceCount())
	}

	chunk := enumChunkSize
	if chunk <= 0 {
		chunk = orch.SourceCount() - enumStartFrom
	}
	result, err := orch.EnumerateFrom(context.Background(), enumDomain, enumStartFrom, chunk)
	if err != nil {
		return err
	}

	if enumJSON {
		return json.NewEncoder(os.Stdout).Encode(result)
	}

	fmt.Println()
	color.New(color.FgGreen, color.Bold).Printf("  %d unique subdomains in %s\n\n", len(result.Subdomains), result.Duration.Round(10*time.Millisecond))
	for _, sub := range result.Subdomains {
		fmt.Printf("    %s\n", sub)
	}

	fmt.Println()
	names := make([]string, 0, len(result.Sources))
	for name := range result.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		color.New(color.FgHiBlack).Printf("    %-16s %d\n", name, result.Sources[name])
	}
	if !result.Done {
		fmt.Println()
		color.New(color.FgYellow).Printf("  More sources remain; continue with --start-from %d\n", result.NextFrom)
	}
	return nil
}
