package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/G381N/BugBesty/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		color.New(color.FgCyan, color.Bold).Printf("bugbesty %s\n", version.Version)
		fmt.Printf("  commit:     %s\n", version.Commit)
		fmt.Printf("  build date: %s\n", version.BuildDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
