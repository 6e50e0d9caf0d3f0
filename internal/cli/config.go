package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/G381N/BugBesty/internal/apikeys"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage API keys and settings",
	Long: `Manage provider API keys.

Keys live in a single YAML file and can also be supplied through
environment variables (BUGBESTY_<SERVICE>_KEY or <SERVICE>_API_KEY),
which take precedence over the file.`,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show configured services and masked keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		keys := apikeys.NewManager()
		if err := keys.Load(); err != nil {
			return err
		}

		green := color.New(color.FgGreen)
		gray := color.New(color.FgHiBlack)
		for _, service := range apikeys.Services() {
			key := keys.Key(service)
			if key != "" {
				green.Printf("  %-16s %s\n", service, apikeys.MaskKey(key))
			} else {
				gray.Printf("  %-16s %s\n", service, apikeys.MaskKey(key))
			}
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <service> <key>",
	Short: "Store an API key for a service",
	Long: `Store an API key for a service.

Censys expects "api_id:api_secret" as the key value.

Examples:
  bugbesty config set shodan AbC123...
  bugbesty config set censys myid:mysecret
  bugbesty config set gemini AIza...`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		keys := apikeys.NewManager()
		if err := keys.Load(); err != nil {
			return err
		}
		if err := keys.SetKey(args[0], args[1]); err != nil {
			return err
		}
		if err := keys.Save(); err != nil {
			return err
		}
		color.New(color.FgGreen).Printf("  Saved key for %s\n", args[0])
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(apikeys.DefaultConfigPath())
	},
}

func init() {
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)

	rootCmd.AddCommand(configCmd)
}
