package config

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/stager/internal/cli/output"
	"github.com/marmos91/stager/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the effective stager configuration, with defaults and
environment overrides applied.

By default outputs YAML format. Use --output to change format.

Examples:
  # Show default config as YAML
  stager config show

  # Show as JSON
  stager config show --output json

  # Show the result of an override
  STAGER_DATABASE_TYPE=postgres stager config show`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	// Never echo the signing secret.
	if cfg.API.JWT.Secret != "" {
		cfg.API.JWT.Secret = "********"
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(cmd.OutOrStdout(), cfg)
	default:
		return output.PrintYAML(cmd.OutOrStdout(), cfg)
	}
}
