package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/stager/pkg/config"
	"github.com/marmos91/stager/pkg/stager/store"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the stager configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  stager config validate

  # Validate specific config file
  stager config validate --config /etc/stager/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	var warnings []string
	if cfg.API.IsEnabled() && !cfg.API.HasJWTSecret() {
		warnings = append(warnings, "JWT secret not configured - the API will accept unauthenticated requests")
	}
	if len(cfg.StorageElements) == 0 {
		warnings = append(warnings, "No storage elements configured - every submitted file will fail resolution")
	}
	if cfg.Database.Type == store.DatabaseTypeSQLite && cfg.Database.SQLite.Path == ":memory:" {
		warnings = append(warnings, "In-memory database - state is lost on restart")
	}
	a := cfg.Agents
	if !a.Resolve.Enabled && !a.Submit.Enabled && !a.Monitor.Enabled && !a.Finalize.Enabled {
		warnings = append(warnings, "Every agent is disabled - tasks only progress through the API")
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintf(out, "\nConfiguration summary:\n")
	_, _ = fmt.Fprintf(out, "  Database type:     %s\n", cfg.Database.Type)
	_, _ = fmt.Fprintf(out, "  API port:          %d\n", cfg.API.Port)
	_, _ = fmt.Fprintf(out, "  Log level:         %s\n", cfg.Logging.Level)
	_, _ = fmt.Fprintf(out, "  Storage elements:  %d\n", len(cfg.StorageElements))
	_, _ = fmt.Fprintf(out, "  Pin lifetime:      %s\n", cfg.Staging.PinLifetime)
	_, _ = fmt.Fprintf(out, "  Notifier:          %s\n", cfg.Notifier.Type)

	return nil
}
