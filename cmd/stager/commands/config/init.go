package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/stager/pkg/api"
	"github.com/marmos91/stager/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a configuration file",
	Long: `Write a configuration file holding the defaults: a SQLite database,
every agent enabled and one simulated storage element.

By default the file is created at $XDG_CONFIG_HOME/stager/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  stager config init

  # Initialize with custom path
  stager config init --config /etc/stager/config.yaml

  # Force overwrite existing config
  stager config init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	var err error
	if configPath != "" {
		err = config.InitConfigAt(configPath, initForce)
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Declare your storage elements under storage_elements")
	_, _ = fmt.Fprintln(out, "  2. Start the daemon with: stager start")
	_, _ = fmt.Fprintf(out, "  3. Or specify custom config: stager start --config %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nSecurity note:")
	_, _ = fmt.Fprintln(out, "  The API runs without authentication until a signing secret is set:")
	_, _ = fmt.Fprintf(out, "    export %s=$(openssl rand -hex 32)\n", api.EnvAPISecret)

	return nil
}
