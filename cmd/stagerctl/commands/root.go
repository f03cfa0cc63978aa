// Package commands implements the CLI commands for the stagerctl client.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/stager/cmd/stagerctl/cmdutil"
	ctxcmd "github.com/marmos91/stager/cmd/stagerctl/commands/context"
	replicacmd "github.com/marmos91/stager/cmd/stagerctl/commands/replica"
	stagecmd "github.com/marmos91/stager/cmd/stagerctl/commands/stage"
	taskcmd "github.com/marmos91/stager/cmd/stagerctl/commands/task"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "stagerctl",
	Short: "Stager Control - Remote management client",
	Long: `stagerctl is the command-line client for stager servers.

Use it to submit staging tasks, inspect tasks, replicas and stage
requests, and drive lifecycle transitions through the stager REST API.

Use "stagerctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cmdutil.Flags.ServerURL, _ = cmd.Flags().GetString("server")
		cmdutil.Flags.Token, _ = cmd.Flags().GetString("token")
		cmdutil.Flags.Output, _ = cmd.Flags().GetString("output")
		cmdutil.Flags.NoColor, _ = cmd.Flags().GetBool("no-color")
		cmdutil.Flags.Verbose, _ = cmd.Flags().GetBool("verbose")
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().String("server", "", "Server URL (overrides $"+cmdutil.EnvServer+" and the current context)")
	rootCmd.PersistentFlags().String("token", "", "Bearer token (overrides $"+cmdutil.EnvToken+" and the current context)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(ctxcmd.Cmd)
	rootCmd.AddCommand(taskcmd.Cmd)
	rootCmd.AddCommand(replicacmd.Cmd)
	rootCmd.AddCommand(stagecmd.Cmd)
	rootCmd.AddCommand(completionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
