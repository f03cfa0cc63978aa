// Package stage implements stage request subcommands for stagerctl.
package stage

import (
	"github.com/spf13/cobra"
)

// Cmd is the stage subcommand.
var Cmd = &cobra.Command{
	Use:   "stage",
	Short: "Manage stage requests",
	Long: `Inspect stage requests and record recalls made outside the agents.

Subcommands:
  list      List stage requests
  submit    Record that replicas were submitted for staging
  complete  Record that replicas are online
  pins      Show pinned replicas and bytes per storage element`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(submitCmd)
	Cmd.AddCommand(completeCmd)
	Cmd.AddCommand(pinsCmd)
}
