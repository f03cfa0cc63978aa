// Package replica implements cache replica subcommands for stagerctl.
package replica

import (
	"github.com/spf13/cobra"
)

// Cmd is the replica subcommand.
var Cmd = &cobra.Command{
	Use:   "replica",
	Short: "Inspect and update cache replicas",
	Long: `Inspect cache replicas and drive their catalog-side transitions.

A replica is one file on one storage element, shared by every task that
asks for it.

Subcommands:
  list      List replicas
  waiting   List replicas ready for stage submission
  resolve   Record catalog information for a New replica
  fail      Fail replicas with a reason`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(waitingCmd)
	Cmd.AddCommand(resolveCmd)
	Cmd.AddCommand(failCmd)
}
