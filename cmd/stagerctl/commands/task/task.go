// Package task implements task subcommands for stagerctl.
package task

import (
	"github.com/spf13/cobra"
)

// Cmd is the task subcommand.
var Cmd = &cobra.Command{
	Use:   "task",
	Short: "Manage staging tasks",
	Long: `Submit and inspect staging tasks.

A task asks for a set of files, grouped by storage element, to be brought
online. Its status is derived from the replicas it links.

Subcommands:
  submit     Submit a new task
  list       List tasks
  by-status  List tasks in one status, oldest first
  show       Show a task with its replicas
  summary    Show the per-file view of a task
  status     Print the status of a task
  done       Mark StageCompleting tasks Done
  remove     Remove a task and release its replicas`,
}

func init() {
	Cmd.AddCommand(submitCmd)
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(byStatusCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(summaryCmd)
	Cmd.AddCommand(statusCmd)
	Cmd.AddCommand(doneCmd)
	Cmd.AddCommand(removeCmd)
}
