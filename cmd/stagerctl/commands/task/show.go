package task

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/stager/cmd/stagerctl/cmdutil"
	"github.com/marmos91/stager/internal/cli/output"
	"github.com/marmos91/stager/pkg/stager/models"
)

var showCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show a task with its replicas",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

// ReplicaTable renders the replicas of a task.
type ReplicaTable []models.CacheReplica

// Headers implements TableRenderer.
func (rt ReplicaTable) Headers() []string {
	return []string{"REPLICA", "STORAGE ELEMENT", "LFN", "STATUS", "SIZE", "REASON"}
}

// Rows implements TableRenderer.
func (rt ReplicaTable) Rows() [][]string {
	rows := make([][]string, 0, len(rt))
	for _, r := range rt {
		rows = append(rows, []string{
			r.ID,
			r.StorageElement,
			r.LFN,
			string(r.Status),
			fmt.Sprint(r.Size),
			cmdutil.EmptyOr(r.GetReason(), "-"),
		})
	}
	return rows
}

func runShow(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	info, err := client.GetTask(args[0])
	if err != nil {
		return fmt.Errorf("failed to get task: %w", err)
	}

	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}
	if format != output.FormatTable {
		return cmdutil.PrintResource(os.Stdout, info, nil)
	}

	t := info.Task
	pairs := [][2]string{
		{"ID", t.ID},
		{"Status", string(t.Status)},
		{"Source", t.Source},
		{"Callback", cmdutil.EmptyOr(t.CallbackID, "-")},
		{"Submitted", cmdutil.FormatTime(&t.SubmitTime)},
		{"Updated", cmdutil.FormatTime(&t.LastUpdate)},
		{"Completed", cmdutil.FormatTime(t.CompleteTime)},
	}
	if t.SourceTaskID != nil {
		pairs = append(pairs, [2]string{"Source task", *t.SourceTaskID})
	}
	if err := output.SimpleTable(os.Stdout, pairs); err != nil {
		return err
	}

	fmt.Println()
	return cmdutil.PrintOutput(os.Stdout, info.Replicas, len(info.Replicas) == 0,
		"Task has no replicas.", ReplicaTable(info.Replicas))
}
