package task

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/stager/cmd/stagerctl/cmdutil"
	"github.com/marmos91/stager/pkg/apiclient"
	"github.com/marmos91/stager/pkg/stager/models"
)

var (
	listIDs      string
	listStatuses string
	listSource   string
	listWindow   cmdutil.WindowFlags
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Long: `List tasks, oldest first unless --desc is given.

Examples:
  # Every failed task from one source
  stagerctl task list --status Failed --source atlas

  # The 20 most recent tasks of the last day
  stagerctl task list --newer 24h --desc --limit 20`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listIDs, "id", "", "Comma-separated task ids")
	listCmd.Flags().StringVar(&listStatuses, "status", "", "Comma-separated task statuses")
	listCmd.Flags().StringVar(&listSource, "source", "", "Submitting system")
	listWindow.Register(listCmd)
}

// TaskList is a list of tasks for table rendering.
type TaskList []models.Task

// Headers implements TableRenderer.
func (tl TaskList) Headers() []string {
	return []string{"ID", "STATUS", "SOURCE", "CALLBACK", "SUBMITTED", "COMPLETED"}
}

// Rows implements TableRenderer.
func (tl TaskList) Rows() [][]string {
	rows := make([][]string, 0, len(tl))
	for _, t := range tl {
		rows = append(rows, []string{
			t.ID,
			string(t.Status),
			t.Source,
			cmdutil.EmptyOr(t.CallbackID, "-"),
			cmdutil.FormatTime(&t.SubmitTime),
			cmdutil.FormatTime(t.CompleteTime),
		})
	}
	return rows
}

func runList(cmd *cobra.Command, args []string) error {
	window, err := listWindow.Window()
	if err != nil {
		return err
	}

	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	tasks, err := client.ListTasks(apiclient.TaskFilter{
		IDs:      cmdutil.ParseCommaSeparatedList(listIDs),
		Statuses: cmdutil.ParseCommaSeparatedList(listStatuses),
		Source:   listSource,
		Window:   window,
	})
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	rows := TaskList(tasks)
	return cmdutil.PrintOutput(os.Stdout, tasks, len(rows) == 0, "No tasks found.", rows)
}
