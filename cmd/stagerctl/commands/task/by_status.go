package task

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/stager/cmd/stagerctl/cmdutil"
	"github.com/marmos91/stager/pkg/stager/models"
)

var byStatusCmd = &cobra.Command{
	Use:   "by-status <status>",
	Short: "List tasks in one status, oldest first",
	Long: `List the tasks currently in a status, oldest first.

Valid statuses: New, Waiting, StageSubmitted, StageCompleting, Staged, Done, Failed.

Examples:
  stagerctl task by-status StageCompleting`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: taskStatusNames(),
	RunE:      runByStatus,
}

func taskStatusNames() []string {
	statuses := models.AllTaskStatuses()
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}
	return names
}

// TaskRefList is a list of task references for table rendering.
type TaskRefList []models.TaskRef

// Headers implements TableRenderer.
func (tl TaskRefList) Headers() []string {
	return []string{"ID", "SOURCE", "CALLBACK", "SOURCE TASK"}
}

// Rows implements TableRenderer.
func (tl TaskRefList) Rows() [][]string {
	rows := make([][]string, 0, len(tl))
	for _, t := range tl {
		sourceTask := "-"
		if t.SourceTaskID != nil {
			sourceTask = *t.SourceTaskID
		}
		rows = append(rows, []string{t.ID, t.Source, cmdutil.EmptyOr(t.CallbackID, "-"), sourceTask})
	}
	return rows
}

func runByStatus(cmd *cobra.Command, args []string) error {
	status, err := models.ParseTaskStatus(args[0])
	if err != nil {
		return err
	}

	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	refs, err := client.TasksByStatus(status.String())
	if err != nil {
		return fmt.Errorf("failed to list %s tasks: %w", status, err)
	}

	rows := TaskRefList(refs)
	return cmdutil.PrintOutput(os.Stdout, refs, len(rows) == 0, fmt.Sprintf("No %s tasks.", status), rows)
}
