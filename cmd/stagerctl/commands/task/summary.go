package task

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/marmos91/stager/cmd/stagerctl/cmdutil"
	"github.com/marmos91/stager/internal/cli/output"
	"github.com/marmos91/stager/pkg/stager/models"
)

var summaryCmd = &cobra.Command{
	Use:   "summary <task-id>",
	Short: "Show the per-file view of a task",
	Long: `Show each file of a task with the storage element, physical name,
size and status of its replica. This is the view reported back to the
submitting system.`,
	Args: cobra.ExactArgs(1),
	RunE: runSummary,
}

// fileTable renders a task summary, one row per file in LFN order.
type fileTable struct {
	summary *models.TaskSummary
}

// Headers implements TableRenderer.
func (ft fileTable) Headers() []string {
	return []string{"LFN", "STORAGE ELEMENT", "PFN", "SIZE", "STATUS", "REASON"}
}

// Rows implements TableRenderer.
func (ft fileTable) Rows() [][]string {
	lfns := make([]string, 0, len(ft.summary.Files))
	for lfn := range ft.summary.Files {
		lfns = append(lfns, lfn)
	}
	sort.Strings(lfns)

	rows := make([][]string, 0, len(lfns))
	for _, lfn := range lfns {
		f := ft.summary.Files[lfn]
		rows = append(rows, []string{
			lfn,
			f.StorageElement,
			cmdutil.EmptyOr(f.PFN, "-"),
			fmt.Sprint(f.Size),
			string(f.Status),
			cmdutil.EmptyOr(f.Reason, "-"),
		})
	}
	return rows
}

func runSummary(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	summary, err := client.GetTaskSummary(args[0])
	if err != nil {
		return fmt.Errorf("failed to get task summary: %w", err)
	}

	if format, _ := cmdutil.GetOutputFormatParsed(); format == output.FormatTable {
		fmt.Printf("Task %s: %s (source %s)\n\n", summary.TaskID, summary.Status, summary.Source)
	}
	return cmdutil.PrintOutput(os.Stdout, summary, len(summary.Files) == 0,
		"Task has no files.", fileTable{summary: summary})
}
