package task

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/stager/cmd/stagerctl/cmdutil"
)

var doneCmd = &cobra.Command{
	Use:   "done <task-id>...",
	Short: "Mark StageCompleting tasks Done",
	Long: `Mark tasks Done once the submitting system has collected their files.
Only tasks in StageCompleting move; the others are reported as not
eligible.

Examples:
  stagerctl task done 3f1c... 9a2b...`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetClient()
		if err != nil {
			return err
		}

		updated, err := client.SetTasksDone(args)
		if err != nil {
			return fmt.Errorf("failed to mark tasks done: %w", err)
		}
		return cmdutil.PrintUpdate(os.Stdout, "task(s)", "marked Done",
			cmdutil.UpdateResult{Requested: args, Updated: updated})
	},
}
