package task

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/stager/cmd/stagerctl/cmdutil"
	"github.com/marmos91/stager/internal/cli/output"
	"github.com/marmos91/stager/internal/cli/prompt"
)

var removeForce bool

var removeCmd = &cobra.Command{
	Use:   "remove <task-id>",
	Short: "Remove a task and release its replicas",
	Long: `Remove a task. Replicas no longer linked to any task are deleted
together with their stage requests.

Examples:
  stagerctl task remove 3f1c...
  stagerctl task remove 3f1c... --force`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func init() {
	removeCmd.Flags().BoolVarP(&removeForce, "force", "f", false, "Skip confirmation")
}

func runRemove(cmd *cobra.Command, args []string) error {
	taskID := args[0]

	confirmed, err := prompt.ConfirmWithForce(fmt.Sprintf("Remove task '%s'?", taskID), removeForce)
	if err != nil {
		return cmdutil.HandleAbort(err)
	}
	if !confirmed {
		fmt.Println("Aborted.")
		return nil
	}

	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	result, err := client.RemoveTask(taskID)
	if err != nil {
		return fmt.Errorf("failed to remove task: %w", err)
	}

	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}
	if format != output.FormatTable {
		return cmdutil.PrintResource(os.Stdout, result, nil)
	}

	cmdutil.PrintSuccess(fmt.Sprintf("Task '%s' removed", taskID))
	fmt.Printf("  Replicas unlinked:        %d\n", len(result.Unlinked))
	fmt.Printf("  Replicas deleted:         %d\n", len(result.RemovedReplicas))
	fmt.Printf("  Stage requests deleted:   %d\n", result.RemovedStageRequests)
	return nil
}
