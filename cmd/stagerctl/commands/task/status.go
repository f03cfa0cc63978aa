package task

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/stager/cmd/stagerctl/cmdutil"
	"github.com/marmos91/stager/internal/cli/output"
)

var statusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Print the status of a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetClient()
		if err != nil {
			return err
		}

		status, err := client.GetTaskStatus(args[0])
		if err != nil {
			return fmt.Errorf("failed to get task status: %w", err)
		}

		format, err := cmdutil.GetOutputFormatParsed()
		if err != nil {
			return err
		}
		if format == output.FormatTable {
			fmt.Println(status)
			return nil
		}
		return cmdutil.PrintResource(os.Stdout, map[string]string{
			"task_id": args[0],
			"status":  status.String(),
		}, nil)
	},
}
