package stage

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/stager/cmd/stagerctl/cmdutil"
)

var completeCmd = &cobra.Command{
	Use:   "complete <replica-id>...",
	Short: "Record that replicas are online",
	Long: `Mark StageSubmitted replicas Staged and start their pin retention.
A task whose replicas are now all staged moves to Done; one with replicas
still in flight moves to StageCompleting.

Examples:
  stagerctl stage complete 7d0e... 81ac...`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetClient()
		if err != nil {
			return err
		}

		updated, err := client.MarkStageComplete(args)
		if err != nil {
			return fmt.Errorf("failed to complete stage requests: %w", err)
		}
		return cmdutil.PrintUpdate(os.Stdout, "replica(s)", "staged",
			cmdutil.UpdateResult{Requested: args, Updated: updated})
	},
}
