package replica

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/stager/cmd/stagerctl/cmdutil"
)

var failReason string

var failCmd = &cobra.Command{
	Use:   "fail <replica-id>...",
	Short: "Fail replicas with a reason",
	Long: `Fail replicas. Every task linked to a failed replica fails with it.
Replicas already Failed or Cancelled are left untouched.

Examples:
  stagerctl replica fail 7d0e... --reason "tape unavailable"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFail,
}

func init() {
	failCmd.Flags().StringVar(&failReason, "reason", "", "Failure reason recorded on each replica")
	_ = failCmd.MarkFlagRequired("reason")
}

func runFail(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	reasons := make(map[string]string, len(args))
	for _, id := range args {
		reasons[id] = failReason
	}

	updated, err := client.MarkReplicasFailed(reasons)
	if err != nil {
		return fmt.Errorf("failed to fail replicas: %w", err)
	}
	return cmdutil.PrintUpdate(os.Stdout, "replica(s)", "failed",
		cmdutil.UpdateResult{Requested: args, Updated: updated})
}
