package stage

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/stager/cmd/stagerctl/cmdutil"
)

var (
	submitRequestID   string
	submitPinLifetime time.Duration
)

var submitCmd = &cobra.Command{
	Use:   "submit <replica-id>...",
	Short: "Record that replicas were submitted for staging",
	Long: `Record that Waiting replicas were handed to their storage element
under one external request id. Replicas that are not Waiting are skipped.

Examples:
  stagerctl stage submit --request-id req-0042 7d0e... 81ac...
  stagerctl stage submit --request-id req-0043 --pin-lifetime 48h 7d0e...`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitRequestID, "request-id", "", "External request id")
	submitCmd.Flags().DurationVar(&submitPinLifetime, "pin-lifetime", 0, "Requested pin lifetime (0 = server default)")
	_ = submitCmd.MarkFlagRequired("request-id")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	if submitPinLifetime < 0 {
		return fmt.Errorf("--pin-lifetime must not be negative")
	}

	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	updated, err := client.MarkStageSubmitted(map[string][]string{submitRequestID: args}, submitPinLifetime)
	if err != nil {
		return fmt.Errorf("failed to record stage submission: %w", err)
	}
	return cmdutil.PrintUpdate(os.Stdout, "replica(s)", "submitted",
		cmdutil.UpdateResult{Requested: args, Updated: updated})
}
