package stage

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/stager/cmd/stagerctl/cmdutil"
	"github.com/marmos91/stager/pkg/apiclient"
	"github.com/marmos91/stager/pkg/stager/models"
)

var (
	listReplicaIDs string
	listStatuses   string
	listRequestID  string
	listTaskID     string
	listWindow     cmdutil.WindowFlags
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stage requests",
	Long: `List stage requests.

Examples:
  # Outstanding recalls
  stagerctl stage list --status StageSubmitted

  # Every replica of one external request
  stagerctl stage list --request-id req-0042`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listReplicaIDs, "replica", "", "Comma-separated replica ids")
	listCmd.Flags().StringVar(&listStatuses, "status", "", "Comma-separated stage statuses")
	listCmd.Flags().StringVar(&listRequestID, "request-id", "", "External request id")
	listCmd.Flags().StringVar(&listTaskID, "task", "", "Only requests of replicas linked to this task")
	listWindow.Register(listCmd)
}

// StageRequestList is a list of stage requests for table rendering.
type StageRequestList []models.StageRequest

// Headers implements TableRenderer.
func (sl StageRequestList) Headers() []string {
	return []string{"REPLICA", "REQUEST", "STATUS", "SUBMITTED", "COMPLETED", "PIN", "PIN EXPIRES"}
}

// Rows implements TableRenderer.
func (sl StageRequestList) Rows() [][]string {
	rows := make([][]string, 0, len(sl))
	for _, s := range sl {
		rows = append(rows, []string{
			s.ReplicaID,
			s.RequestID,
			string(s.StageStatus),
			cmdutil.FormatTime(&s.SubmitTime),
			cmdutil.FormatTime(s.CompleteTime),
			(time.Duration(s.PinLength) * time.Second).String(),
			cmdutil.FormatTime(s.PinExpiryTime),
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

	requests, err := client.ListStageRequests(apiclient.StageRequestFilter{
		ReplicaIDs: cmdutil.ParseCommaSeparatedList(listReplicaIDs),
		Statuses:   cmdutil.ParseCommaSeparatedList(listStatuses),
		RequestID:  listRequestID,
		TaskID:     listTaskID,
		Window:     window,
	})
	if err != nil {
		return fmt.Errorf("failed to list stage requests: %w", err)
	}

	rows := StageRequestList(requests)
	return cmdutil.PrintOutput(os.Stdout, requests, len(rows) == 0, "No stage requests found.", rows)
}
