package replica

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/stager/cmd/stagerctl/cmdutil"
	"github.com/marmos91/stager/pkg/stager/models"
)

var waitingCmd = &cobra.Command{
	Use:   "waiting",
	Short: "List replicas ready for stage submission",
	Long: `List Waiting replicas, each with a task that asked for it. These are
the candidates the submit agent hands to the storage elements.`,
	RunE: runWaiting,
}

// WaitingList is a list of waiting replicas for table rendering.
type WaitingList []models.WaitingReplica

// Headers implements TableRenderer.
func (wl WaitingList) Headers() []string {
	return []string{"REPLICA", "TASK", "STORAGE ELEMENT", "PFN", "SIZE"}
}

// Rows implements TableRenderer.
func (wl WaitingList) Rows() [][]string {
	rows := make([][]string, 0, len(wl))
	for _, w := range wl {
		rows = append(rows, []string{
			w.Replica.ID,
			w.TaskID,
			w.Replica.StorageElement,
			cmdutil.EmptyOr(w.Replica.PFN, "-"),
			fmt.Sprint(w.Replica.Size),
		})
	}
	return rows
}

func runWaiting(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	waiting, err := client.ListWaitingReplicas()
	if err != nil {
		return fmt.Errorf("failed to list waiting replicas: %w", err)
	}

	rows := WaitingList(waiting)
	return cmdutil.PrintOutput(os.Stdout, waiting, len(rows) == 0, "No replicas waiting.", rows)
}
