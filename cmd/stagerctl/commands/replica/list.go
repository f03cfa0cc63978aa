package replica

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/stager/cmd/stagerctl/cmdutil"
	"github.com/marmos91/stager/pkg/apiclient"
	"github.com/marmos91/stager/pkg/stager/models"
)

var (
	listIDs      string
	listStatuses string
	listSE       string
	listTaskID   string
	listWindow   cmdutil.WindowFlags
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List replicas",
	Long: `List cache replicas together with the tasks linked to each.

Examples:
  # Replicas of one task
  stagerctl replica list --task 3f1c...

  # Failed replicas on a storage element
  stagerctl replica list --status Failed --storage-element TAPE`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listIDs, "id", "", "Comma-separated replica ids")
	listCmd.Flags().StringVar(&listStatuses, "status", "", "Comma-separated replica statuses")
	listCmd.Flags().StringVar(&listSE, "storage-element", "", "Storage element name")
	listCmd.Flags().StringVar(&listTaskID, "task", "", "Only replicas linked to this task")
	listWindow.Register(listCmd)
}

type replicaRow struct {
	models.CacheReplica `yaml:",inline"`
	TaskIDs             []string `json:"task_ids" yaml:"task_ids"`
}

// ReplicaList is a list of replicas for table rendering.
type ReplicaList []replicaRow

// Headers implements TableRenderer.
func (rl ReplicaList) Headers() []string {
	return []string{"ID", "STORAGE ELEMENT", "LFN", "STATUS", "SIZE", "LINKS", "TASKS"}
}

// Rows implements TableRenderer.
func (rl ReplicaList) Rows() [][]string {
	rows := make([][]string, 0, len(rl))
	for _, r := range rl {
		rows = append(rows, []string{
			r.ID,
			r.StorageElement,
			r.LFN,
			string(r.Status),
			fmt.Sprint(r.Size),
			fmt.Sprint(r.Links),
			cmdutil.EmptyOr(strings.Join(r.TaskIDs, ","), "-"),
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

	listing, err := client.ListReplicas(apiclient.ReplicaFilter{
		IDs:            cmdutil.ParseCommaSeparatedList(listIDs),
		Statuses:       cmdutil.ParseCommaSeparatedList(listStatuses),
		StorageElement: listSE,
		TaskID:         listTaskID,
		Window:         window,
	})
	if err != nil {
		return fmt.Errorf("failed to list replicas: %w", err)
	}

	rows := make(ReplicaList, 0, len(listing.Replicas))
	for _, r := range listing.Replicas {
		rows = append(rows, replicaRow{CacheReplica: r, TaskIDs: listing.TaskIDs[r.ID]})
	}
	return cmdutil.PrintOutput(os.Stdout, listing, len(rows) == 0, "No replicas found.", rows)
}
