package replica

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/stager/cmd/stagerctl/cmdutil"
	"github.com/marmos91/stager/pkg/stager/models"
)

var (
	resolvePFN      string
	resolveSize     int64
	resolveChecksum string
	resolveGUID     string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <replica-id>",
	Short: "Record catalog information for a New replica",
	Long: `Record the physical file name, size and checksum of a replica. A New
replica moves to Waiting; other replicas only have their fields updated.

Examples:
  stagerctl replica resolve 7d0e... --pfn root://tape.example.org//data/f1 --size 1048576`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolvePFN, "pfn", "", "Physical file name")
	resolveCmd.Flags().Int64Var(&resolveSize, "size", 0, "Size in bytes")
	resolveCmd.Flags().StringVar(&resolveChecksum, "checksum", "", "Checksum")
	resolveCmd.Flags().StringVar(&resolveGUID, "guid", "", "Catalog GUID")
	_ = resolveCmd.MarkFlagRequired("pfn")
}

func runResolve(cmd *cobra.Command, args []string) error {
	if resolveSize < 0 {
		return fmt.Errorf("--size must not be negative")
	}

	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	updated, err := client.MarkReplicasResolved([]models.ReplicaResolution{{
		ReplicaID: args[0],
		PFN:       resolvePFN,
		Size:      resolveSize,
		Checksum:  resolveChecksum,
		GUID:      resolveGUID,
	}})
	if err != nil {
		return fmt.Errorf("failed to resolve replica: %w", err)
	}
	return cmdutil.PrintUpdate(os.Stdout, "replica(s)", "resolved",
		cmdutil.UpdateResult{Requested: args, Updated: updated})
}
