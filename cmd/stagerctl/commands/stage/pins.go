package stage

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/marmos91/stager/cmd/stagerctl/cmdutil"
	"github.com/marmos91/stager/internal/cli/output"
	"github.com/marmos91/stager/pkg/stager/models"
)

var pinsCmd = &cobra.Command{
	Use:   "pins",
	Short: "Show pinned replicas and bytes per storage element",
	Long: `Show how many replicas hold a live pin on each storage element and
their total size. The submit agent admits new recalls against these
figures and the configured quotas.`,
	RunE: runPins,
}

// pinTable renders pin usage with human-readable sizes.
func pinTable(usage []models.PinUsage) *output.TableData {
	table := output.NewTableData("STORAGE ELEMENT", "REPLICAS", "SIZE")
	for _, p := range usage {
		table.AddRow(
			p.StorageElement,
			fmt.Sprint(p.Replicas),
			humanize.IBytes(uint64(max(p.TotalSize, 0))),
		)
	}
	return table
}

func runPins(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	usage, err := client.SubmittedPins()
	if err != nil {
		return fmt.Errorf("failed to get pin usage: %w", err)
	}

	return cmdutil.PrintOutput(os.Stdout, usage, len(usage) == 0, "No pinned replicas.", pinTable(usage))
}
