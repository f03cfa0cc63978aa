package commands

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/stager/cmd/stagerctl/cmdutil"
	"github.com/marmos91/stager/pkg/stager/agents"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Show background agent statistics",
	Long: `Display the cycle statistics of the server's background agents
(resolve, submit, monitor, finalize).

Examples:
  stagerctl agents
  stagerctl agents -o json`,
	RunE: runAgents,
}

type agentRow struct {
	Name string `json:"name" yaml:"name"`
	agents.Stats
}

// AgentList is a list of agent statistics for table rendering.
type AgentList []agentRow

// Headers implements TableRenderer.
func (al AgentList) Headers() []string {
	return []string{"AGENT", "CYCLES", "PROCESSED", "FAILURES", "LAST RUN", "LAST ERROR"}
}

// Rows implements TableRenderer.
func (al AgentList) Rows() [][]string {
	rows := make([][]string, 0, len(al))
	for _, a := range al {
		rows = append(rows, []string{
			a.Name,
			fmt.Sprint(a.Cycles),
			fmt.Sprint(a.Processed),
			fmt.Sprint(a.Failures),
			formatOptionalTime(a.LastRunAt),
			cmdutil.EmptyOr(a.LastError, "-"),
		})
	}
	return rows
}

func formatOptionalTime(t time.Time) string {
	return cmdutil.FormatTime(&t)
}

func runAgents(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	stats, err := client.AgentStats()
	if err != nil {
		return fmt.Errorf("failed to get agent statistics: %w", err)
	}

	rows := make(AgentList, 0, len(stats))
	for name, s := range stats {
		rows = append(rows, agentRow{Name: name, Stats: s})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })

	return cmdutil.PrintOutput(os.Stdout, stats, len(rows) == 0, "No agents scheduled.", rows)
}
