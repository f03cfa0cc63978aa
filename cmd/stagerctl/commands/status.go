package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/stager/cmd/stagerctl/cmdutil"
	"github.com/marmos91/stager/internal/cli/health"
	"github.com/marmos91/stager/internal/cli/output"
	"github.com/marmos91/stager/internal/cli/timeutil"
	"github.com/marmos91/stager/pkg/apiclient"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	Long: `Display the liveness and readiness of the target stager server.

Examples:
  # Check the server of the current context
  stagerctl status

  # Output as JSON
  stagerctl status -o json`,
	RunE: runStatus,
}

// ServerStatus represents the server status for display.
type ServerStatus struct {
	Server    string `json:"server" yaml:"server"`
	Status    string `json:"status" yaml:"status"`
	Healthy   bool   `json:"healthy" yaml:"healthy"`
	Ready     bool   `json:"ready" yaml:"ready"`
	Service   string `json:"service,omitempty" yaml:"service,omitempty"`
	StartedAt string `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Uptime    string `json:"uptime,omitempty" yaml:"uptime,omitempty"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	serverURL, token, err := cmdutil.ResolveTarget()
	if err != nil {
		return err
	}

	status := ServerStatus{Server: serverURL, Status: "unreachable"}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*health.DefaultTimeout)
	defer cancel()
	if resp, err := health.Fetch(ctx, serverURL); err != nil {
		status.Error = err.Error()
	} else {
		status.Status = resp.Status
		status.Healthy = resp.Healthy()
		status.Service = resp.Data.Service
		status.StartedAt = resp.Data.StartedAt
		status.Uptime = resp.Data.Uptime
		status.Error = resp.Error
	}

	// Readiness is only meaningful once the process answers liveness.
	if status.Healthy {
		client := apiclient.New(serverURL)
		if token != "" {
			client = client.WithToken(token)
		}
		if _, err := client.Ready(); err != nil {
			status.Error = err.Error()
		} else {
			status.Ready = true
		}
	}

	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, status)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, status)
	default:
		printStatusTable(status)
	}
	return nil
}

func printStatusTable(status ServerStatus) {
	fmt.Println()
	fmt.Println("Stager Server Status")
	fmt.Println("====================")
	fmt.Println()
	fmt.Printf("  Server:     %s\n", status.Server)

	switch {
	case status.Healthy:
		fmt.Printf("  Status:     \033[32m● %s\033[0m\n", status.Status)
	case status.Status == "unreachable":
		fmt.Printf("  Status:     \033[31m○ %s\033[0m\n", status.Status)
	default:
		fmt.Printf("  Status:     \033[33m● %s\033[0m\n", status.Status)
	}
	if status.Healthy {
		fmt.Printf("  Ready:      %t\n", status.Ready)
	}
	if status.Service != "" {
		fmt.Printf("  Service:    %s\n", status.Service)
	}
	if status.StartedAt != "" {
		fmt.Printf("  Started:    %s\n", timeutil.FormatTime(status.StartedAt))
	}
	if status.Uptime != "" {
		fmt.Printf("  Uptime:     %s\n", timeutil.FormatUptime(status.Uptime))
	}
	if status.Error != "" {
		fmt.Printf("  Error:      %s\n", status.Error)
	}
	fmt.Println()
}
