// Package context implements context management subcommands for stagerctl.
package context

import (
	"github.com/spf13/cobra"
)

// Cmd is the context subcommand.
var Cmd = &cobra.Command{
	Use:   "context",
	Short: "Manage server contexts",
	Long: `Manage connection contexts for multiple stager servers.

A context pairs a server URL with the bearer token used against it.
Tokens are issued on the server host with 'stager token'.

Subcommands:
  set      Create or update a context
  list     List all configured contexts
  use      Switch to a different context
  current  Show current context
  delete   Delete a context`,
}

func init() {
	Cmd.AddCommand(setCmd)
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(useCmd)
	Cmd.AddCommand(currentCmd)
	Cmd.AddCommand(deleteCmd)
}

// ContextInfo is the display form of a context.
type ContextInfo struct {
	Name      string `json:"name" yaml:"name"`
	Current   bool   `json:"current" yaml:"current"`
	ServerURL string `json:"server_url" yaml:"server_url"`
	Subject   string `json:"subject,omitempty" yaml:"subject,omitempty"`
	Role      string `json:"role,omitempty" yaml:"role,omitempty"`
	Expires   string `json:"expires,omitempty" yaml:"expires,omitempty"`
	Expired   bool   `json:"expired" yaml:"expired"`
}
