package context

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/stager/cmd/stagerctl/cmdutil"
	"github.com/marmos91/stager/internal/cli/credentials"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configured contexts",
	Long: `List all configured server contexts. The current context is
marked with an asterisk.

Examples:
  stagerctl context list
  stagerctl context list -o json`,
	RunE: runContextList,
}

// ContextList is a list of contexts for table rendering.
type ContextList []ContextInfo

// Headers implements TableRenderer.
func (cl ContextList) Headers() []string {
	return []string{"CURRENT", "NAME", "SERVER", "SUBJECT", "ROLE", "EXPIRES"}
}

// Rows implements TableRenderer.
func (cl ContextList) Rows() [][]string {
	rows := make([][]string, 0, len(cl))
	for _, c := range cl {
		current := ""
		if c.Current {
			current = "*"
		}
		expires := cmdutil.EmptyOr(c.Expires, "-")
		if c.Expired {
			expires += " (expired)"
		}
		rows = append(rows, []string{
			current,
			c.Name,
			c.ServerURL,
			cmdutil.EmptyOr(c.Subject, "-"),
			cmdutil.EmptyOr(c.Role, "-"),
			expires,
		})
	}
	return rows
}

// describe builds the display form of a stored context.
func describe(name string, ctx *credentials.Context, current bool) ContextInfo {
	info := ContextInfo{
		Name:      name,
		Current:   current,
		ServerURL: ctx.ServerURL,
		Expired:   ctx.IsExpired(),
	}
	if tok := ctx.TokenInfo(); tok != nil {
		info.Subject = tok.Subject
		info.Role = string(tok.Role)
		if !tok.ExpiresAt.IsZero() {
			info.Expires = tok.ExpiresAt.Local().Format(time.DateTime)
		}
	} else if ctx.Token != "" {
		info.Subject = "(opaque token)"
	}
	return info
}

func runContextList(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	current := store.GetCurrentContextName()
	names := store.ListContexts()
	rows := make(ContextList, 0, len(names))
	for _, name := range names {
		ctx, err := store.GetContext(name)
		if err != nil {
			return err
		}
		rows = append(rows, describe(name, ctx, name == current))
	}

	return cmdutil.PrintOutput(os.Stdout, rows, len(rows) == 0,
		"No contexts configured. Run 'stagerctl context set <name>' to add one.", rows)
}
