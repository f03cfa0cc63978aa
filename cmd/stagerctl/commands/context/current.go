package context

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/stager/cmd/stagerctl/cmdutil"
	"github.com/marmos91/stager/internal/cli/credentials"
	"github.com/marmos91/stager/internal/cli/output"
)

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show current context",
	RunE:  runContextCurrent,
}

func runContextCurrent(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	ctx, err := store.GetCurrentContext()
	if err != nil {
		return err
	}
	info := describe(store.GetCurrentContextName(), ctx, true)

	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}
	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, info)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, info)
	}

	fmt.Printf("Current context: %s\n", info.Name)
	fmt.Printf("  Server:    %s\n", info.ServerURL)
	fmt.Printf("  Subject:   %s\n", cmdutil.EmptyOr(info.Subject, "(no token)"))
	if info.Role != "" {
		fmt.Printf("  Role:      %s\n", info.Role)
	}
	if info.Expires != "" {
		fmt.Printf("  Expires:   %s\n", info.Expires)
	}
	if info.Expired {
		fmt.Println("  Status:    token expired")
	}
	return nil
}
