package context

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/stager/cmd/stagerctl/cmdutil"
	"github.com/marmos91/stager/internal/cli/credentials"
	"github.com/marmos91/stager/internal/cli/prompt"
)

var setUse bool

var setCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Create or update a context",
	Long: `Create or update a named context. Missing values are prompted for
interactively. Leave the token empty for servers running without
authentication by passing --token "".

Examples:
  # Interactive
  stagerctl context set prod

  # Non-interactive, switching to it
  stagerctl context set prod --server https://stager.example.org --token "$TOKEN" --use`,
	Args: cobra.ExactArgs(1),
	RunE: runContextSet,
}

func init() {
	setCmd.Flags().BoolVar(&setUse, "use", false, "Make this the current context")
}

func runContextSet(cmd *cobra.Command, args []string) error {
	name := args[0]

	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	ctx := &credentials.Context{}
	if existing, err := store.GetContext(name); err == nil {
		*ctx = *existing
	} else if !errors.Is(err, credentials.ErrContextNotFound) {
		return err
	}

	serverURL := cmdutil.Flags.ServerURL
	if serverURL == "" {
		serverURL, err = prompt.InputServerURL("Server URL", cmdutil.EmptyOr(ctx.ServerURL, "http://localhost:8080"))
		if err != nil {
			return cmdutil.HandleAbort(err)
		}
	} else if err := prompt.ValidateServerURL(serverURL); err != nil {
		return err
	}
	ctx.ServerURL = serverURL

	token := cmdutil.Flags.Token
	if !cmd.Flags().Changed("token") {
		token, err = prompt.Secret("Token (empty for none)")
		if err != nil {
			return cmdutil.HandleAbort(err)
		}
	}
	ctx.Token = token

	if err := store.SetContext(name, ctx); err != nil {
		return fmt.Errorf("failed to save context: %w", err)
	}
	if setUse {
		if err := store.UseContext(name); err != nil {
			return err
		}
	}

	cmdutil.PrintSuccess(fmt.Sprintf("Context '%s' saved", name))
	if ctx.IsExpired() {
		cmdutil.PrintWarning("the token has already expired")
	}
	if store.GetCurrentContextName() == name {
		fmt.Printf("Current context: %s\n", name)
	}
	return nil
}
