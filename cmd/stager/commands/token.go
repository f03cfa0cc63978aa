package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/stager/pkg/api"
	"github.com/marmos91/stager/pkg/api/auth"
	"github.com/marmos91/stager/pkg/config"
)

var (
	tokenSubject string
	tokenRole    string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API bearer token",
	Long: `Issue a bearer token for the REST API, signed with the configured secret.

Roles nest: a reader can query, an operator can also submit tasks and
report recall progress, an admin can also remove tasks.

The secret is read from api.jwt.secret or the ` + api.EnvAPISecret + ` environment
variable and must be at least 32 characters.

Examples:
  # Token for a workflow system submitting tasks
  stager token --subject workflow --role operator

  # Short-lived admin token
  stager token --subject alice --role admin --ttl 1h`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Identity the token is issued to (required)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(auth.RoleReader), "Role granted by the token (reader|operator|admin)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default: api.jwt.token_duration)")
	_ = tokenCmd.MarkFlagRequired("subject")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	role, err := auth.ParseRole(tokenRole)
	if err != nil {
		return err
	}

	if !cfg.API.HasJWTSecret() {
		return fmt.Errorf("no JWT secret configured: set api.jwt.secret or %s", api.EnvAPISecret)
	}

	svc, err := auth.NewJWTService(auth.JWTConfig{
		Secret:        cfg.API.GetJWTSecret(),
		Issuer:        cfg.API.JWT.Issuer,
		TokenDuration: cfg.API.JWT.TokenDuration,
	})
	if err != nil {
		return err
	}

	token, expiresAt, err := svc.GenerateToken(tokenSubject, role, tokenTTL)
	if err != nil {
		return err
	}

	fmt.Println(token)
	cmd.PrintErrf("Token for %s (%s) expires %s\n", tokenSubject, role, expiresAt.Local().Format(time.RFC1123))
	return nil
}
