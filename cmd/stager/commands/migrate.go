package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/stager/internal/logger"
	"github.com/marmos91/stager/pkg/config"
	"github.com/marmos91/stager/pkg/stager/store"
)

var migrateStatusOnly bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Run database migrations for the lifecycle database.

SQLite schemas are created from the models. PostgreSQL schemas follow the
versioned migrations embedded in the binary. The daemon applies pending
migrations on start; this command lets operators do it ahead of an upgrade.

Examples:
  # Run migrations with default config
  stager migrate

  # Show the applied PostgreSQL schema version without changing it
  stager migrate --status`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateStatusOnly, "status", false, "Only report the PostgreSQL schema version")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx := context.Background()
	if migrateStatusOnly {
		return printMigrationStatus(ctx, cfg)
	}

	logger.Info("Running database migrations", "type", cfg.Database.Type)

	st, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	defer func() { _ = st.Close() }()

	if err := st.Healthcheck(ctx); err != nil {
		return fmt.Errorf("migration verification failed: %w", err)
	}

	fmt.Printf("Migrations completed successfully (database type: %s)\n", cfg.Database.Type)
	if cfg.Database.Type == store.DatabaseTypePostgres {
		return printMigrationStatus(ctx, cfg)
	}
	return nil
}

func printMigrationStatus(ctx context.Context, cfg *config.Config) error {
	if cfg.Database.Type != store.DatabaseTypePostgres {
		fmt.Println("SQLite schemas are not versioned; nothing to report")
		return nil
	}

	status, err := store.GetMigrationStatus(ctx, &cfg.Database.Postgres)
	if err != nil {
		return err
	}
	fmt.Printf("Schema version: %d", status.Version)
	if status.Dirty {
		fmt.Print(" (dirty, manual intervention required)")
	}
	fmt.Println()
	return nil
}
