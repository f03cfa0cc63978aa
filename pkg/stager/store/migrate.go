package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql

	"github.com/marmos91/stager/internal/logger"
	"github.com/marmos91/stager/pkg/stager/store/migrations"
)

// MigrationStatus describes the schema version of a PostgreSQL database.
type MigrationStatus struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

// newMigrator opens a golang-migrate instance over the embedded migrations.
// The returned close function releases the database handle.
func newMigrator(ctx context.Context, cfg *PostgresConfig) (*migrate.Migrate, func(), error) {
	db, err := sql.Open("pgx", cfg.URL())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	closeDB := func() { _ = db.Close() }

	if err := db.PingContext(ctx); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	driver, err := migratepg.WithInstance(db, &migratepg.Config{
		MigrationsTable: "schema_migrations",
		DatabaseName:    cfg.Database,
	})
	if err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return m, closeDB, nil
}

// RunMigrations applies every pending PostgreSQL migration. golang-migrate
// takes an advisory lock, so concurrent coordinators starting together are
// safe.
func RunMigrations(ctx context.Context, cfg *PostgresConfig) error {
	m, closeDB, err := newMigrator(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	logger.Info("Applying database migrations", "database", cfg.Database)
	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Debug("Database schema is up to date")
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		logger.Warn("Database schema is in dirty state - manual intervention may be required",
			"version", version)
	}

	return nil
}

// GetMigrationStatus reports the applied schema version without changing it.
func GetMigrationStatus(ctx context.Context, cfg *PostgresConfig) (*MigrationStatus, error) {
	m, closeDB, err := newMigrator(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer closeDB()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return &MigrationStatus{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get migration version: %w", err)
	}
	return &MigrationStatus{Version: version, Dirty: dirty}, nil
}
