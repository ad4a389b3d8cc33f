// Package db opens the PostgreSQL connection and applies the embedded
// schema migrations.
package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationRunner handles database migrations
type MigrationRunner struct {
	migrate *migrate.Migrate
	logger  *zap.Logger
}

// NewMigrationRunner creates a new migration runner
func NewMigrationRunner(db *sql.DB, logger *zap.Logger) (*MigrationRunner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return &MigrationRunner{
		migrate: m,
		logger:  logger,
	}, nil
}

// Up runs all pending migrations
func (mr *MigrationRunner) Up() error {
	mr.logger.Info("Running database migrations")

	err := mr.migrate.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		mr.logger.Info("No new migrations to apply")
		return nil
	}

	version, dirty, err := mr.migrate.Version()
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if dirty {
		return fmt.Errorf("database is in dirty state at version %d", version)
	}

	mr.logger.Info("Migrated database", zap.Uint("version", version))
	return nil
}

// Down rolls back one migration
func (mr *MigrationRunner) Down() error {
	mr.logger.Info("Rolling back last migration")

	err := mr.migrate.Steps(-1)
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rollback failed: %w", err)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		mr.logger.Info("No migrations to roll back")
		return nil
	}

	version, dirty, err := mr.migrate.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			mr.logger.Info("Rolled back all migrations")
			return nil
		}
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if dirty {
		return fmt.Errorf("database is in dirty state at version %d", version)
	}

	mr.logger.Info("Rolled back database", zap.Uint("version", version))
	return nil
}

// Version returns the current migration version
func (mr *MigrationRunner) Version() (uint, bool, error) {
	version, dirty, err := mr.migrate.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, fmt.Errorf("failed to get version: %w", err)
	}
	return version, dirty, nil
}

// Force sets the migration version without running migrations
// Use with caution - typically only for fixing dirty state
func (mr *MigrationRunner) Force(version int) error {
	mr.logger.Warn("Forcing migration version", zap.Int("version", version))

	err := mr.migrate.Force(version)
	if err != nil {
		return fmt.Errorf("failed to force version: %w", err)
	}

	mr.logger.Info("Forced migration version", zap.Int("version", version))
	return nil
}

// Drop drops all tables. Development only.
func (mr *MigrationRunner) Drop() error {
	mr.logger.Warn("Dropping all database tables")

	err := mr.migrate.Drop()
	if err != nil {
		return fmt.Errorf("failed to drop database: %w", err)
	}

	mr.logger.Info("Dropped all tables")
	return nil
}

// Steps runs n migrations (positive for up, negative for down)
func (mr *MigrationRunner) Steps(n int) error {
	direction := "up"
	if n < 0 {
		direction = "down"
	}

	mr.logger.Info("Running migration steps", zap.Int("count", abs(n)), zap.String("direction", direction))

	err := mr.migrate.Steps(n)
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration steps failed: %w", err)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		mr.logger.Info("No migrations to apply")
		return nil
	}

	version, dirty, err := mr.migrate.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if dirty {
		return fmt.Errorf("database is in dirty state at version %d", version)
	}

	mr.logger.Info("Migrated database", zap.Uint("version", version))
	return nil
}

// Close closes the migration runner and the database handle it was built on
func (mr *MigrationRunner) Close() error {
	sourceErr, dbErr := mr.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("failed to close source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("failed to close database: %w", dbErr)
	}
	return nil
}

// ListMigrations returns all available migrations
func ListMigrations() ([]string, error) {
	var migrations []string

	err := fs.WalkDir(migrationsFS, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && len(path) > len("migrations/") {
			migrations = append(migrations, path[len("migrations/"):])
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}

	return migrations, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
