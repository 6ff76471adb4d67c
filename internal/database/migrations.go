package database

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// RunMigrations brings the schema up to date by applying any pending
// goose migrations from migrationsDir, and logs the schema version the
// database ends up at.
func RunMigrations(db *sql.DB, migrationsDir string, logger *zap.Logger) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	before, err := goose.EnsureDBVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if err := goose.Up(db, migrationsDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	after, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if after == before {
		logger.Info("Schema is up to date", zap.Int64("version", after))
	} else {
		logger.Info("Migrations applied",
			zap.Int64("from_version", before),
			zap.Int64("to_version", after),
			zap.String("dir", migrationsDir))
	}

	return nil
}
