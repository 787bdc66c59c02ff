package db

import (
	"context"
	"fmt"

	"github.com/MichaelAJay/go-logger"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// GetMigrations returns all available migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_auth_credentials_table",
			SQL: `
-- One row per login
CREATE TABLE IF NOT EXISTS auth_credentials (
    id UUID PRIMARY KEY,
    login VARCHAR(255) NOT NULL,
    password_hash TEXT NOT NULL,
    scheme VARCHAR(50) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT auth_credentials_login_key UNIQUE (login)
);
			`,
		},
		{
			Version: 2,
			Name:    "create_indexes_for_queries",
			SQL: `
CREATE INDEX IF NOT EXISTS idx_auth_credentials_scheme ON auth_credentials(scheme);
CREATE INDEX IF NOT EXISTS idx_auth_credentials_updated_at ON auth_credentials(updated_at);
			`,
		},
	}
}

// RunMigrations applies all pending migrations to the database
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, log logger.Logger) error {
	if err := createMigrationsTable(ctx, pool); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := getCurrentMigrationVersion(ctx, pool)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	for _, migration := range GetMigrations() {
		if migration.Version <= currentVersion {
			continue
		}

		log.Info("Applying migration",
			logger.Field{Key: "version", Value: migration.Version},
			logger.Field{Key: "name", Value: migration.Name})

		tx, err := pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(ctx, migration.SQL); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("failed to apply migration %d (%s): %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec(ctx,
			"INSERT INTO auth_schema_migrations (version, name, applied_at) VALUES ($1, $2, NOW())",
			migration.Version, migration.Name); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// createMigrationsTable creates the auth_schema_migrations table
func createMigrationsTable(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS auth_schema_migrations (
			version INTEGER PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);
	`
	_, err := pool.Exec(ctx, query)
	return err
}

// getCurrentMigrationVersion returns the highest applied migration version
func getCurrentMigrationVersion(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var version int
	err := pool.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM auth_schema_migrations").Scan(&version)
	return version, err
}

// ResetDatabase drops all tables (useful for testing)
func ResetDatabase(ctx context.Context, pool *pgxpool.Pool) error {
	queries := []string{
		"DROP TABLE IF EXISTS auth_credentials CASCADE;",
		"DROP TABLE IF EXISTS auth_schema_migrations CASCADE;",
	}

	for _, query := range queries {
		if _, err := pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute reset query '%s': %w", query, err)
		}
	}

	return nil
}
