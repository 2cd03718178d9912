package db

import (
	"database/sql"
	"fmt"
)

// Migration represents a database migration.
type Migration struct {
	Version int
	Name    string
	Up      func(tx *sql.Tx, driver string) error
}

// migrations lists every schema change in order. A fresh install creates the
// current schema directly and records all of them as applied.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up:      migrationV1,
	},
}

// RunMigrations executes all pending migrations.
func RunMigrations(database *sql.DB, driver string) error {
	if err := ensureVersionTable(database); err != nil {
		return err
	}

	current, err := currentVersion(database)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= current {
			continue
		}

		tx, err := database.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx, driver); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// CurrentVersion returns the highest applied migration version.
func CurrentVersion(database *sql.DB) (int, error) {
	return currentVersion(database)
}

func ensureVersionTable(database *sql.DB) error {
	_, err := database.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}
	return nil
}

func currentVersion(database *sql.DB) (int, error) {
	var version int
	if err := database.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get current schema version: %w", err)
	}
	return version, nil
}

// migrationV1 creates the initial schema.
func migrationV1(tx *sql.Tx, driver string) error {
	for _, stmt := range Statements(schemaFor(driver)) {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
