// Package db opens the classification store and owns its schema.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Supported database drivers.
const (
	DriverSQLite = "sqlite3"
	DriverMySQL  = "mysql"
)

// Open opens a connection pool for the driver and applies its session settings.
func Open(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverSQLite:
		return openSQLite(dsn)
	case DriverMySQL:
		return openMySQL(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func openSQLite(path string) (*sql.DB, error) {
	if path == "" {
		var err error
		if path, err = DefaultSQLitePath(); err != nil {
			return nil, err
		}
	}

	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	database, err := sql.Open(DriverSQLite, sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer; a single connection serializes transactions
	// instead of failing them with SQLITE_BUSY.
	database.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := database.Exec(pragma); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return database, nil
}

// sqliteDSN makes transactions take the write lock at BEGIN. A deferred
// transaction that upgrades from a read lock fails with SQLITE_BUSY when another
// process writes first, while BEGIN IMMEDIATE waits out busy_timeout instead.
func sqliteDSN(path string) string {
	if strings.Contains(path, "_txlock=") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_txlock=immediate"
}

func openMySQL(dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	// Report matched rather than changed rows so no-op updates are not misread as missing rows.
	cfg.ClientFoundRows = true

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create mysql connector: %w", err)
	}

	database := sql.OpenDB(connector)
	database.SetConnMaxLifetime(3 * time.Minute)
	database.SetMaxIdleConns(10)

	if err := database.Ping(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to ping database server: %w", err)
	}

	return database, nil
}

// DefaultSQLitePath returns the path of the default database file.
func DefaultSQLitePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".triage", "triage.db"), nil
}
