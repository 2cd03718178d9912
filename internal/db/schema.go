package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// SchemaSQL is the complete SQLite schema for fresh installs.
// This schema reflects the current state after all migrations.
//
// This is the SINGLE SOURCE OF TRUTH for the SQLite schema. Tests use it via
// GetSchemaSQL() instead of hardcoding CREATE TABLE statements, so repository
// code referencing a missing column fails immediately with "no such column".
//
// MySQLSchemaSQL must describe the same tables and constraints.
const SchemaSQL = `
-- Classification rules (never deleted, only deactivated)
CREATE TABLE IF NOT EXISTS classification_rules (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	primary_class TEXT NOT NULL CHECK(primary_class IN ('Application Defect', 'Test Data Issue', 'Automation Script Error', 'Environment Issue')),
	sub_class TEXT,
	priority INTEGER NOT NULL DEFAULT 100,
	base_confidence REAL NOT NULL DEFAULT 0,
	conditions TEXT NOT NULL,
	suggested_fixes TEXT,
	active INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_classification_rules_active ON classification_rules(active, priority, id);

-- Classifications (one per failure)
CREATE TABLE IF NOT EXISTS classifications (
	id TEXT PRIMARY KEY,
	failure_id TEXT NOT NULL UNIQUE,
	test_run_id TEXT,
	project TEXT NOT NULL,
	test_name TEXT,
	primary_class TEXT NOT NULL CHECK(primary_class IN ('Application Defect', 'Test Data Issue', 'Automation Script Error', 'Environment Issue', 'Unknown')),
	sub_class TEXT,
	confidence REAL NOT NULL CHECK(confidence >= 0 AND confidence <= 1),
	signature TEXT NOT NULL,
	is_manual INTEGER NOT NULL DEFAULT 0,
	classified_by TEXT NOT NULL,
	rule_id TEXT,
	evidence_snapshot TEXT,
	suggested_fixes TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_classifications_signature ON classifications(project, signature);
CREATE INDEX IF NOT EXISTS idx_classifications_test_run ON classifications(test_run_id);

-- Defect groups (one per project and signature)
CREATE TABLE IF NOT EXISTS defect_groups (
	id TEXT PRIMARY KEY,
	project TEXT NOT NULL,
	signature TEXT NOT NULL,
	error_type TEXT,
	primary_class TEXT NOT NULL,
	sub_class TEXT,
	manual_class INTEGER NOT NULL DEFAULT 0,
	representative_error TEXT,
	first_seen DATETIME NOT NULL,
	last_seen DATETIME NOT NULL,
	occurrence_count INTEGER NOT NULL DEFAULT 0,
	resolved INTEGER NOT NULL DEFAULT 0,
	resolved_at DATETIME,
	resolved_by TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE(project, signature)
);

CREATE INDEX IF NOT EXISTS idx_defect_groups_count ON defect_groups(project, occurrence_count);
CREATE INDEX IF NOT EXISTS idx_defect_groups_last_seen ON defect_groups(project, last_seen);

-- Defect group members (add-only)
CREATE TABLE IF NOT EXISTS defect_group_members (
	id TEXT PRIMARY KEY,
	group_id TEXT NOT NULL,
	failure_id TEXT NOT NULL,
	classification_id TEXT,
	occurred_at DATETIME NOT NULL,
	created_at DATETIME NOT NULL,
	UNIQUE(group_id, failure_id),
	FOREIGN KEY (group_id) REFERENCES defect_groups(id)
);

-- Audit log (append-only)
CREATE TABLE IF NOT EXISTS audit_log (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	classification_id TEXT,
	group_id TEXT,
	action TEXT NOT NULL CHECK(action IN ('created', 'reclassified', 'resolved', 'reopened')),
	old_primary_class TEXT,
	old_sub_class TEXT,
	new_primary_class TEXT,
	new_sub_class TEXT,
	actor TEXT NOT NULL,
	note TEXT,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_log_classification ON audit_log(classification_id);
CREATE INDEX IF NOT EXISTS idx_audit_log_group ON audit_log(group_id);

-- Issue push ledger (append-only)
CREATE TABLE IF NOT EXISTS push_records (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	project TEXT NOT NULL,
	signature TEXT NOT NULL,
	group_id TEXT,
	issue_key TEXT,
	issue_url TEXT,
	status TEXT NOT NULL CHECK(status IN ('pending', 'success', 'failed')),
	error_message TEXT,
	payload TEXT,
	actor TEXT,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_push_records_signature ON push_records(project, signature, seq);
`

// MySQLSchemaSQL is the MySQL rendition of SchemaSQL.
const MySQLSchemaSQL = `
CREATE TABLE IF NOT EXISTS classification_rules (
	id VARCHAR(32) PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	primary_class VARCHAR(64) NOT NULL CHECK(primary_class IN ('Application Defect', 'Test Data Issue', 'Automation Script Error', 'Environment Issue')),
	sub_class VARCHAR(255),
	priority INT NOT NULL DEFAULT 100,
	base_confidence DOUBLE NOT NULL DEFAULT 0,
	conditions TEXT NOT NULL,
	suggested_fixes TEXT,
	active TINYINT(1) NOT NULL DEFAULT 1,
	created_at DATETIME(6) NOT NULL,
	updated_at DATETIME(6) NOT NULL,
	INDEX idx_classification_rules_active (active, priority, id)
);

CREATE TABLE IF NOT EXISTS classifications (
	id VARCHAR(36) PRIMARY KEY,
	failure_id VARCHAR(191) NOT NULL UNIQUE,
	test_run_id VARCHAR(191),
	project VARCHAR(191) NOT NULL,
	test_name TEXT,
	primary_class VARCHAR(64) NOT NULL CHECK(primary_class IN ('Application Defect', 'Test Data Issue', 'Automation Script Error', 'Environment Issue', 'Unknown')),
	sub_class VARCHAR(255),
	confidence DOUBLE NOT NULL CHECK(confidence >= 0 AND confidence <= 1),
	signature VARCHAR(32) NOT NULL,
	is_manual TINYINT(1) NOT NULL DEFAULT 0,
	classified_by VARCHAR(191) NOT NULL,
	rule_id VARCHAR(32),
	evidence_snapshot MEDIUMTEXT,
	suggested_fixes TEXT,
	created_at DATETIME(6) NOT NULL,
	updated_at DATETIME(6) NOT NULL,
	INDEX idx_classifications_signature (project, signature),
	INDEX idx_classifications_test_run (test_run_id)
);

CREATE TABLE IF NOT EXISTS defect_groups (
	id VARCHAR(36) PRIMARY KEY,
	project VARCHAR(191) NOT NULL,
	signature VARCHAR(32) NOT NULL,
	error_type VARCHAR(255),
	primary_class VARCHAR(64) NOT NULL,
	sub_class VARCHAR(255),
	manual_class TINYINT(1) NOT NULL DEFAULT 0,
	representative_error TEXT,
	first_seen DATETIME(6) NOT NULL,
	last_seen DATETIME(6) NOT NULL,
	occurrence_count INT NOT NULL DEFAULT 0,
	resolved TINYINT(1) NOT NULL DEFAULT 0,
	resolved_at DATETIME(6),
	resolved_by VARCHAR(191),
	created_at DATETIME(6) NOT NULL,
	updated_at DATETIME(6) NOT NULL,
	UNIQUE KEY uq_defect_groups_key (project, signature),
	INDEX idx_defect_groups_count (project, occurrence_count),
	INDEX idx_defect_groups_last_seen (project, last_seen)
);

CREATE TABLE IF NOT EXISTS defect_group_members (
	id VARCHAR(36) PRIMARY KEY,
	group_id VARCHAR(36) NOT NULL,
	failure_id VARCHAR(191) NOT NULL,
	classification_id VARCHAR(36),
	occurred_at DATETIME(6) NOT NULL,
	created_at DATETIME(6) NOT NULL,
	UNIQUE KEY uq_defect_group_members (group_id, failure_id),
	FOREIGN KEY (group_id) REFERENCES defect_groups(id)
);

CREATE TABLE IF NOT EXISTS audit_log (
	seq BIGINT AUTO_INCREMENT PRIMARY KEY,
	id VARCHAR(36) NOT NULL UNIQUE,
	classification_id VARCHAR(36),
	group_id VARCHAR(36),
	action VARCHAR(16) NOT NULL CHECK(action IN ('created', 'reclassified', 'resolved', 'reopened')),
	old_primary_class VARCHAR(64),
	old_sub_class VARCHAR(255),
	new_primary_class VARCHAR(64),
	new_sub_class VARCHAR(255),
	actor VARCHAR(191) NOT NULL,
	note TEXT,
	created_at DATETIME(6) NOT NULL,
	INDEX idx_audit_log_classification (classification_id),
	INDEX idx_audit_log_group (group_id)
);

CREATE TABLE IF NOT EXISTS push_records (
	seq BIGINT AUTO_INCREMENT PRIMARY KEY,
	id VARCHAR(36) NOT NULL UNIQUE,
	project VARCHAR(191) NOT NULL,
	signature VARCHAR(32) NOT NULL,
	group_id VARCHAR(36),
	issue_key VARCHAR(64),
	issue_url VARCHAR(512),
	status VARCHAR(16) NOT NULL CHECK(status IN ('pending', 'success', 'failed')),
	error_message TEXT,
	payload MEDIUMTEXT,
	actor VARCHAR(191),
	created_at DATETIME(6) NOT NULL,
	INDEX idx_push_records_signature (project, signature, seq)
);
`

// InitSchema creates the schema on a fresh database, or runs pending
// migrations on an existing one.
func InitSchema(database *sql.DB, driver string) error {
	if err := ensureVersionTable(database); err != nil {
		return err
	}

	current, err := currentVersion(database)
	if err != nil {
		return err
	}

	if current == 0 {
		// Fresh install - create the current schema and mark every migration applied
		if err := execStatements(database, schemaFor(driver)); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		for _, m := range migrations {
			if _, err := database.Exec("INSERT INTO schema_version (version) VALUES (?)", m.Version); err != nil {
				return fmt.Errorf("failed to record schema version: %w", err)
			}
		}
		return nil
	}

	return RunMigrations(database, driver)
}

// GetSchemaSQL returns the authoritative SQLite schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}

func schemaFor(driver string) string {
	if driver == DriverMySQL {
		return MySQLSchemaSQL
	}
	return SchemaSQL
}

// execStatements runs a multi-statement script one statement at a time, since
// the MySQL driver rejects multi-statement queries by default.
func execStatements(database *sql.DB, script string) error {
	for _, stmt := range Statements(script) {
		if _, err := database.Exec(stmt); err != nil {
			return fmt.Errorf("%w (statement: %.60s)", err, stmt)
		}
	}
	return nil
}

// Statements splits a schema script into individual statements, dropping
// comment lines.
func Statements(script string) []string {
	var lines []string
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		lines = append(lines, line)
	}

	var stmts []string
	for _, stmt := range strings.Split(strings.Join(lines, "\n"), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}
