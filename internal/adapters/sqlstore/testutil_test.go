// Package sqlstore_test contains integration tests for the SQL store.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for tests.
// All test setup functions use db.GetSchemaSQL() to ensure tests run against
// the authoritative schema, preventing drift between test and production.
package sqlstore_test

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/triage/internal/adapters/sqlstore"
	"github.com/example/triage/internal/db"
	"github.com/example/triage/internal/ports/secondary"
)

var testTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// setupTestDB creates an in-memory database with the authoritative schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	// Every connection to :memory: is a separate database.
	testDB.SetMaxOpenConns(1)

	_, err = testDB.Exec(db.GetSchemaSQL())
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// setupTestStore wraps a fresh test database in a store.
func setupTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	return sqlstore.New(setupTestDB(t), db.DriverSQLite)
}

// seedGroup inserts a test group and returns it.
func seedGroup(t *testing.T, store *sqlstore.Store, id, project, signature string) *secondary.GroupRecord {
	t.Helper()
	group := &secondary.GroupRecord{
		ID:                  id,
		Project:             project,
		Signature:           signature,
		ErrorType:           "TimeoutError",
		PrimaryClass:        "Automation Script Error",
		SubClass:            "Wait Strategy",
		RepresentativeError: "TimeoutError: waiting for locator",
		FirstSeen:           testTime,
		LastSeen:            testTime,
		OccurrenceCount:     1,
		CreatedAt:           testTime,
		UpdatedAt:           testTime,
	}
	if err := store.Groups().Create(t.Context(), group); err != nil {
		t.Fatalf("failed to seed group: %v", err)
	}
	return group
}

// seedClassification inserts a test classification and returns it.
func seedClassification(t *testing.T, store *sqlstore.Store, id, failureID string) *secondary.ClassificationRecord {
	t.Helper()
	c := &secondary.ClassificationRecord{
		ID:               id,
		FailureID:        failureID,
		TestRunID:        "run-1",
		Project:          "shop",
		TestName:         "login works",
		PrimaryClass:     "Automation Script Error",
		SubClass:         "Wait Strategy",
		Confidence:       0.765,
		Signature:        "a1b2c3d4e5f6",
		ClassifiedBy:     "RULE-0007",
		RuleID:           "RULE-0007",
		EvidenceSnapshot: `{"error_type":"TimeoutError"}`,
		SuggestedFixes:   []string{"Wait for an explicit application state."},
		CreatedAt:        testTime,
		UpdatedAt:        testTime,
	}
	if err := store.Classifications().Create(t.Context(), c); err != nil {
		t.Fatalf("failed to seed classification: %v", err)
	}
	return c
}
