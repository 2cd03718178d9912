// Package sqlstore contains SQL implementations of the classification store
// for SQLite and MySQL.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"

	"github.com/example/triage/internal/db"
	"github.com/example/triage/internal/ports/secondary"
)

// MySQL server error numbers.
const (
	mysqlDuplicateEntry  = 1062 // ER_DUP_ENTRY
	mysqlLockWaitTimeout = 1205 // ER_LOCK_WAIT_TIMEOUT
	mysqlDeadlock        = 1213 // ER_LOCK_DEADLOCK
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn is the handle every repository runs its statements through.
type conn struct {
	q      querier
	driver string
	inTx   bool
}

// Store implements secondary.Transactor over a SQL database.
type Store struct {
	db *sql.DB
	conn
}

var _ secondary.Transactor = (*Store)(nil)

// New creates a store for an open database of the given driver.
func New(database *sql.DB, driver string) *Store {
	return &Store{db: database, conn: conn{q: database, driver: driver}}
}

// Rules returns the rule repository.
func (s *Store) Rules() secondary.RuleRepository { return &RuleRepository{conn: s.conn} }

// Classifications returns the classification repository.
func (s *Store) Classifications() secondary.ClassificationRepository {
	return &ClassificationRepository{conn: s.conn}
}

// Groups returns the defect group repository.
func (s *Store) Groups() secondary.GroupRepository { return &GroupRepository{conn: s.conn} }

// Audit returns the audit log repository.
func (s *Store) Audit() secondary.AuditLogRepository { return &AuditLogRepository{conn: s.conn} }

// Pushes returns the push ledger repository.
func (s *Store) Pushes() secondary.PushRecordRepository { return &PushRecordRepository{conn: s.conn} }

// WithinTx runs fn inside a database transaction. Nested calls join the
// enclosing transaction. A transaction aborted by a concurrent writer
// (deadlock, lock timeout, busy database) fails with secondary.ErrConflict so
// the caller can run it again.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx secondary.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return txError(fmt.Errorf("failed to begin transaction: %w", err))
	}

	txStore := &Store{db: s.db, conn: conn{q: tx, driver: s.driver, inTx: true}}
	if err := fn(ctx, txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return txError(fmt.Errorf("%w (rollback failed: %v)", err, rbErr))
		}
		return txError(err)
	}

	if err := tx.Commit(); err != nil {
		return txError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// txError marks errors from an aborted transaction as conflicts.
func txError(err error) error {
	if isTxConflict(err) && !errors.Is(err, secondary.ErrConflict) {
		return fmt.Errorf("%w: %w", secondary.ErrConflict, err)
	}
	return err
}

// isTxConflict reports whether err means the transaction lost a race for a
// lock and was rolled back.
func isTxConflict(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDeadlock || mysqlErr.Number == mysqlLockWaitTimeout
	}

	return false
}

// isUniqueViolation reports whether err is a uniqueness constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntry
	}

	return false
}

// lockClause returns the row-locking suffix for reads inside a transaction.
// SQLite serializes writers already.
func (c conn) lockClause() string {
	if c.inTx && c.driver == db.DriverMySQL {
		return " FOR UPDATE"
	}
	return ""
}

// dbTime normalizes a timestamp to the precision both drivers store.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: dbTime(t), Valid: true}
}

func encodeStrings(values []string) (string, error) {
	if len(values) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeStrings(data sql.NullString) ([]string, error) {
	if !data.Valid || data.String == "" || data.String == "[]" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(data.String), &values); err != nil {
		return nil, err
	}
	return values, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
