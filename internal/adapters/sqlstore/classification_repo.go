package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/triage/internal/ports/secondary"
)

const classificationColumns = `id, failure_id, test_run_id, project, test_name, primary_class, sub_class, confidence, signature, is_manual, classified_by, rule_id, evidence_snapshot, suggested_fixes, created_at, updated_at`

// ClassificationRepository implements secondary.ClassificationRepository.
type ClassificationRepository struct {
	conn
}

var _ secondary.ClassificationRepository = (*ClassificationRepository)(nil)

// Create persists a new classification.
func (r *ClassificationRepository) Create(ctx context.Context, c *secondary.ClassificationRecord) error {
	fixes, err := encodeStrings(c.SuggestedFixes)
	if err != nil {
		return fmt.Errorf("failed to encode suggested fixes: %w", err)
	}

	_, err = r.q.ExecContext(ctx,
		`INSERT INTO classifications (`+classificationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.FailureID,
		nullString(c.TestRunID),
		c.Project,
		nullString(c.TestName),
		c.PrimaryClass,
		nullString(c.SubClass),
		c.Confidence,
		c.Signature,
		c.IsManual,
		c.ClassifiedBy,
		nullString(c.RuleID),
		nullString(c.EvidenceSnapshot),
		fixes,
		dbTime(c.CreatedAt),
		dbTime(c.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("classification for failure %s: %w", c.FailureID, secondary.ErrConflict)
		}
		return fmt.Errorf("failed to create classification: %w", err)
	}

	return nil
}

// GetByID retrieves a classification by its ID.
func (r *ClassificationRepository) GetByID(ctx context.Context, id string) (*secondary.ClassificationRecord, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+classificationColumns+` FROM classifications WHERE id = ?`+r.lockClause(), id)
	record, err := scanClassification(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("classification %s: %w", id, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get classification: %w", err)
	}
	return record, nil
}

// GetByFailureID retrieves the classification of a failure.
func (r *ClassificationRepository) GetByFailureID(ctx context.Context, failureID string) (*secondary.ClassificationRecord, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+classificationColumns+` FROM classifications WHERE failure_id = ?`, failureID)
	record, err := scanClassification(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("classification for failure %s: %w", failureID, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get classification: %w", err)
	}
	return record, nil
}

// List retrieves classifications matching the given filters, newest first.
func (r *ClassificationRepository) List(ctx context.Context, filters secondary.ClassificationFilters) ([]*secondary.ClassificationRecord, error) {
	query := `SELECT ` + classificationColumns + ` FROM classifications WHERE 1=1`
	args := []any{}

	if filters.Project != "" {
		query += " AND project = ?"
		args = append(args, filters.Project)
	}

	if filters.Signature != "" {
		query += " AND signature = ?"
		args = append(args, filters.Signature)
	}

	if filters.TestRunID != "" {
		query += " AND test_run_id = ?"
		args = append(args, filters.TestRunID)
	}

	if filters.PrimaryClass != "" {
		query += " AND primary_class = ?"
		args = append(args, filters.PrimaryClass)
	}

	query += " ORDER BY created_at DESC, id"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list classifications: %w", err)
	}
	defer rows.Close()

	var classifications []*secondary.ClassificationRecord
	for rows.Next() {
		record, err := scanClassification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan classification: %w", err)
		}
		classifications = append(classifications, record)
	}

	return classifications, rows.Err()
}

// UpdateClass records a manual class change.
func (r *ClassificationRepository) UpdateClass(ctx context.Context, id string, update secondary.ClassUpdate) error {
	result, err := r.q.ExecContext(ctx,
		`UPDATE classifications SET primary_class = ?, sub_class = ?, classified_by = ?, is_manual = ?, updated_at = ? WHERE id = ?`,
		update.PrimaryClass,
		nullString(update.SubClass),
		update.ClassifiedBy,
		update.IsManual,
		dbTime(update.UpdatedAt),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update classification: %w", err)
	}

	return requireAffected(result, "classification", id)
}

func scanClassification(s scanner) (*secondary.ClassificationRecord, error) {
	var (
		testRunID sql.NullString
		testName  sql.NullString
		subClass  sql.NullString
		ruleID    sql.NullString
		snapshot  sql.NullString
		fixes     sql.NullString
	)

	record := &secondary.ClassificationRecord{}
	err := s.Scan(&record.ID, &record.FailureID, &testRunID, &record.Project, &testName, &record.PrimaryClass, &subClass,
		&record.Confidence, &record.Signature, &record.IsManual, &record.ClassifiedBy, &ruleID, &snapshot, &fixes,
		&record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return nil, err
	}

	record.TestRunID = testRunID.String
	record.TestName = testName.String
	record.SubClass = subClass.String
	record.RuleID = ruleID.String
	record.EvidenceSnapshot = snapshot.String
	if record.SuggestedFixes, err = decodeStrings(fixes); err != nil {
		return nil, fmt.Errorf("classification %s has malformed suggested fixes: %w", record.ID, err)
	}

	return record, nil
}
