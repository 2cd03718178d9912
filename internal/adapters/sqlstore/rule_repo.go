package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/example/triage/internal/db"
	"github.com/example/triage/internal/ports/secondary"
)

const rulePrefix = "RULE-"

const ruleColumns = `id, name, primary_class, sub_class, priority, base_confidence, conditions, suggested_fixes, active, created_at, updated_at`

// RuleRepository implements secondary.RuleRepository.
type RuleRepository struct {
	conn
}

var _ secondary.RuleRepository = (*RuleRepository)(nil)

// Create persists a new rule.
func (r *RuleRepository) Create(ctx context.Context, rule *secondary.RuleRecord) error {
	conditions, fixes, err := encodeRuleBody(rule)
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx,
		`INSERT INTO classification_rules (`+ruleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID,
		rule.Name,
		rule.PrimaryClass,
		nullString(rule.SubClass),
		rule.Priority,
		rule.BaseConfidence,
		conditions,
		fixes,
		rule.Active,
		dbTime(rule.CreatedAt),
		dbTime(rule.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("rule %s: %w", rule.ID, secondary.ErrConflict)
		}
		return fmt.Errorf("failed to create rule: %w", err)
	}

	return nil
}

// GetByID retrieves a rule by its ID.
func (r *RuleRepository) GetByID(ctx context.Context, id string) (*secondary.RuleRecord, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM classification_rules WHERE id = ?`, id)
	record, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("rule %s: %w", id, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return record, nil
}

// List retrieves rules matching the given filters, in evaluation order.
func (r *RuleRepository) List(ctx context.Context, filters secondary.RuleFilters) ([]*secondary.RuleRecord, error) {
	query := `SELECT ` + ruleColumns + ` FROM classification_rules WHERE 1=1`
	args := []any{}

	if filters.ActiveOnly {
		query += " AND active = ?"
		args = append(args, true)
	}

	if filters.PrimaryClass != "" {
		query += " AND primary_class = ?"
		args = append(args, filters.PrimaryClass)
	}

	query += " ORDER BY priority ASC, id ASC"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rules []*secondary.RuleRecord
	for rows.Next() {
		record, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, record)
	}

	return rules, rows.Err()
}

// ListActive retrieves every active rule, ordered by priority then ID.
func (r *RuleRepository) ListActive(ctx context.Context) ([]*secondary.RuleRecord, error) {
	return r.List(ctx, secondary.RuleFilters{ActiveOnly: true})
}

// Update updates an existing rule.
func (r *RuleRepository) Update(ctx context.Context, rule *secondary.RuleRecord) error {
	conditions, fixes, err := encodeRuleBody(rule)
	if err != nil {
		return err
	}

	result, err := r.q.ExecContext(ctx,
		`UPDATE classification_rules SET name = ?, primary_class = ?, sub_class = ?, priority = ?, base_confidence = ?, conditions = ?, suggested_fixes = ?, active = ?, updated_at = ? WHERE id = ?`,
		rule.Name,
		rule.PrimaryClass,
		nullString(rule.SubClass),
		rule.Priority,
		rule.BaseConfidence,
		conditions,
		fixes,
		rule.Active,
		dbTime(rule.UpdatedAt),
		rule.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	return requireAffected(result, "rule", rule.ID)
}

// SetActive activates or deactivates a rule.
func (r *RuleRepository) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.q.ExecContext(ctx,
		`UPDATE classification_rules SET active = ? WHERE id = ?`,
		active, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update rule status: %w", err)
	}

	return requireAffected(result, "rule", id)
}

// GetNextID returns the next available rule ID.
func (r *RuleRepository) GetNextID(ctx context.Context) (string, error) {
	castType := "INTEGER"
	if r.driver == db.DriverMySQL {
		castType = "UNSIGNED"
	}

	var maxID int
	prefixLen := len(rulePrefix) + 1
	err := r.q.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COALESCE(MAX(CAST(SUBSTR(id, %d) AS %s)), 0) FROM classification_rules WHERE id LIKE ?", prefixLen, castType),
		rulePrefix+"%",
	).Scan(&maxID)
	if err != nil {
		return "", fmt.Errorf("failed to get next rule ID: %w", err)
	}

	return fmt.Sprintf("%s%04d", rulePrefix, maxID+1), nil
}

func encodeRuleBody(rule *secondary.RuleRecord) (string, string, error) {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode rule conditions: %w", err)
	}
	fixes, err := encodeStrings(rule.SuggestedFixes)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode suggested fixes: %w", err)
	}
	return string(conditions), fixes, nil
}

func scanRule(s scanner) (*secondary.RuleRecord, error) {
	var (
		subClass   sql.NullString
		conditions string
		fixes      sql.NullString
	)

	record := &secondary.RuleRecord{}
	err := s.Scan(&record.ID, &record.Name, &record.PrimaryClass, &subClass, &record.Priority, &record.BaseConfidence,
		&conditions, &fixes, &record.Active, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return nil, err
	}

	record.SubClass = subClass.String
	if err := json.Unmarshal([]byte(conditions), &record.Conditions); err != nil {
		return nil, fmt.Errorf("rule %s has malformed conditions: %w", record.ID, err)
	}
	if record.SuggestedFixes, err = decodeStrings(fixes); err != nil {
		return nil, fmt.Errorf("rule %s has malformed suggested fixes: %w", record.ID, err)
	}

	return record, nil
}

func requireAffected(result sql.Result, entity, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check %s update: %w", entity, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, secondary.ErrNotFound)
	}
	return nil
}
