package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/triage/internal/ports/secondary"
)

const groupColumns = `id, project, signature, error_type, primary_class, sub_class, manual_class, representative_error, first_seen, last_seen, occurrence_count, resolved, resolved_at, resolved_by, created_at, updated_at`

// GroupRepository implements secondary.GroupRepository.
type GroupRepository struct {
	conn
}

var _ secondary.GroupRepository = (*GroupRepository)(nil)

// Create persists a new group.
func (r *GroupRepository) Create(ctx context.Context, g *secondary.GroupRecord) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO defect_groups (`+groupColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID,
		g.Project,
		g.Signature,
		nullString(g.ErrorType),
		g.PrimaryClass,
		nullString(g.SubClass),
		g.ManualClass,
		nullString(g.RepresentativeError),
		dbTime(g.FirstSeen),
		dbTime(g.LastSeen),
		g.OccurrenceCount,
		g.Resolved,
		nullTime(g.ResolvedAt),
		nullString(g.ResolvedBy),
		dbTime(g.CreatedAt),
		dbTime(g.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("group for %s/%s: %w", g.Project, g.Signature, secondary.ErrConflict)
		}
		return fmt.Errorf("failed to create group: %w", err)
	}

	return nil
}

// GetByID retrieves a group by its ID.
func (r *GroupRepository) GetByID(ctx context.Context, id string) (*secondary.GroupRecord, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM defect_groups WHERE id = ?`+r.lockClause(), id)
	record, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("group %s: %w", id, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return record, nil
}

// GetByKey retrieves the group for a project and signature.
func (r *GroupRepository) GetByKey(ctx context.Context, project, signature string) (*secondary.GroupRecord, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+groupColumns+` FROM defect_groups WHERE project = ? AND signature = ?`+r.lockClause(),
		project, signature,
	)
	record, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("group for %s/%s: %w", project, signature, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return record, nil
}

// List retrieves groups matching the given filters.
func (r *GroupRepository) List(ctx context.Context, filters secondary.GroupFilters) ([]*secondary.GroupRecord, error) {
	query := `SELECT ` + groupColumns + ` FROM defect_groups WHERE 1=1`
	args := []any{}

	if filters.Project != "" {
		query += " AND project = ?"
		args = append(args, filters.Project)
	}

	if filters.PrimaryClass != "" {
		query += " AND primary_class = ?"
		args = append(args, filters.PrimaryClass)
	}

	if filters.SubClass != "" {
		query += " AND sub_class = ?"
		args = append(args, filters.SubClass)
	}

	if filters.Resolved != nil {
		query += " AND resolved = ?"
		args = append(args, *filters.Resolved)
	}

	if !filters.SeenSince.IsZero() {
		query += " AND last_seen >= ?"
		args = append(args, dbTime(filters.SeenSince))
	}

	if !filters.SeenUntil.IsZero() {
		query += " AND last_seen <= ?"
		args = append(args, dbTime(filters.SeenUntil))
	}

	if term := strings.TrimSpace(filters.Search); term != "" {
		query += " AND (LOWER(COALESCE(representative_error, '')) LIKE ? OR LOWER(COALESCE(sub_class, '')) LIKE ?)"
		pattern := "%" + strings.ToLower(term) + "%"
		args = append(args, pattern, pattern)
	}

	switch filters.SortBy {
	case secondary.GroupSortLastSeen:
		query += " ORDER BY last_seen DESC, id"
	case secondary.GroupSortFirstSeen:
		query += " ORDER BY first_seen DESC, id"
	default:
		query += " ORDER BY occurrence_count DESC, last_seen DESC, id"
	}

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*secondary.GroupRecord
	for rows.Next() {
		record, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, record)
	}

	return groups, rows.Err()
}

// Update updates an existing group.
func (r *GroupRepository) Update(ctx context.Context, g *secondary.GroupRecord) error {
	result, err := r.q.ExecContext(ctx,
		`UPDATE defect_groups SET error_type = ?, primary_class = ?, sub_class = ?, manual_class = ?, representative_error = ?, first_seen = ?, last_seen = ?, occurrence_count = ?, resolved = ?, resolved_at = ?, resolved_by = ?, updated_at = ? WHERE id = ?`,
		nullString(g.ErrorType),
		g.PrimaryClass,
		nullString(g.SubClass),
		g.ManualClass,
		nullString(g.RepresentativeError),
		dbTime(g.FirstSeen),
		dbTime(g.LastSeen),
		g.OccurrenceCount,
		g.Resolved,
		nullTime(g.ResolvedAt),
		nullString(g.ResolvedBy),
		dbTime(g.UpdatedAt),
		g.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}

	return requireAffected(result, "group", g.ID)
}

// AddMember records a failure as a member of a group.
func (r *GroupRepository) AddMember(ctx context.Context, m *secondary.GroupMemberRecord) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO defect_group_members (id, group_id, failure_id, classification_id, occurred_at, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID,
		m.GroupID,
		m.FailureID,
		nullString(m.ClassificationID),
		dbTime(m.OccurredAt),
		dbTime(m.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failure %s in group %s: %w", m.FailureID, m.GroupID, secondary.ErrConflict)
		}
		return fmt.Errorf("failed to add group member: %w", err)
	}

	return nil
}

// ListMembers retrieves the members of a group, oldest occurrence first.
func (r *GroupRepository) ListMembers(ctx context.Context, groupID string) ([]*secondary.GroupMemberRecord, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, group_id, failure_id, classification_id, occurred_at, created_at FROM defect_group_members WHERE group_id = ? ORDER BY occurred_at ASC, id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}
	defer rows.Close()

	var members []*secondary.GroupMemberRecord
	for rows.Next() {
		var classificationID sql.NullString
		record := &secondary.GroupMemberRecord{}
		if err := rows.Scan(&record.ID, &record.GroupID, &record.FailureID, &classificationID, &record.OccurredAt, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		record.ClassificationID = classificationID.String
		members = append(members, record)
	}

	return members, rows.Err()
}

// CountMembers returns the number of members of a group.
func (r *GroupRepository) CountMembers(ctx context.Context, groupID string) (int, error) {
	var count int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM defect_group_members WHERE group_id = ?`, groupID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count group members: %w", err)
	}
	return count, nil
}

func scanGroup(s scanner) (*secondary.GroupRecord, error) {
	var (
		errorType  sql.NullString
		subClass   sql.NullString
		repError   sql.NullString
		resolvedAt sql.NullTime
		resolvedBy sql.NullString
	)

	record := &secondary.GroupRecord{}
	err := s.Scan(&record.ID, &record.Project, &record.Signature, &errorType, &record.PrimaryClass, &subClass,
		&record.ManualClass, &repError, &record.FirstSeen, &record.LastSeen, &record.OccurrenceCount,
		&record.Resolved, &resolvedAt, &resolvedBy, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return nil, err
	}

	record.ErrorType = errorType.String
	record.SubClass = subClass.String
	record.RepresentativeError = repError.String
	record.ResolvedBy = resolvedBy.String
	if resolvedAt.Valid {
		record.ResolvedAt = resolvedAt.Time
	}

	return record, nil
}
