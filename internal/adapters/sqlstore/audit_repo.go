package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/triage/internal/ports/secondary"
)

// AuditLogRepository implements secondary.AuditLogRepository.
// Entries are immutable once written.
type AuditLogRepository struct {
	conn
}

var _ secondary.AuditLogRepository = (*AuditLogRepository)(nil)

// Append persists a new audit entry.
func (r *AuditLogRepository) Append(ctx context.Context, e *secondary.AuditLogRecord) error {
	result, err := r.q.ExecContext(ctx,
		`INSERT INTO audit_log (id, classification_id, group_id, action, old_primary_class, old_sub_class, new_primary_class, new_sub_class, actor, note, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		nullString(e.ClassificationID),
		nullString(e.GroupID),
		e.Action,
		nullString(e.OldPrimaryClass),
		nullString(e.OldSubClass),
		nullString(e.NewPrimaryClass),
		nullString(e.NewSubClass),
		e.Actor,
		nullString(e.Note),
		dbTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	if seq, err := result.LastInsertId(); err == nil {
		e.Seq = seq
	}

	return nil
}

// List retrieves audit entries matching the given filters, newest first.
func (r *AuditLogRepository) List(ctx context.Context, filters secondary.AuditLogFilters) ([]*secondary.AuditLogRecord, error) {
	query := `SELECT seq, id, classification_id, group_id, action, old_primary_class, old_sub_class, new_primary_class, new_sub_class, actor, note, created_at FROM audit_log WHERE 1=1`
	args := []any{}

	if filters.ClassificationID != "" {
		query += " AND classification_id = ?"
		args = append(args, filters.ClassificationID)
	}

	if filters.GroupID != "" {
		query += " AND group_id = ?"
		args = append(args, filters.GroupID)
	}

	if filters.Action != "" {
		query += " AND action = ?"
		args = append(args, filters.Action)
	}

	query += " ORDER BY seq DESC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*secondary.AuditLogRecord
	for rows.Next() {
		var classificationID, groupID, oldPrimary, oldSub, newPrimary, newSub, note sql.NullString

		record := &secondary.AuditLogRecord{}
		err := rows.Scan(&record.Seq, &record.ID, &classificationID, &groupID, &record.Action, &oldPrimary, &oldSub,
			&newPrimary, &newSub, &record.Actor, &note, &record.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		record.ClassificationID = classificationID.String
		record.GroupID = groupID.String
		record.OldPrimaryClass = oldPrimary.String
		record.OldSubClass = oldSub.String
		record.NewPrimaryClass = newPrimary.String
		record.NewSubClass = newSub.String
		record.Note = note.String

		entries = append(entries, record)
	}

	return entries, rows.Err()
}
