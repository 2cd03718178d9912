package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/triage/internal/ports/secondary"
)

const pushColumns = `seq, id, project, signature, group_id, issue_key, issue_url, status, error_message, payload, actor, created_at`

// PushRecordRepository implements secondary.PushRecordRepository.
type PushRecordRepository struct {
	conn
}

var _ secondary.PushRecordRepository = (*PushRecordRepository)(nil)

// Append persists a new push record.
func (r *PushRecordRepository) Append(ctx context.Context, p *secondary.PushRecord) error {
	result, err := r.q.ExecContext(ctx,
		`INSERT INTO push_records (id, project, signature, group_id, issue_key, issue_url, status, error_message, payload, actor, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.Project,
		p.Signature,
		nullString(p.GroupID),
		nullString(p.IssueKey),
		nullString(p.IssueURL),
		p.Status,
		nullString(p.ErrorMessage),
		nullString(p.Payload),
		nullString(p.Actor),
		dbTime(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append push record: %w", err)
	}

	if seq, err := result.LastInsertId(); err == nil {
		p.Seq = seq
	}

	return nil
}

// Latest retrieves the most recent push record for a signature.
func (r *PushRecordRepository) Latest(ctx context.Context, project, signature string) (*secondary.PushRecord, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+pushColumns+` FROM push_records WHERE project = ? AND signature = ? ORDER BY seq DESC LIMIT 1`,
		project, signature,
	)
	record, err := scanPush(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest push record: %w", err)
	}
	return record, nil
}

// List retrieves the push history for a signature, newest first.
func (r *PushRecordRepository) List(ctx context.Context, project, signature string) ([]*secondary.PushRecord, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+pushColumns+` FROM push_records WHERE project = ? AND signature = ? ORDER BY seq DESC`,
		project, signature,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list push records: %w", err)
	}
	defer rows.Close()

	var records []*secondary.PushRecord
	for rows.Next() {
		record, err := scanPush(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan push record: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

func scanPush(s scanner) (*secondary.PushRecord, error) {
	var groupID, issueKey, issueURL, errorMessage, payload, actor sql.NullString

	record := &secondary.PushRecord{}
	err := s.Scan(&record.Seq, &record.ID, &record.Project, &record.Signature, &groupID, &issueKey, &issueURL,
		&record.Status, &errorMessage, &payload, &actor, &record.CreatedAt)
	if err != nil {
		return nil, err
	}

	record.GroupID = groupID.String
	record.IssueKey = issueKey.String
	record.IssueURL = issueURL.String
	record.ErrorMessage = errorMessage.String
	record.Payload = payload.String
	record.Actor = actor.String

	return record, nil
}
