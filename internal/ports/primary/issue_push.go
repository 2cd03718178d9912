package primary

import (
	"context"
	"time"
)

// IssuePushService defines the primary port for deduplicated issue-tracker pushes.
type IssuePushService interface {
	// ShouldPush reports whether the signature needs a new tracker push.
	ShouldPush(ctx context.Context, project, signature string) (*PushDecision, error)

	// RecordPush appends a push attempt to the ledger. A tracker error is
	// recorded as a failed attempt, never returned.
	RecordPush(ctx context.Context, req RecordPushRequest) (*PushRecord, error)

	// PushGroup files or updates the tracker issue of a group when needed.
	PushGroup(ctx context.Context, req PushGroupRequest) (*PushGroupResponse, error)

	// ListPushes lists the push history of a signature, newest first.
	ListPushes(ctx context.Context, project, signature string) ([]*PushRecord, error)
}

// PushDecision is the outcome of a dedup check.
type PushDecision struct {
	Push   bool
	Reason string
	Latest *PushRecord // Nil when never pushed
}

// RecordPushRequest describes one push attempt and its outcome.
type RecordPushRequest struct {
	Project   string
	Signature string
	GroupID   string
	IssueKey  string
	IssueURL  string
	Pending   bool  // Records the attempt as in progress
	Err       error // Tracker failure, recorded as status failed
	Payload   string
	Actor     string
}

// PushGroupRequest contains parameters for pushing a group.
type PushGroupRequest struct {
	GroupID string
	Actor   string
	Force   bool // Push even when dedup would suppress it
}

// PushGroupResponse contains the result of a group push.
type PushGroupResponse struct {
	Pushed bool
	Reason string
	Record *PushRecord // Nil when the push was suppressed
}

// PushRecord represents a push ledger entry at the port boundary.
type PushRecord struct {
	ID           string
	Project      string
	Signature    string
	GroupID      string
	IssueKey     string
	IssueURL     string
	Status       string // 'pending', 'success', 'failed'
	ErrorMessage string
	Payload      string
	Actor        string
	CreatedAt    time.Time
}
