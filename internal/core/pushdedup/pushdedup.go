// Package pushdedup decides whether a signature needs an issue-tracker push.
// This is part of the Functional Core - no I/O, only pure functions.
package pushdedup

import (
	"fmt"
	"time"
)

// Status is the outcome of one push attempt.
type Status string

// Push statuses.
const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Valid reports whether s is a known push status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

// DefaultPendingTimeout is how long a pending push suppresses new attempts.
const DefaultPendingTimeout = 15 * time.Minute

// LastPush is the most recent ledger entry for a signature.
type LastPush struct {
	Status    Status
	IssueKey  string
	CreatedAt time.Time
}

// Decision is the outcome of a dedup check.
type Decision struct {
	Push   bool
	Reason string
}

// ShouldPush evaluates the latest ledger entry. A failed attempt counts as
// never pushed, and a pending attempt older than pendingTimeout is treated as
// abandoned.
func ShouldPush(latest *LastPush, now time.Time, pendingTimeout time.Duration) Decision {
	if latest == nil {
		return Decision{Push: true, Reason: "never pushed"}
	}

	switch latest.Status {
	case StatusSuccess:
		reason := "issue already exists"
		if latest.IssueKey != "" {
			reason = fmt.Sprintf("issue %s already exists", latest.IssueKey)
		}
		return Decision{Push: false, Reason: reason}
	case StatusPending:
		if pendingTimeout <= 0 {
			pendingTimeout = DefaultPendingTimeout
		}
		if now.Sub(latest.CreatedAt) < pendingTimeout {
			return Decision{Push: false, Reason: "push already in progress"}
		}
		return Decision{Push: true, Reason: "pending push went stale"}
	default:
		return Decision{Push: true, Reason: "previous push failed"}
	}
}
