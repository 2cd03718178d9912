package primary

import (
	"context"
	"time"
)

// ReclassificationService defines the primary port for manual overrides and
// the audit trail.
type ReclassificationService interface {
	// Reclassify overrides a classification. An unchanged class pair is a
	// no-op and writes no audit entry.
	Reclassify(ctx context.Context, req ReclassifyRequest) (*ReclassifyResponse, error)

	// ResolveGroup marks a group resolved. Resolving a resolved group is a no-op.
	ResolveGroup(ctx context.Context, req GroupStateRequest) (*DefectGroup, error)

	// ReopenGroup clears the resolved flag of a group.
	ReopenGroup(ctx context.Context, req GroupStateRequest) (*DefectGroup, error)

	// ListAudit lists audit entries, newest first.
	ListAudit(ctx context.Context, filters AuditFilters) ([]*AuditEntry, error)
}

// ReclassifyRequest contains parameters for a manual reclassification.
type ReclassifyRequest struct {
	ClassificationID string
	PrimaryClass     string
	SubClass         string
	Actor            string // Falls back to the context actor
	Note             string
}

// ReclassifyResponse contains the result of a reclassification.
type ReclassifyResponse struct {
	Classification *Classification
	Changed        bool
}

// GroupStateRequest contains parameters for resolving or reopening a group.
type GroupStateRequest struct {
	GroupID string
	Actor   string // Falls back to the context actor
	Note    string
}

// AuditEntry represents an audit log entry at the port boundary.
type AuditEntry struct {
	ID               string
	ClassificationID string // May be empty
	GroupID          string // May be empty
	Action           string
	OldPrimaryClass  string
	OldSubClass      string
	NewPrimaryClass  string
	NewSubClass      string
	Actor            string
	Note             string
	CreatedAt        time.Time
}

// AuditFilters contains filter options for listing audit entries.
type AuditFilters struct {
	ClassificationID string
	GroupID          string
	Action           string
	Limit            int
}

// Audit actions.
const (
	AuditActionCreated      = "created"
	AuditActionReclassified = "reclassified"
	AuditActionResolved     = "resolved"
	AuditActionReopened     = "reopened"
)
