package secondary

import (
	"context"
	"time"
)

// IssueTracker defines the secondary port for the external issue tracker.
type IssueTracker interface {
	// CreateOrUpdateIssue files an issue for a defect group, or updates the
	// existing one the tracker associates with the signature.
	CreateOrUpdateIssue(ctx context.Context, payload IssuePayload) (*IssueRef, error)
}

// IssuePayload is the issue content sent to the tracker.
type IssuePayload struct {
	Project         string    `json:"project"`
	Signature       string    `json:"signature"`
	GroupID         string    `json:"group_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	PrimaryClass    string    `json:"primary_class"`
	SubClass        string    `json:"sub_class,omitempty"`
	OccurrenceCount int       `json:"occurrence_count"`
	FirstSeen       time.Time `json:"first_seen"`
	LastSeen        time.Time `json:"last_seen"`
	Labels          []string  `json:"labels,omitempty"`
}

// IssueRef identifies an issue in the tracker.
type IssueRef struct {
	Key string `json:"key"`
	URL string `json:"url"`
}
