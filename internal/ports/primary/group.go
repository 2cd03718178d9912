package primary

import (
	"context"
	"time"
)

// GroupService defines the primary port for defect group operations.
type GroupService interface {
	// UpsertOccurrence records a classified failure in the group for its
	// project and signature, creating the group on first occurrence.
	UpsertOccurrence(ctx context.Context, req OccurrenceRequest) (*DefectGroup, error)

	// ListGroups lists groups with optional filters and a summary.
	ListGroups(ctx context.Context, filters GroupFilters) (*GroupListing, error)

	// GetGroup retrieves a group by ID.
	GetGroup(ctx context.Context, groupID string) (*DefectGroup, error)

	// ListMembers lists the failures counted toward a group.
	ListMembers(ctx context.Context, groupID string) ([]*GroupMember, error)
}

// OccurrenceRequest contains parameters for recording a group occurrence.
type OccurrenceRequest struct {
	Project          string
	Signature        string
	FailureID        string
	ClassificationID string
	ErrorType        string
	Message          string
	PrimaryClass     string
	SubClass         string
	OccurredAt       time.Time // Zero means now
}

// DefectGroup represents a defect group at the port boundary.
type DefectGroup struct {
	ID                  string    `json:"id"`
	Project             string    `json:"project"`
	Signature           string    `json:"signature"`
	ErrorType           string    `json:"errorType"`
	PrimaryClass        string    `json:"primaryClass"`
	SubClass            string    `json:"subClass"`
	ManualClass         bool      `json:"manualClass"`
	RepresentativeError string    `json:"representativeError"`
	FirstSeen           time.Time `json:"firstSeen"`
	LastSeen            time.Time `json:"lastSeen"`
	OccurrenceCount     int       `json:"occurrenceCount"`
	Resolved            bool      `json:"resolved"`
	ResolvedAt          time.Time `json:"resolvedAt,omitzero"`
	ResolvedBy          string    `json:"resolvedBy,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// GroupMember is one failure counted toward a group.
type GroupMember struct {
	GroupID          string
	FailureID        string
	ClassificationID string
	OccurredAt       time.Time
}

// GroupFilters contains filter options for listing groups.
type GroupFilters struct {
	Project      string
	PrimaryClass string
	SubClass     string
	Resolved     *bool     // Nil means any
	SeenSince    time.Time // Groups last seen at or after
	SeenUntil    time.Time // Groups last seen at or before
	Search       string    // Matches representative error or sub class
	SortBy       string    // 'occurrences' (default), 'last_seen', 'first_seen'
	Limit        int
}

// GroupListing is the outbound shape of a group listing.
type GroupListing struct {
	Groups  []*DefectGroup `json:"groups"`
	Summary GroupSummary   `json:"summary"`
}

// GroupSummary aggregates every group matching the filters, before the limit.
type GroupSummary struct {
	TotalGroups      int            `json:"totalGroups"`
	TotalOccurrences int            `json:"totalOccurrences"`
	ByClass          map[string]int `json:"byClass"`
}

// Group sort orders.
const (
	GroupSortOccurrences = "occurrences"
	GroupSortLastSeen    = "last_seen"
	GroupSortFirstSeen   = "first_seen"
)
