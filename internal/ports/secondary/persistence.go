// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates a uniqueness constraint.
var ErrConflict = errors.New("conflict")

// Store bundles the repositories that make up the classification store.
type Store interface {
	Rules() RuleRepository
	Classifications() ClassificationRepository
	Groups() GroupRepository
	Audit() AuditLogRepository
	Pushes() PushRecordRepository
}

// Transactor runs a unit of work against the store atomically.
// The Store passed to fn is bound to the transaction and must not escape it.
// Any error returned by fn rolls the transaction back.
type Transactor interface {
	Store
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// RuleRepository defines the secondary port for classification rule persistence.
// Rules are never deleted, only deactivated.
type RuleRepository interface {
	// Create persists a new rule.
	Create(ctx context.Context, rule *RuleRecord) error

	// GetByID retrieves a rule by its ID.
	GetByID(ctx context.Context, id string) (*RuleRecord, error)

	// List retrieves rules matching the given filters.
	List(ctx context.Context, filters RuleFilters) ([]*RuleRecord, error)

	// ListActive retrieves every active rule, ordered by priority then ID.
	ListActive(ctx context.Context) ([]*RuleRecord, error)

	// Update updates an existing rule.
	Update(ctx context.Context, rule *RuleRecord) error

	// SetActive activates or deactivates a rule.
	SetActive(ctx context.Context, id string, active bool) error

	// GetNextID returns the next available rule ID.
	GetNextID(ctx context.Context) (string, error)
}

// RuleRecord represents a classification rule as stored in persistence.
type RuleRecord struct {
	ID             string
	Name           string
	PrimaryClass   string
	SubClass       string
	Priority       int
	BaseConfidence float64
	Conditions     []ConditionRecord
	SuggestedFixes []string
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ConditionRecord is one rule condition as stored in persistence.
type ConditionRecord struct {
	Field         string `json:"field"`
	Operator      string `json:"operator"`
	Pattern       string `json:"pattern"`
	CaseSensitive bool   `json:"case_sensitive,omitempty"`
}

// RuleFilters contains filter options for querying rules.
type RuleFilters struct {
	ActiveOnly   bool
	PrimaryClass string
}

// ClassificationRepository defines the secondary port for per-failure classification persistence.
type ClassificationRepository interface {
	// Create persists a new classification. Returns ErrConflict when the
	// failure already has one.
	Create(ctx context.Context, c *ClassificationRecord) error

	// GetByID retrieves a classification by its ID.
	GetByID(ctx context.Context, id string) (*ClassificationRecord, error)

	// GetByFailureID retrieves the classification of a failure.
	GetByFailureID(ctx context.Context, failureID string) (*ClassificationRecord, error)

	// List retrieves classifications matching the given filters.
	List(ctx context.Context, filters ClassificationFilters) ([]*ClassificationRecord, error)

	// UpdateClass records a manual class change.
	UpdateClass(ctx context.Context, id string, update ClassUpdate) error
}

// ClassificationRecord represents a classification as stored in persistence.
type ClassificationRecord struct {
	ID               string
	FailureID        string
	TestRunID        string
	Project          string
	TestName         string
	PrimaryClass     string
	SubClass         string
	Confidence       float64
	Signature        string
	IsManual         bool
	ClassifiedBy     string
	RuleID           string // Empty string means null
	EvidenceSnapshot string // JSON document
	SuggestedFixes   []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ClassUpdate carries the fields changed by a manual reclassification.
type ClassUpdate struct {
	PrimaryClass string
	SubClass     string
	ClassifiedBy string
	IsManual     bool
	UpdatedAt    time.Time
}

// ClassificationFilters contains filter options for querying classifications.
type ClassificationFilters struct {
	Project      string
	Signature    string
	TestRunID    string
	PrimaryClass string
	Limit        int
}

// GroupRepository defines the secondary port for defect group persistence.
type GroupRepository interface {
	// Create persists a new group. Returns ErrConflict when a group already
	// exists for the same project and signature.
	Create(ctx context.Context, group *GroupRecord) error

	// GetByID retrieves a group by its ID.
	GetByID(ctx context.Context, id string) (*GroupRecord, error)

	// GetByKey retrieves the group for a project and signature. Inside a
	// transaction the row is locked where the database supports it.
	GetByKey(ctx context.Context, project, signature string) (*GroupRecord, error)

	// List retrieves groups matching the given filters.
	List(ctx context.Context, filters GroupFilters) ([]*GroupRecord, error)

	// Update updates an existing group.
	Update(ctx context.Context, group *GroupRecord) error

	// AddMember records a failure as a member of a group. Returns ErrConflict
	// when the failure is already a member.
	AddMember(ctx context.Context, member *GroupMemberRecord) error

	// ListMembers retrieves the members of a group, oldest occurrence first.
	ListMembers(ctx context.Context, groupID string) ([]*GroupMemberRecord, error)

	// CountMembers returns the number of members of a group.
	CountMembers(ctx context.Context, groupID string) (int, error)
}

// GroupRecord represents a defect group as stored in persistence.
type GroupRecord struct {
	ID                  string
	Project             string
	Signature           string
	ErrorType           string
	PrimaryClass        string
	SubClass            string
	ManualClass         bool
	RepresentativeError string
	FirstSeen           time.Time
	LastSeen            time.Time
	OccurrenceCount     int
	Resolved            bool
	ResolvedAt          time.Time // Zero means null
	ResolvedBy          string    // Empty string means null
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// GroupMemberRecord represents a failure's membership in a group.
type GroupMemberRecord struct {
	ID               string
	GroupID          string
	FailureID        string
	ClassificationID string
	OccurredAt       time.Time
	CreatedAt        time.Time
}

// Group sort orders.
const (
	GroupSortOccurrences = "occurrences"
	GroupSortLastSeen    = "last_seen"
	GroupSortFirstSeen   = "first_seen"
)

// GroupFilters contains filter options for querying groups.
type GroupFilters struct {
	Project      string
	PrimaryClass string
	SubClass     string
	Resolved     *bool
	SeenSince    time.Time // Zero means unbounded
	SeenUntil    time.Time // Zero means unbounded
	Search       string
	SortBy       string
	Limit        int
}

// AuditLogRepository defines the secondary port for the classification audit trail.
// Entries are immutable - there are no Update or Delete operations.
type AuditLogRepository interface {
	// Append persists a new audit entry.
	Append(ctx context.Context, entry *AuditLogRecord) error

	// List retrieves audit entries matching the given filters, newest first.
	List(ctx context.Context, filters AuditLogFilters) ([]*AuditLogRecord, error)
}

// AuditLogRecord represents an audit entry as stored in persistence.
type AuditLogRecord struct {
	ID               string
	Seq              int64
	ClassificationID string // Empty string means null
	GroupID          string // Empty string means null
	Action           string // 'created', 'reclassified', 'resolved', 'reopened'
	OldPrimaryClass  string
	OldSubClass      string
	NewPrimaryClass  string
	NewSubClass      string
	Actor            string
	Note             string
	CreatedAt        time.Time
}

// AuditLogFilters contains filter options for querying audit entries.
type AuditLogFilters struct {
	ClassificationID string
	GroupID          string
	Action           string
	Limit            int
}

// PushRecordRepository defines the secondary port for the issue push ledger.
// The ledger is append-only.
type PushRecordRepository interface {
	// Append persists a new push record.
	Append(ctx context.Context, record *PushRecord) error

	// Latest retrieves the most recent push record for a signature.
	// Returns nil without error when the signature was never pushed.
	Latest(ctx context.Context, project, signature string) (*PushRecord, error)

	// List retrieves the push history for a signature, newest first.
	List(ctx context.Context, project, signature string) ([]*PushRecord, error)
}

// PushRecord represents one issue push attempt as stored in persistence.
type PushRecord struct {
	ID           string
	Seq          int64
	Project      string
	Signature    string
	GroupID      string // Empty string means null
	IssueKey     string // Empty string means null
	IssueURL     string // Empty string means null
	Status       string // 'pending', 'success', 'failed'
	ErrorMessage string
	Payload      string // JSON document
	Actor        string
	CreatedAt    time.Time
}
