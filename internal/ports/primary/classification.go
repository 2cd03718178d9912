package primary

import (
	"context"
	"time"
)

// ClassificationService defines the primary port for classifying failures.
type ClassificationService interface {
	// Classify normalizes, signs and classifies one failure and records it in
	// its defect group. Reprocessing an already classified failure returns the
	// stored result.
	Classify(ctx context.Context, failure FailureInstance) (*ClassificationResult, error)

	// ClassifyBatch classifies failures concurrently. Cancellation stops
	// scheduling new failures; completed ones stay committed.
	ClassifyBatch(ctx context.Context, failures []FailureInstance) (*BatchResult, error)

	// PreviewBatch classifies and groups failures without persisting anything.
	PreviewBatch(ctx context.Context, failures []FailureInstance) (*BatchPreview, error)

	// GetClassification retrieves a classification by ID.
	GetClassification(ctx context.Context, classificationID string) (*Classification, error)

	// GetByFailure retrieves the classification of a failure.
	GetByFailure(ctx context.Context, failureID string) (*Classification, error)
}

// FailureInstance is one failed test result as received from ingestion.
type FailureInstance struct {
	ID           string    `json:"id"`
	TestRunID    string    `json:"test_run_id"`
	Project      string    `json:"project"`
	TestName     string    `json:"test_name"`
	ErrorMessage string    `json:"error_message"`
	StackTrace   string    `json:"stack_trace"`
	Environment  string    `json:"environment"`
	Framework    string    `json:"framework"`
	Suite        string    `json:"suite"`
	Browser      string    `json:"browser"`
	DurationMs   int64     `json:"duration_ms"`
	Timestamp    time.Time `json:"timestamp"`
}

// ClassificationResult is the outbound classification of one failure.
type ClassificationResult struct {
	ClassificationID string   `json:"classificationId"`
	FailureID        string   `json:"failureId"`
	PrimaryClass     string   `json:"primaryClass"`
	SubClass         string   `json:"subClass"`
	Confidence       float64  `json:"confidence"`
	Signature        string   `json:"signature"`
	GroupID          string   `json:"groupId"`
	IsManual         bool     `json:"isManual"`
	RuleID           string   `json:"ruleId,omitempty"`
	SuggestedFixes   []string `json:"suggestedFixes,omitempty"`
	Existing         bool     `json:"-"`
}

// Classification represents a stored classification at the port boundary.
type Classification struct {
	ID               string
	FailureID        string
	TestRunID        string
	Project          string
	TestName         string
	PrimaryClass     string
	SubClass         string
	Confidence       float64
	Signature        string
	GroupID          string // May be empty
	IsManual         bool
	ClassifiedBy     string
	RuleID           string // May be empty
	EvidenceSnapshot string
	SuggestedFixes   []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// BatchResult summarizes a batch classification run.
type BatchResult struct {
	Items      []*BatchItem
	Classified int
	Existing   int
	Failed     int
	Skipped    int
}

// BatchItem is the outcome for one failure of a batch.
type BatchItem struct {
	FailureID string
	Result    *ClassificationResult // Nil when Err is set or the failure was skipped
	Err       error
}

// BatchPreview is the dry-run outcome of a batch.
type BatchPreview struct {
	Results []*ClassificationResult
	Groups  []*GroupPreview
}

// GroupPreview is a defect group computed from a batch without storage.
type GroupPreview struct {
	Project             string
	Signature           string
	ErrorType           string
	PrimaryClass        string
	SubClass            string
	RepresentativeError string
	OccurrenceCount     int
	FirstSeen           time.Time
	LastSeen            time.Time
}
