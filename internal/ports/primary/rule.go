package primary

import (
	"context"
	"io"
	"time"
)

// RuleService defines the primary port for classification rule management.
type RuleService interface {
	// CreateRule validates and stores a new rule.
	CreateRule(ctx context.Context, req RuleRequest) (*Rule, error)

	// UpdateRule validates and replaces an existing rule.
	UpdateRule(ctx context.Context, ruleID string, req RuleRequest) (*Rule, error)

	// SetRuleActive activates or deactivates a rule.
	SetRuleActive(ctx context.Context, ruleID string, active bool) error

	// GetRule retrieves a rule by ID.
	GetRule(ctx context.Context, ruleID string) (*Rule, error)

	// ListRules lists rules in evaluation order.
	ListRules(ctx context.Context, filters RuleFilters) ([]*Rule, error)

	// ImportRules loads a YAML rule set. Rules with a known ID are updated.
	ImportRules(ctx context.Context, r io.Reader) (*ImportResult, error)

	// SeedDefaults stores the built-in rules that are not already present.
	SeedDefaults(ctx context.Context) (*ImportResult, error)
}

// Rule represents a classification rule at the port boundary.
type Rule struct {
	ID             string
	Name           string
	PrimaryClass   string
	SubClass       string
	Priority       int
	BaseConfidence float64
	Conditions     []RuleCondition
	SuggestedFixes []string
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RuleCondition is one predicate of a rule.
type RuleCondition struct {
	Field         string
	Operator      string
	Pattern       string
	CaseSensitive bool
}

// RuleRequest contains the editable fields of a rule.
type RuleRequest struct {
	Name           string
	PrimaryClass   string
	SubClass       string
	Priority       int
	BaseConfidence float64 // zero selects the default
	Conditions     []RuleCondition
	SuggestedFixes []string
	Active         bool
}

// RuleFilters contains filter options for listing rules.
type RuleFilters struct {
	ActiveOnly   bool
	PrimaryClass string
}

// ImportResult summarizes a rule import.
type ImportResult struct {
	Created int
	Updated int
	Skipped int
	RuleIDs []string
}
