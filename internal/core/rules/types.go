// Package rules contains the classification rule model and the rule engine.
// This is part of the Functional Core - no I/O, only pure functions.
package rules

import (
	"fmt"
	"strings"
)

// PrimaryClass is the root-cause category assigned to a failure.
type PrimaryClass string

// Primary classes.
const (
	ApplicationDefect     PrimaryClass = "Application Defect"
	TestDataIssue         PrimaryClass = "Test Data Issue"
	AutomationScriptError PrimaryClass = "Automation Script Error"
	EnvironmentIssue      PrimaryClass = "Environment Issue"
	Unknown               PrimaryClass = "Unknown"
)

// PrimaryClasses lists every primary class in display order.
var PrimaryClasses = []PrimaryClass{
	ApplicationDefect,
	TestDataIssue,
	AutomationScriptError,
	EnvironmentIssue,
	Unknown,
}

// Valid reports whether c is one of the known primary classes.
func (c PrimaryClass) Valid() bool {
	for _, known := range PrimaryClasses {
		if c == known {
			return true
		}
	}
	return false
}

// ParsePrimaryClass resolves a primary class case-insensitively. Hyphen and
// underscore separated forms ("environment-issue") are accepted.
func ParsePrimaryClass(s string) (PrimaryClass, error) {
	normalized := strings.NewReplacer("-", " ", "_", " ").Replace(strings.TrimSpace(s))
	for _, known := range PrimaryClasses {
		if strings.EqualFold(normalized, string(known)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown primary class %q", s)
}

// Field names an evidence attribute a condition can inspect.
type Field string

// Condition fields.
const (
	FieldMessage     Field = "message"
	FieldStackTrace  Field = "stack_trace"
	FieldErrorType   Field = "error_type"
	FieldFile        Field = "file"
	FieldTestName    Field = "test_name"
	FieldEnvironment Field = "environment"
	FieldFramework   Field = "framework"
	FieldSuite       Field = "suite"
	FieldBrowser     Field = "browser"
	FieldProject     Field = "project"
)

var knownFields = map[Field]bool{
	FieldMessage: true, FieldStackTrace: true, FieldErrorType: true, FieldFile: true,
	FieldTestName: true, FieldEnvironment: true, FieldFramework: true, FieldSuite: true,
	FieldBrowser: true, FieldProject: true,
}

// Operator is the comparison a condition applies to its field.
type Operator string

// Condition operators.
const (
	OpEquals      Operator = "equals"
	OpContains    Operator = "contains"
	OpStartsWith  Operator = "starts_with"
	OpEndsWith    Operator = "ends_with"
	OpRegex       Operator = "regex"
	OpNotContains Operator = "not_contains"
)

// operatorWeights is the specificity each operator contributes to confidence.
var operatorWeights = map[Operator]float64{
	OpEquals:      1.0,
	OpStartsWith:  0.9,
	OpEndsWith:    0.9,
	OpRegex:       0.85,
	OpContains:    0.75,
	OpNotContains: 0.5,
}

// DefaultBaseConfidence applies to rules that leave base_confidence unset.
const DefaultBaseConfidence = 0.9

// Condition is one typed predicate over an evidence field.
type Condition struct {
	Field         Field    `yaml:"field" json:"field"`
	Operator      Operator `yaml:"operator" json:"operator"`
	Pattern       string   `yaml:"pattern" json:"pattern"`
	CaseSensitive bool     `yaml:"case_sensitive,omitempty" json:"case_sensitive,omitempty"`
}

// Rule maps a set of conditions to a classification.
type Rule struct {
	ID             string
	Name           string
	PrimaryClass   PrimaryClass
	SubClass       string
	Priority       int
	BaseConfidence float64
	Conditions     []Condition
	SuggestedFixes []string
	Active         bool
}
