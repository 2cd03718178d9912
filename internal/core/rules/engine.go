package rules

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// Input is the evidence a rule set is evaluated against.
type Input struct {
	Message        string
	StackTrace     string
	ErrorType      string
	FileReferences []string
	TestName       string
	Environment    string
	Framework      string
	Suite          string
	Browser        string
	Project        string
}

// values returns the candidate values of a field. Empty values are dropped so
// absent fields never satisfy a condition.
func (in Input) values(f Field) []string {
	var raw []string
	switch f {
	case FieldMessage:
		raw = []string{in.Message}
	case FieldStackTrace:
		raw = []string{in.StackTrace}
	case FieldErrorType:
		raw = []string{in.ErrorType}
	case FieldFile:
		raw = in.FileReferences
	case FieldTestName:
		raw = []string{in.TestName}
	case FieldEnvironment:
		raw = []string{in.Environment}
	case FieldFramework:
		raw = []string{in.Framework}
	case FieldSuite:
		raw = []string{in.Suite}
	case FieldBrowser:
		raw = []string{in.Browser}
	case FieldProject:
		raw = []string{in.Project}
	}

	var out []string
	for _, v := range raw {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

// Result is the outcome of classifying one piece of evidence.
type Result struct {
	PrimaryClass   PrimaryClass
	SubClass       string
	Confidence     float64
	RuleID         string
	RuleName       string
	SuggestedFixes []string
}

// Matched reports whether a rule fired.
func (r Result) Matched() bool {
	return r.RuleID != ""
}

// RejectedRule is a rule that failed validation and was left out of an engine.
type RejectedRule struct {
	RuleID string
	Name   string
	Err    error
}

func (r RejectedRule) Error() string {
	return fmt.Sprintf("rule %s (%s) rejected: %v", r.RuleID, r.Name, r.Err)
}

// CompiledRule is a validated rule with its matchers prepared.
type CompiledRule struct {
	Rule
	conditions  []compiledCondition
	specificity float64
}

type compiledCondition struct {
	Condition
	needle string
	re     *regexp.Regexp
}

// Compile validates a rule and prepares it for evaluation.
func Compile(rule Rule) (*CompiledRule, error) {
	if strings.TrimSpace(rule.Name) == "" {
		return nil, fmt.Errorf("name is required")
	}
	if !rule.PrimaryClass.Valid() || rule.PrimaryClass == Unknown {
		return nil, fmt.Errorf("invalid primary class %q", rule.PrimaryClass)
	}
	if rule.Priority < 0 {
		return nil, fmt.Errorf("priority must not be negative (got %d)", rule.Priority)
	}
	if rule.BaseConfidence < 0 || rule.BaseConfidence > 1 {
		return nil, fmt.Errorf("base confidence must be within [0,1] (got %v)", rule.BaseConfidence)
	}
	if len(rule.Conditions) == 0 {
		return nil, fmt.Errorf("at least one condition is required")
	}

	compiled := &CompiledRule{Rule: rule}
	// Zero is the unset value of rules built in code or through the rule API.
	// LoadYAML rejects an explicit zero before it gets here.
	if compiled.BaseConfidence == 0 {
		compiled.BaseConfidence = DefaultBaseConfidence
	}

	for i, cond := range rule.Conditions {
		cc, err := compileCondition(cond)
		if err != nil {
			return nil, fmt.Errorf("condition %d: %w", i+1, err)
		}
		compiled.conditions = append(compiled.conditions, cc)
		if w := operatorWeights[cond.Operator]; w > compiled.specificity {
			compiled.specificity = w
		}
	}

	return compiled, nil
}

func compileCondition(cond Condition) (compiledCondition, error) {
	if !knownFields[cond.Field] {
		return compiledCondition{}, fmt.Errorf("unknown field %q", cond.Field)
	}
	if _, ok := operatorWeights[cond.Operator]; !ok {
		return compiledCondition{}, fmt.Errorf("unknown operator %q", cond.Operator)
	}
	if cond.Pattern == "" {
		return compiledCondition{}, fmt.Errorf("pattern is required")
	}

	cc := compiledCondition{Condition: cond}
	if cond.Operator == OpRegex {
		expr := cond.Pattern
		if !cond.CaseSensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return compiledCondition{}, fmt.Errorf("invalid regex %q: %w", cond.Pattern, err)
		}
		cc.re = re
		return cc, nil
	}

	cc.needle = cond.Pattern
	if !cond.CaseSensitive {
		cc.needle = strings.ToLower(cc.needle)
	}
	return cc, nil
}

// matches reports whether any non-empty value of the field satisfies the
// condition. not_contains requires every value to lack the pattern.
func (c compiledCondition) matches(in Input) bool {
	values := in.values(c.Field)
	if len(values) == 0 {
		return false
	}

	if c.Operator == OpNotContains {
		for _, v := range values {
			if strings.Contains(c.fold(v), c.needle) {
				return false
			}
		}
		return true
	}

	for _, v := range values {
		if c.matchOne(v) {
			return true
		}
	}
	return false
}

func (c compiledCondition) matchOne(v string) bool {
	switch c.Operator {
	case OpEquals:
		return strings.TrimSpace(c.fold(v)) == c.needle
	case OpContains:
		return strings.Contains(c.fold(v), c.needle)
	case OpStartsWith:
		return strings.HasPrefix(c.fold(v), c.needle)
	case OpEndsWith:
		return strings.HasSuffix(c.fold(v), c.needle)
	case OpRegex:
		return c.re.MatchString(v)
	}
	return false
}

func (c compiledCondition) fold(v string) string {
	if c.CaseSensitive {
		return v
	}
	return strings.ToLower(v)
}

// Matches reports whether every condition of the rule holds for the input.
func (r *CompiledRule) Matches(in Input) bool {
	for _, c := range r.conditions {
		if !c.matches(in) {
			return false
		}
	}
	return true
}

// Confidence is the rule's base confidence scaled by its most specific operator.
func (r *CompiledRule) Confidence() float64 {
	return math.Round(r.BaseConfidence*r.specificity*1000) / 1000
}

// Engine evaluates an ordered set of compiled rules. It is immutable once
// built and safe for concurrent use.
type Engine struct {
	rules []*CompiledRule
}

// NewEngine compiles the active rules and orders them by priority, then by
// rule ID. Rules that fail validation are returned instead of being used.
func NewEngine(rules []Rule) (*Engine, []RejectedRule) {
	var (
		compiled []*CompiledRule
		rejected []RejectedRule
	)

	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		cr, err := Compile(rule)
		if err != nil {
			rejected = append(rejected, RejectedRule{RuleID: rule.ID, Name: rule.Name, Err: err})
			continue
		}
		compiled = append(compiled, cr)
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		if compiled[i].Priority != compiled[j].Priority {
			return compiled[i].Priority < compiled[j].Priority
		}
		return compiled[i].ID < compiled[j].ID
	})

	return &Engine{rules: compiled}, rejected
}

// Rules returns the compiled rules in evaluation order.
func (e *Engine) Rules() []*CompiledRule {
	return e.rules
}

// Classify returns the classification of the first matching rule, or Unknown
// with zero confidence when nothing matches.
func (e *Engine) Classify(in Input) Result {
	for _, r := range e.rules {
		if !r.Matches(in) {
			continue
		}
		return Result{
			PrimaryClass:   r.PrimaryClass,
			SubClass:       r.SubClass,
			Confidence:     r.Confidence(),
			RuleID:         r.ID,
			RuleName:       r.Name,
			SuggestedFixes: r.SuggestedFixes,
		}
	}
	return Result{PrimaryClass: Unknown}
}
