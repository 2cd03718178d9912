package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/example/triage/internal/ports/primary"
)

// RuleAdapter is a thin adapter that translates CLI operations to RuleService calls.
type RuleAdapter struct {
	service primary.RuleService
	out     io.Writer
}

// NewRuleAdapter creates a new RuleAdapter with the given service.
func NewRuleAdapter(service primary.RuleService, out io.Writer) *RuleAdapter {
	return &RuleAdapter{
		service: service,
		out:     out,
	}
}

// List lists rules in evaluation order.
func (a *RuleAdapter) List(ctx context.Context, filters primary.RuleFilters) ([]*primary.Rule, error) {
	rules, err := a.service.ListRules(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}

	if len(rules) == 0 {
		fmt.Fprintln(a.out, "No rules found.")
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, "Load the built-in rules:")
		fmt.Fprintln(a.out, "  triage rules seed")
		return rules, nil
	}

	t := newTable(a.out)
	t.AppendHeader(table.Row{"ID", "PRIORITY", "NAME", "CLASS", "CONDITIONS", "ACTIVE"})
	for _, r := range rules {
		active := "yes"
		if !r.Active {
			active = "no"
		}
		t.AppendRow(table.Row{r.ID, r.Priority, r.Name, classLabel(classPair(r.PrimaryClass, r.SubClass)), len(r.Conditions), active})
	}
	t.Render()

	return rules, nil
}

// Show displays a rule with its conditions.
func (a *RuleAdapter) Show(ctx context.Context, ruleID string) (*primary.Rule, error) {
	rule, err := a.service.GetRule(ctx, ruleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	fmt.Fprintf(a.out, "\nRule: %s\n", rule.ID)
	fmt.Fprintf(a.out, "Name:       %s\n", rule.Name)
	fmt.Fprintf(a.out, "Class:      %s\n", classLabel(classPair(rule.PrimaryClass, rule.SubClass)))
	fmt.Fprintf(a.out, "Priority:   %d\n", rule.Priority)
	if rule.BaseConfidence > 0 {
		fmt.Fprintf(a.out, "Confidence: %.2f\n", rule.BaseConfidence)
	}
	fmt.Fprintf(a.out, "Active:     %v\n", rule.Active)

	fmt.Fprintln(a.out, "\nConditions:")
	for _, c := range rule.Conditions {
		suffix := ""
		if c.CaseSensitive {
			suffix = " (case sensitive)"
		}
		fmt.Fprintf(a.out, "  %s %s %q%s\n", c.Field, c.Operator, c.Pattern, suffix)
	}
	if len(rule.SuggestedFixes) > 0 {
		fmt.Fprintln(a.out, "\nSuggested fixes:")
		for _, fix := range rule.SuggestedFixes {
			fmt.Fprintf(a.out, "  - %s\n", fix)
		}
	}
	fmt.Fprintln(a.out)

	return rule, nil
}

// Import loads a YAML rule file.
func (a *RuleAdapter) Import(ctx context.Context, r io.Reader) (*primary.ImportResult, error) {
	result, err := a.service.ImportRules(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("failed to import rules: %w", err)
	}
	a.printImport(result)
	return result, nil
}

// Seed stores the built-in rules that are not present yet.
func (a *RuleAdapter) Seed(ctx context.Context) (*primary.ImportResult, error) {
	result, err := a.service.SeedDefaults(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to seed rules: %w", err)
	}
	a.printImport(result)
	return result, nil
}

func (a *RuleAdapter) printImport(result *primary.ImportResult) {
	fmt.Fprintf(a.out, "✓ %d created, %d updated, %d skipped\n", result.Created, result.Updated, result.Skipped)
	if len(result.RuleIDs) > 0 {
		fmt.Fprintf(a.out, "  %s\n", strings.Join(result.RuleIDs, ", "))
	}
}

// SetActive activates or deactivates a rule.
func (a *RuleAdapter) SetActive(ctx context.Context, ruleID string, active bool) error {
	if err := a.service.SetRuleActive(ctx, ruleID, active); err != nil {
		return err
	}
	state := "deactivated"
	if active {
		state = "activated"
	}
	fmt.Fprintf(a.out, "✓ Rule %s %s\n", ruleID, state)
	return nil
}
