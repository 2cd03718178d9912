package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/example/triage/internal/core/rules"
	"github.com/example/triage/internal/logging"
	"github.com/example/triage/internal/ports/primary"
	"github.com/example/triage/internal/ports/secondary"
)

// RuleServiceImpl implements the RuleService interface.
type RuleServiceImpl struct {
	store  secondary.Transactor
	now    func() time.Time
	logger *slog.Logger
}

// NewRuleService creates a new RuleService with injected dependencies.
func NewRuleService(store secondary.Transactor) *RuleServiceImpl {
	return &RuleServiceImpl{
		store:  store,
		now:    time.Now,
		logger: logging.New("rules"),
	}
}

// CreateRule validates and stores a new rule.
func (s *RuleServiceImpl) CreateRule(ctx context.Context, req primary.RuleRequest) (*primary.Rule, error) {
	rule, err := requestToRule(req)
	if err != nil {
		return nil, err
	}

	var record *secondary.RuleRecord
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx secondary.Store) error {
		id, err := tx.Rules().GetNextID(ctx)
		if err != nil {
			return fmt.Errorf("failed to generate rule ID: %w", err)
		}
		rule.ID = id

		now := s.now().UTC()
		record = ruleToRecord(rule)
		record.CreatedAt = now
		record.UpdatedAt = now
		return tx.Rules().Create(ctx, record)
	})
	if err != nil {
		return nil, storageError("create rule", err)
	}

	s.logger.Info("rule created", "rule", record.ID, "name", record.Name)
	return recordToRule(record), nil
}

// UpdateRule validates and replaces an existing rule.
func (s *RuleServiceImpl) UpdateRule(ctx context.Context, ruleID string, req primary.RuleRequest) (*primary.Rule, error) {
	rule, err := requestToRule(req)
	if err != nil {
		return nil, err
	}
	rule.ID = ruleID

	var record *secondary.RuleRecord
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx secondary.Store) error {
		existing, err := tx.Rules().GetByID(ctx, ruleID)
		if errors.Is(err, secondary.ErrNotFound) {
			return notFound("rule", ruleID)
		}
		if err != nil {
			return err
		}

		record = ruleToRecord(rule)
		record.CreatedAt = existing.CreatedAt
		record.UpdatedAt = s.now().UTC()
		return tx.Rules().Update(ctx, record)
	})
	if err != nil {
		return nil, storageError("update rule", err)
	}

	return recordToRule(record), nil
}

// SetRuleActive activates or deactivates a rule.
func (s *RuleServiceImpl) SetRuleActive(ctx context.Context, ruleID string, active bool) error {
	err := s.store.Rules().SetActive(ctx, ruleID, active)
	if errors.Is(err, secondary.ErrNotFound) {
		return notFound("rule", ruleID)
	}
	if err != nil {
		return storageError("set rule active", err)
	}
	s.logger.Info("rule state changed", "rule", ruleID, "active", active)
	return nil
}

// GetRule retrieves a rule by ID.
func (s *RuleServiceImpl) GetRule(ctx context.Context, ruleID string) (*primary.Rule, error) {
	record, err := s.store.Rules().GetByID(ctx, ruleID)
	if errors.Is(err, secondary.ErrNotFound) {
		return nil, notFound("rule", ruleID)
	}
	if err != nil {
		return nil, storageError("get rule", err)
	}
	return recordToRule(record), nil
}

// ListRules lists rules in evaluation order.
func (s *RuleServiceImpl) ListRules(ctx context.Context, filters primary.RuleFilters) ([]*primary.Rule, error) {
	var class string
	if filters.PrimaryClass != "" {
		parsed, err := rules.ParsePrimaryClass(filters.PrimaryClass)
		if err != nil {
			return nil, invalidInput("%v", err)
		}
		class = string(parsed)
	}

	records, err := s.store.Rules().List(ctx, secondary.RuleFilters{
		ActiveOnly:   filters.ActiveOnly,
		PrimaryClass: class,
	})
	if err != nil {
		return nil, storageError("list rules", err)
	}

	out := make([]*primary.Rule, len(records))
	for i, r := range records {
		out[i] = recordToRule(r)
	}
	return out, nil
}

// ImportRules loads a YAML rule set. Rules with a known ID are updated.
func (s *RuleServiceImpl) ImportRules(ctx context.Context, r io.Reader) (*primary.ImportResult, error) {
	ruleSet, err := rules.LoadYAML(r)
	if err != nil {
		return nil, invalidInput("%v", err)
	}
	return s.save(ctx, ruleSet, true)
}

// SeedDefaults stores the built-in rules that are not already present.
func (s *RuleServiceImpl) SeedDefaults(ctx context.Context) (*primary.ImportResult, error) {
	ruleSet, err := rules.Defaults()
	if err != nil {
		return nil, fmt.Errorf("failed to load built-in rules: %w", err)
	}
	return s.save(ctx, ruleSet, false)
}

// save stores a rule set in one transaction. Rules without an ID get the next
// free one. Existing rules are replaced only when overwrite is set.
func (s *RuleServiceImpl) save(ctx context.Context, ruleSet []rules.Rule, overwrite bool) (*primary.ImportResult, error) {
	result := &primary.ImportResult{}

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx secondary.Store) error {
		now := s.now().UTC()
		for _, rule := range ruleSet {
			if rule.ID == "" {
				id, err := tx.Rules().GetNextID(ctx)
				if err != nil {
					return fmt.Errorf("failed to generate rule ID: %w", err)
				}
				rule.ID = id
			}

			record := ruleToRecord(rule)
			record.UpdatedAt = now

			existing, err := tx.Rules().GetByID(ctx, rule.ID)
			switch {
			case errors.Is(err, secondary.ErrNotFound):
				record.CreatedAt = now
				if err := tx.Rules().Create(ctx, record); err != nil {
					return fmt.Errorf("failed to create rule %s: %w", rule.ID, err)
				}
				result.Created++
			case err != nil:
				return err
			case overwrite:
				record.CreatedAt = existing.CreatedAt
				if err := tx.Rules().Update(ctx, record); err != nil {
					return fmt.Errorf("failed to update rule %s: %w", rule.ID, err)
				}
				result.Updated++
			default:
				result.Skipped++
				continue
			}
			result.RuleIDs = append(result.RuleIDs, rule.ID)
		}
		return nil
	})
	if err != nil {
		return nil, storageError("import rules", err)
	}

	s.logger.Info("rules imported", "created", result.Created, "updated", result.Updated, "skipped", result.Skipped)
	return result, nil
}

// requestToRule converts and validates a rule request.
func requestToRule(req primary.RuleRequest) (rules.Rule, error) {
	class, err := rules.ParsePrimaryClass(req.PrimaryClass)
	if err != nil {
		return rules.Rule{}, invalidInput("%v", err)
	}

	rule := rules.Rule{
		Name:           strings.TrimSpace(req.Name),
		PrimaryClass:   class,
		SubClass:       strings.TrimSpace(req.SubClass),
		Priority:       req.Priority,
		BaseConfidence: req.BaseConfidence,
		SuggestedFixes: req.SuggestedFixes,
		Active:         req.Active,
	}
	for _, c := range req.Conditions {
		rule.Conditions = append(rule.Conditions, rules.Condition{
			Field:         rules.Field(c.Field),
			Operator:      rules.Operator(c.Operator),
			Pattern:       c.Pattern,
			CaseSensitive: c.CaseSensitive,
		})
	}

	if _, err := rules.Compile(rule); err != nil {
		return rules.Rule{}, invalidInput("%v", err)
	}
	return rule, nil
}

func ruleToRecord(rule rules.Rule) *secondary.RuleRecord {
	record := &secondary.RuleRecord{
		ID:             rule.ID,
		Name:           rule.Name,
		PrimaryClass:   string(rule.PrimaryClass),
		SubClass:       rule.SubClass,
		Priority:       rule.Priority,
		BaseConfidence: rule.BaseConfidence,
		SuggestedFixes: rule.SuggestedFixes,
		Active:         rule.Active,
	}
	for _, c := range rule.Conditions {
		record.Conditions = append(record.Conditions, secondary.ConditionRecord{
			Field:         string(c.Field),
			Operator:      string(c.Operator),
			Pattern:       c.Pattern,
			CaseSensitive: c.CaseSensitive,
		})
	}
	return record
}

// recordToEngineRule converts a stored rule for evaluation.
func recordToEngineRule(r *secondary.RuleRecord) rules.Rule {
	rule := rules.Rule{
		ID:             r.ID,
		Name:           r.Name,
		PrimaryClass:   rules.PrimaryClass(r.PrimaryClass),
		SubClass:       r.SubClass,
		Priority:       r.Priority,
		BaseConfidence: r.BaseConfidence,
		SuggestedFixes: r.SuggestedFixes,
		Active:         r.Active,
	}
	for _, c := range r.Conditions {
		rule.Conditions = append(rule.Conditions, rules.Condition{
			Field:         rules.Field(c.Field),
			Operator:      rules.Operator(c.Operator),
			Pattern:       c.Pattern,
			CaseSensitive: c.CaseSensitive,
		})
	}
	return rule
}

func recordToRule(r *secondary.RuleRecord) *primary.Rule {
	rule := &primary.Rule{
		ID:             r.ID,
		Name:           r.Name,
		PrimaryClass:   r.PrimaryClass,
		SubClass:       r.SubClass,
		Priority:       r.Priority,
		BaseConfidence: r.BaseConfidence,
		SuggestedFixes: r.SuggestedFixes,
		Active:         r.Active,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	for _, c := range r.Conditions {
		rule.Conditions = append(rule.Conditions, primary.RuleCondition{
			Field:         c.Field,
			Operator:      c.Operator,
			Pattern:       c.Pattern,
			CaseSensitive: c.CaseSensitive,
		})
	}
	return rule
}

// Ensure RuleServiceImpl implements the interface
var _ primary.RuleService = (*RuleServiceImpl)(nil)
