package rules

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type ruleFile struct {
	Rules []ruleSpec `yaml:"rules"`
}

type ruleSpec struct {
	ID             string      `yaml:"id"`
	Name           string      `yaml:"name"`
	PrimaryClass   string      `yaml:"primary_class"`
	SubClass       string      `yaml:"sub_class"`
	Priority       int         `yaml:"priority"`
	BaseConfidence *float64    `yaml:"base_confidence"`
	Active         *bool       `yaml:"active"`
	Conditions     []Condition `yaml:"conditions"`
	SuggestedFixes []string    `yaml:"suggested_fixes"`
}

// LoadYAML decodes and validates a rule set. Unknown keys are rejected, a
// rule without an explicit active flag is active, and a missing
// base_confidence takes DefaultBaseConfidence. IDs are optional; rules
// without one are assigned an ID when stored.
func LoadYAML(r io.Reader) ([]Rule, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file ruleFile
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse rule file: %w", err)
	}

	seen := make(map[string]bool)
	rules := make([]Rule, 0, len(file.Rules))
	for i, spec := range file.Rules {
		class, err := ParsePrimaryClass(spec.PrimaryClass)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i+1, spec.Name, err)
		}
		if spec.ID != "" {
			if seen[spec.ID] {
				return nil, fmt.Errorf("rule %d (%s): duplicate id %s", i+1, spec.Name, spec.ID)
			}
			seen[spec.ID] = true
		}

		base := DefaultBaseConfidence
		if spec.BaseConfidence != nil {
			base = *spec.BaseConfidence
			if base <= 0 || base > 1 {
				return nil, fmt.Errorf("rule %d (%s): base_confidence must be within (0,1] (got %v)", i+1, spec.Name, base)
			}
		}

		rule := Rule{
			ID:             spec.ID,
			Name:           spec.Name,
			PrimaryClass:   class,
			SubClass:       spec.SubClass,
			Priority:       spec.Priority,
			BaseConfidence: base,
			Conditions:     spec.Conditions,
			SuggestedFixes: spec.SuggestedFixes,
			Active:         spec.Active == nil || *spec.Active,
		}
		if _, err := Compile(rule); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i+1, spec.Name, err)
		}
		rules = append(rules, rule)
	}

	return rules, nil
}

// Defaults returns the built-in rule set.
func Defaults() ([]Rule, error) {
	return LoadYAML(bytes.NewReader(defaultsYAML))
}
