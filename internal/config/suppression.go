package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/hardstop/hardstop/pkg/types"
)

// DefaultSuppressionConfig returns an empty rule set; suppression is
// opt-in, so an operator with no suppression.yaml suppresses nothing.
func DefaultSuppressionConfig() *types.SuppressionConfig {
	return &types.SuppressionConfig{Rules: []types.SuppressionRule{}}
}

// LoadSuppressionConfigFromFile loads suppression.yaml.
func LoadSuppressionConfigFromFile(path string) (*types.SuppressionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suppression config: %w", err)
	}

	cfg := DefaultSuppressionConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing suppression config: %w", err)
	}
	return cfg, nil
}

// ValidateSuppressionConfig checks each rule has a unique id, a known
// field/match type, and (for regex rules) a pattern that compiles. An
// invalid regex here is a config-time error; at evaluation time a rule
// whose pattern fails to compile simply does not match: no error is
// raised and nothing is logged (see internal/suppression).
func ValidateSuppressionConfig(c *types.SuppressionConfig) error {
	seen := make(map[string]bool, len(c.Rules))
	for _, r := range c.Rules {
		if r.RuleID == "" {
			return fmt.Errorf("rule with empty rule_id")
		}
		if seen[r.RuleID] {
			return fmt.Errorf("duplicate rule_id %q", r.RuleID)
		}
		seen[r.RuleID] = true

		switch r.Field {
		case types.FieldTitle, types.FieldSummary, types.FieldRawText, types.FieldURL,
			types.FieldEventType, types.FieldSourceID, types.FieldTier, types.FieldAny:
		default:
			return fmt.Errorf("rule %q: unknown field %q", r.RuleID, r.Field)
		}

		switch r.Match {
		case types.MatchKeyword, types.MatchExact:
		case types.MatchRegex:
			if _, err := regexp.Compile(r.Pattern); err != nil {
				return fmt.Errorf("rule %q: invalid regex pattern: %w", r.RuleID, err)
			}
		default:
			return fmt.Errorf("rule %q: unknown match type %q", r.RuleID, r.Match)
		}

		if r.Pattern == "" {
			return fmt.Errorf("rule %q: pattern is required", r.RuleID)
		}
	}
	return nil
}
