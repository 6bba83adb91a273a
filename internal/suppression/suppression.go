// Package suppression evaluates configured rules against a normalized item
// to decide whether it should be excluded from the alerting pipeline.
package suppression

import (
	"regexp"
	"strings"

	"github.com/hardstop/hardstop/pkg/types"
)

// Item is the subset of a normalized item the suppression engine matches
// against. Fields are optional; a field missing from the item is treated
// as absent, never an error.
type Item struct {
	Title     string
	Summary   string
	RawText   string
	URL       string
	EventType string
}

// Result is the outcome of evaluating every configured rule against one
// item.
type Result struct {
	IsSuppressed      bool
	PrimaryRuleID     string
	MatchedRuleIDs    []string
	Notes             []string
	PrimaryReasonCode string
	ReasonCodes       []string
}

// Evaluate visits global rules in config order, then source rules in
// config order. All matches are collected; primary_rule_id is the first
// match. Disabled rules never match.
func Evaluate(sourceID string, tier types.SourceTier, item Item, globalRules, sourceRules []types.SuppressionRule) Result {
	var matched []types.SuppressionRule

	for _, rule := range globalRules {
		if evaluateRule(rule, item, sourceID, tier) {
			matched = append(matched, rule)
		}
	}
	for _, rule := range sourceRules {
		if evaluateRule(rule, item, sourceID, tier) {
			matched = append(matched, rule)
		}
	}

	if len(matched) == 0 {
		return Result{}
	}

	res := Result{
		IsSuppressed:  true,
		PrimaryRuleID: matched[0].RuleID,
	}
	for _, rule := range matched {
		res.MatchedRuleIDs = append(res.MatchedRuleIDs, rule.RuleID)
		if rule.Note != "" {
			res.Notes = append(res.Notes, rule.Note)
		}
		res.ReasonCodes = append(res.ReasonCodes, reasonCode(rule))
	}
	res.PrimaryReasonCode = res.ReasonCodes[0]
	return res
}

func reasonCode(rule types.SuppressionRule) string {
	if rule.Reason != "" {
		return rule.Reason
	}
	return rule.RuleID
}

func evaluateRule(rule types.SuppressionRule, item Item, sourceID string, tier types.SourceTier) bool {
	if !rule.Enabled {
		return false
	}
	value, ok := fieldValue(rule.Field, item, sourceID, tier)
	if !ok {
		return false
	}
	switch rule.Match {
	case types.MatchKeyword:
		return matchKeyword(value, rule.Pattern, rule.CaseSensitive)
	case types.MatchExact:
		return matchExact(value, rule.Pattern, rule.CaseSensitive)
	case types.MatchRegex:
		return matchRegex(value, rule.Pattern, rule.CaseSensitive)
	default:
		return false
	}
}

func fieldValue(field types.SuppressionField, item Item, sourceID string, tier types.SourceTier) (string, bool) {
	if field == types.FieldAny {
		for _, v := range []string{item.Title, item.Summary, item.RawText, item.URL} {
			if v != "" {
				return v, true
			}
		}
		return "", false
	}

	var v string
	switch field {
	case types.FieldTitle:
		v = item.Title
	case types.FieldSummary:
		v = item.Summary
	case types.FieldRawText:
		v = item.RawText
	case types.FieldURL:
		v = item.URL
	case types.FieldEventType:
		v = item.EventType
	case types.FieldSourceID:
		v = sourceID
	case types.FieldTier:
		v = string(tier)
	default:
		return "", false
	}
	if v == "" {
		return "", false
	}
	return v, true
}

func matchKeyword(text, pattern string, caseSensitive bool) bool {
	if !caseSensitive {
		text = strings.ToLower(text)
		pattern = strings.ToLower(pattern)
	}
	return strings.Contains(text, pattern)
}

func matchExact(text, pattern string, caseSensitive bool) bool {
	if !caseSensitive {
		text = strings.ToLower(text)
		pattern = strings.ToLower(pattern)
	}
	return text == pattern
}

// matchRegex never propagates a compile error — an invalid pattern simply
// fails to match.
func matchRegex(text, pattern string, caseSensitive bool) bool {
	if !caseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}
