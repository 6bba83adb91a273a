package suppression

import (
	"testing"

	"github.com/hardstop/hardstop/pkg/types"
)

func rule(id string, field types.SuppressionField, match types.SuppressionMatchType, pattern string) types.SuppressionRule {
	return types.SuppressionRule{RuleID: id, Enabled: true, Field: field, Match: match, Pattern: pattern}
}

func TestEvaluate_KeywordMatchOnTitle(t *testing.T) {
	item := Item{Title: "Minor delay reported at terminal"}
	res := Evaluate("src-1", types.TierGlobal, item, []types.SuppressionRule{
		rule("r1", types.FieldTitle, types.MatchKeyword, "minor delay"),
	}, nil)

	if !res.IsSuppressed {
		t.Fatal("expected suppression on keyword match")
	}
	if res.PrimaryRuleID != "r1" {
		t.Errorf("expected primary rule r1, got %s", res.PrimaryRuleID)
	}
}

func TestEvaluate_DisabledRuleNeverMatches(t *testing.T) {
	item := Item{Title: "Minor delay reported"}
	r := rule("r1", types.FieldTitle, types.MatchKeyword, "minor delay")
	r.Enabled = false
	res := Evaluate("src-1", types.TierGlobal, item, []types.SuppressionRule{r}, nil)
	if res.IsSuppressed {
		t.Error("disabled rule must never match")
	}
}

func TestEvaluate_GlobalRulesBeforeSourceRules_FirstMatchIsPrimary(t *testing.T) {
	item := Item{Title: "Port closed due to strike"}
	global := []types.SuppressionRule{rule("global-1", types.FieldTitle, types.MatchKeyword, "strike")}
	source := []types.SuppressionRule{rule("source-1", types.FieldTitle, types.MatchKeyword, "closed")}

	res := Evaluate("src-1", types.TierGlobal, item, global, source)
	if res.PrimaryRuleID != "global-1" {
		t.Errorf("expected global rule to be evaluated first, got primary %s", res.PrimaryRuleID)
	}
	if len(res.MatchedRuleIDs) != 2 {
		t.Errorf("expected both rules to match, got %v", res.MatchedRuleIDs)
	}
}

func TestEvaluate_InvalidRegexNeverMatchesAndDoesNotPanic(t *testing.T) {
	item := Item{Title: "anything"}
	r := rule("r1", types.FieldTitle, types.MatchRegex, "[invalid(")
	res := Evaluate("src-1", types.TierGlobal, item, []types.SuppressionRule{r}, nil)
	if res.IsSuppressed {
		t.Error("invalid regex must never match")
	}
}

func TestEvaluate_AnyFieldFallsBackInOrder(t *testing.T) {
	item := Item{Summary: "backup plan activated"}
	r := rule("r1", types.FieldAny, types.MatchKeyword, "backup plan")
	res := Evaluate("src-1", types.TierGlobal, item, []types.SuppressionRule{r}, nil)
	if !res.IsSuppressed {
		t.Error("expected any-field match to fall through to summary when title is empty")
	}
}

func TestEvaluate_SourceIDFieldMatchesAgainstPassedSourceID(t *testing.T) {
	item := Item{Title: "irrelevant"}
	r := rule("r1", types.FieldSourceID, types.MatchExact, "noisy-feed")
	res := Evaluate("noisy-feed", types.TierGlobal, item, []types.SuppressionRule{r}, nil)
	if !res.IsSuppressed {
		t.Error("expected source_id field to match against the passed sourceID")
	}
}

func TestEvaluate_ReasonCodeDefaultsToRuleID(t *testing.T) {
	item := Item{Title: "strike action announced"}
	r := rule("r1", types.FieldTitle, types.MatchKeyword, "strike")
	res := Evaluate("src-1", types.TierGlobal, item, []types.SuppressionRule{r}, nil)
	if res.PrimaryReasonCode != "r1" {
		t.Errorf("expected default reason code to equal rule id, got %s", res.PrimaryReasonCode)
	}
}
