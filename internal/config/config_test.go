package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hardstop/hardstop/pkg/types"
)

func TestDefaultRuntimeConfig_FailsValidationWithoutOperatorID(t *testing.T) {
	cfg := DefaultRuntimeConfig()
	cfg.Database.DSN = "postgres://localhost/hardstop"
	if err := ValidateRuntimeConfig(cfg); err == nil {
		t.Fatal("expected error for missing operator_id")
	}
}

func TestValidateRuntimeConfig_BestEffortRequiresSeed(t *testing.T) {
	cfg := DefaultRuntimeConfig()
	cfg.OperatorID = "ops-1"
	cfg.Database.DSN = "postgres://localhost/hardstop"
	cfg.Mode = types.ModeBestEffort

	if err := ValidateRuntimeConfig(cfg); err == nil {
		t.Fatal("expected error for best-effort mode without rng_seed")
	}

	cfg.RNGSeed = 1234
	if err := ValidateRuntimeConfig(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadRuntimeConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runtime.yaml")
	content := "operator_id: ops-1\nmode: strict\ndatabase:\n  dsn: postgres://localhost/hardstop\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	cfg, err := LoadRuntimeConfigFromFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OperatorID != "ops-1" {
		t.Errorf("wrong operator_id: %s", cfg.OperatorID)
	}
	// defaults not present in the file should survive unmarshal
	if cfg.AlertMergeWindowHours != 168 {
		t.Errorf("expected default alert_merge_window_hours to survive, got %d", cfg.AlertMergeWindowHours)
	}
	if err := ValidateRuntimeConfig(cfg); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidateSourcesConfig_RejectsDuplicateID(t *testing.T) {
	cfg := DefaultSourcesConfig()
	cfg.Sources = []types.SourceConfig{
		{SourceID: "a", Type: types.AdapterRSS, Tier: types.TierGlobal, URL: "https://example.com/a"},
		{SourceID: "a", Type: types.AdapterRSS, Tier: types.TierGlobal, URL: "https://example.com/b"},
	}
	if err := ValidateSourcesConfig(cfg); err == nil {
		t.Fatal("expected error for duplicate source_id")
	}
}

func TestValidateSourcesConfig_RejectsUnknownTier(t *testing.T) {
	cfg := DefaultSourcesConfig()
	cfg.Sources = []types.SourceConfig{
		{SourceID: "a", Type: types.AdapterRSS, Tier: types.SourceTier("made_up"), URL: "https://example.com/a"},
	}
	if err := ValidateSourcesConfig(cfg); err == nil {
		t.Fatal("expected error for tier with no tier_defaults entry")
	}
}

func TestResolved_OverridesLayerOntoTierDefaults(t *testing.T) {
	cfg := DefaultSourcesConfig()
	override := 99
	src := types.SourceConfig{
		SourceID: "a", Type: types.AdapterRSS, Tier: types.TierLocal,
		TrustTier: &override,
	}

	resolved := Resolved(cfg, src)
	if resolved.TrustTier != 99 {
		t.Errorf("expected override to apply, got trust_tier=%d", resolved.TrustTier)
	}
	localDefaults := cfg.TierDefaults[types.TierLocal]
	if resolved.PerHostMinSeconds != localDefaults.PerHostMinSeconds {
		t.Errorf("expected non-overridden field to keep tier default, got %f", resolved.PerHostMinSeconds)
	}
}

func TestValidateSuppressionConfig_RejectsBadRegex(t *testing.T) {
	cfg := DefaultSuppressionConfig()
	cfg.Rules = []types.SuppressionRule{
		{RuleID: "r1", Field: types.FieldTitle, Match: types.MatchRegex, Pattern: "(unclosed"},
	}
	if err := ValidateSuppressionConfig(cfg); err == nil {
		t.Fatal("expected error for invalid regex pattern")
	}
}

func TestValidateSuppressionConfig_AcceptsKeywordRule(t *testing.T) {
	cfg := DefaultSuppressionConfig()
	cfg.Rules = []types.SuppressionRule{
		{RuleID: "r1", Field: types.FieldAny, Match: types.MatchKeyword, Pattern: "test advisory"},
	}
	if err := ValidateSuppressionConfig(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
