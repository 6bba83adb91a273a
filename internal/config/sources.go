package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hardstop/hardstop/pkg/types"
)

// DefaultSourcesConfig returns a SourcesConfig with the spec's documented
// per-tier defaults (§4.4): global sources are the most trusted and fetched
// least often; local sources are the least trusted and fetched most often.
func DefaultSourcesConfig() *types.SourcesConfig {
	return &types.SourcesConfig{
		TierDefaults: map[types.SourceTier]types.TierDefaults{
			types.TierGlobal: {
				TrustTier: 3, ClassificationFloor: 0, WeightingBias: 1,
				PerHostMinSeconds: 300,
			},
			types.TierRegional: {
				TrustTier: 2, ClassificationFloor: 0, WeightingBias: 0,
				PerHostMinSeconds: 120,
			},
			types.TierLocal: {
				TrustTier: 1, ClassificationFloor: 0, WeightingBias: 0,
				PerHostMinSeconds: 60,
			},
			types.TierUnknown: {
				TrustTier: 0, ClassificationFloor: 0, WeightingBias: -1,
				PerHostMinSeconds: 60,
			},
		},
	}
}

// LoadSourcesConfigFromFile loads sources.yaml.
func LoadSourcesConfigFromFile(path string) (*types.SourcesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sources config: %w", err)
	}

	cfg := DefaultSourcesConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing sources config: %w", err)
	}
	return cfg, nil
}

// ValidateSourcesConfig checks every configured source has a unique id, a
// known adapter type, and a known tier with defaults on file.
func ValidateSourcesConfig(c *types.SourcesConfig) error {
	seen := make(map[string]bool, len(c.Sources))
	for _, s := range c.Sources {
		if s.SourceID == "" {
			return fmt.Errorf("source with empty source_id")
		}
		if seen[s.SourceID] {
			return fmt.Errorf("duplicate source_id %q", s.SourceID)
		}
		seen[s.SourceID] = true

		switch s.Type {
		case types.AdapterRSS, types.AdapterGovAlertJSON, types.AdapterFEMA:
		default:
			return fmt.Errorf("source %q: unknown adapter type %q", s.SourceID, s.Type)
		}

		if _, ok := c.TierDefaults[s.Tier]; !ok {
			return fmt.Errorf("source %q: tier %q has no tier_defaults entry", s.SourceID, s.Tier)
		}
		if s.URL == "" {
			return fmt.Errorf("source %q: url is required", s.SourceID)
		}
	}
	return nil
}

// Resolved merges a SourceConfig's overrides onto its tier's defaults,
// yielding the effective trust tier, classification floor, weighting bias,
// and per-host fetch spacing for this source.
func Resolved(c *types.SourcesConfig, s types.SourceConfig) types.TierDefaults {
	d := c.TierDefaults[s.Tier]
	if s.TrustTier != nil {
		d.TrustTier = *s.TrustTier
	}
	if s.ClassificationFloor != nil {
		d.ClassificationFloor = *s.ClassificationFloor
	}
	if s.WeightingBias != nil {
		d.WeightingBias = *s.WeightingBias
	}
	if s.PerHostMinSeconds != nil {
		d.PerHostMinSeconds = *s.PerHostMinSeconds
	}
	return d
}
