// Package config loads and validates Hardstop's three independent
// configuration documents: runtime, sources, and suppression. Each follows
// the same DefaultX/LoadXFromFile/Validate shape, loaded from YAML with no
// environment-variable override layer (Hardstop runs as a scheduled local
// job, not a fleet agent with per-host env injection).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hardstop/hardstop/pkg/types"
)

// DefaultRuntimeConfig returns a RuntimeConfig with sensible defaults,
// matching the spec's documented defaults (§1 Design Notes): strict mode,
// a 7-day (168h) alert merge window, shipment link cap of 25.
func DefaultRuntimeConfig() *types.RuntimeConfig {
	return &types.RuntimeConfig{
		Mode:                  types.ModeStrict,
		AlertMergeWindowHours: 168,
		ShipmentLinkMax:       25,
		Database: types.DatabaseConfig{
			MaxConns:        10,
			ConnectTimeoutS: 10,
		},
		Cache: types.CacheConfig{
			Enabled:    false,
			TTLSeconds: 5,
		},
		Output: types.OutputConfig{
			Dir: "output",
		},
	}
}

// LoadRuntimeConfigFromFile loads runtime.yaml, applying defaults first so
// an omitted field keeps its default rather than zeroing out.
func LoadRuntimeConfigFromFile(path string) (*types.RuntimeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading runtime config: %w", err)
	}

	cfg := DefaultRuntimeConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing runtime config: %w", err)
	}
	return cfg, nil
}

// ValidateRuntimeConfig checks that required runtime configuration is
// present and internally consistent.
func ValidateRuntimeConfig(c *types.RuntimeConfig) error {
	if c.OperatorID == "" {
		return fmt.Errorf("operator_id is required")
	}
	if c.Mode != types.ModeStrict && c.Mode != types.ModeBestEffort {
		return fmt.Errorf("mode must be %q or %q, got %q", types.ModeStrict, types.ModeBestEffort, c.Mode)
	}
	if c.Mode == types.ModeBestEffort && c.RNGSeed == 0 {
		return fmt.Errorf("rng_seed is required in best-effort mode")
	}
	if c.AlertMergeWindowHours <= 0 {
		return fmt.Errorf("alert_merge_window_hours must be positive")
	}
	if c.ShipmentLinkMax <= 0 {
		return fmt.Errorf("shipment_link_max must be positive")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		return fmt.Errorf("cache.addr is required when cache.enabled is true")
	}
	return nil
}
