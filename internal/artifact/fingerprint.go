package artifact

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigFingerprint hashes the three independent config documents together
// as one unit: {runtime, sources, suppression}, each loaded best-effort —
// a missing file contributes an empty object rather than failing the
// fingerprint, since not every deployment carries every file (e.g. a
// suppression-free operator has no suppression.yaml at all).
func ConfigFingerprint(runtimePath, sourcesPath, suppressionPath string) (string, error) {
	runtime, err := loadYAMLBestEffort(runtimePath)
	if err != nil {
		return "", fmt.Errorf("loading runtime config for fingerprint: %w", err)
	}
	sources, err := loadYAMLBestEffort(sourcesPath)
	if err != nil {
		return "", fmt.Errorf("loading sources config for fingerprint: %w", err)
	}
	suppression, err := loadYAMLBestEffort(suppressionPath)
	if err != nil {
		return "", fmt.Errorf("loading suppression config for fingerprint: %w", err)
	}

	bundle := map[string]any{
		"runtime":     runtime,
		"sources":     sources,
		"suppression": suppression,
	}
	return Hash(bundle)
}

// loadYAMLBestEffort reads and parses a YAML file into a generic value,
// returning an empty object when the file doesn't exist. Any other read or
// parse error is returned, since a present-but-corrupt config file is a
// real config error, not an absent-file situation.
func loadYAMLBestEffort(path string) (any, error) {
	if path == "" {
		return map[string]any{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if v == nil {
		v = map[string]any{}
	}
	return normalizeYAMLValue(v), nil
}

// normalizeYAMLValue recursively converts yaml.v3's map[string]interface{}
// (actually map[interface{}]interface{} in v2, but v3 already decodes
// mapping nodes to map[string]interface{} for string keys) into a form
// encoding/json can marshal deterministically; nested maps are walked so
// canonicalization sees plain map[string]any throughout.
func normalizeYAMLValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[k] = normalizeYAMLValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = normalizeYAMLValue(vv)
		}
		return out
	default:
		return val
	}
}
