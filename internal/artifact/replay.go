package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hardstop/hardstop/pkg/types"
)

// ReplayResult is the outcome of replaying one incident: whether its stored
// hash still matches a fresh recomputation, and whether the RunRecord that
// produced it was built under the current config.
type ReplayResult struct {
	IncidentPath  string
	RunRecordPath string

	HashMatches       bool
	ConfigHashMatches bool

	// Mismatches holds every detected discrepancy as a human-readable
	// message. In strict mode the caller should treat these as hard
	// errors; in best-effort mode, as warnings.
	Mismatches []string
}

// Replay locates the latest IncidentEvidence artifact for alertID (filtered
// by correlationKey when non-empty), recomputes its hash, finds the
// RunRecord whose output_refs reference it, and compares currentConfigHash
// against that record's stored config_hash.
func Replay(incidentsDir, runsDir, alertID, correlationKey, currentConfigHash string) (ReplayResult, error) {
	ev, incidentPath, err := latestIncidentEvidence(incidentsDir, alertID, correlationKey)
	if err != nil {
		return ReplayResult{}, err
	}

	result := ReplayResult{IncidentPath: incidentPath}

	recomputed, err := Hash(ev)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("recomputing incident hash: %w", err)
	}
	result.HashMatches = HashesEqual(recomputed, ev.ArtifactHash)
	if !result.HashMatches {
		result.Mismatches = append(result.Mismatches, fmt.Sprintf(
			"incident %s: stored artifact_hash %s does not match recomputed hash %s",
			incidentPath, ev.ArtifactHash, recomputed))
	}

	rec, runRecordPath, err := findRunRecordReferencing(runsDir, ev.ArtifactHash)
	if err != nil {
		return ReplayResult{}, err
	}
	result.RunRecordPath = runRecordPath

	result.ConfigHashMatches = rec.ConfigHash == currentConfigHash
	if !result.ConfigHashMatches {
		result.Mismatches = append(result.Mismatches, fmt.Sprintf(
			"run record %s: config_hash %s does not match current config_hash %s",
			runRecordPath, rec.ConfigHash, currentConfigHash))
	}

	return result, nil
}

// latestIncidentEvidence globs incidentsDir for files belonging to
// alertID, optionally narrowed to correlationKey's slug, and returns the
// one with the most recent generated_at_utc.
func latestIncidentEvidence(incidentsDir, alertID, correlationKey string) (types.IncidentEvidence, string, error) {
	pattern := filepath.Join(incidentsDir, alertID+"__*.json")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return types.IncidentEvidence{}, "", fmt.Errorf("globbing incidents: %w", err)
	}

	var slugFilter string
	if correlationKey != "" {
		slugFilter = sanitizeSlug(correlationKey)
	}

	var best types.IncidentEvidence
	var bestPath string
	for _, path := range matches {
		if slugFilter != "" && !hasSlugSuffix(path, slugFilter) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return types.IncidentEvidence{}, "", fmt.Errorf("reading %s: %w", path, err)
		}
		var ev types.IncidentEvidence
		if err := json.Unmarshal(data, &ev); err != nil {
			return types.IncidentEvidence{}, "", fmt.Errorf("parsing %s: %w", path, err)
		}
		if bestPath == "" || ev.GeneratedAtUTC > best.GeneratedAtUTC {
			best = ev
			bestPath = path
		}
	}

	if bestPath == "" {
		return types.IncidentEvidence{}, "", fmt.Errorf("no incident evidence found for alert %q", alertID)
	}
	return best, bestPath, nil
}

func hasSlugSuffix(path, slug string) bool {
	base := filepath.Base(path)
	want := "__" + slug + ".json"
	if len(base) < len(want) {
		return false
	}
	return base[len(base)-len(want):] == want
}

// findRunRecordReferencing scans runsDir's RunRecord files for the one
// whose output_refs names artifactHash, returning the most recently
// started one if more than one matches.
func findRunRecordReferencing(runsDir, artifactHash string) (types.RunRecord, string, error) {
	matches, err := filepath.Glob(filepath.Join(runsDir, "*.json"))
	if err != nil {
		return types.RunRecord{}, "", fmt.Errorf("globbing run records: %w", err)
	}
	sort.Strings(matches)

	var best types.RunRecord
	var bestPath string
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return types.RunRecord{}, "", fmt.Errorf("reading %s: %w", path, err)
		}
		var rec types.RunRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return types.RunRecord{}, "", fmt.Errorf("parsing %s: %w", path, err)
		}
		if !referencesArtifact(rec, artifactHash) {
			continue
		}
		if bestPath == "" || rec.StartedAt > best.StartedAt {
			best = rec
			bestPath = path
		}
	}

	if bestPath == "" {
		return types.RunRecord{}, "", fmt.Errorf("no run record references artifact hash %s", artifactHash)
	}
	return best, bestPath, nil
}

func referencesArtifact(rec types.RunRecord, hash string) bool {
	for _, ref := range rec.OutputRefs {
		if ref.Hash == hash {
			return true
		}
	}
	return false
}
