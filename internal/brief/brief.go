// Package brief assembles the daily-brief read model: a snapshot of every
// alert touched within a window, grouped and counted the way an operator
// scans it, plus the suppression summary for the same window. Rendering
// that model into markdown or a table is a CLI concern and lives outside
// this module.
package brief

import (
	"context"
	"fmt"
	"time"

	"github.com/hardstop/hardstop/internal/store"
	"github.com/hardstop/hardstop/pkg/types"
)

const readModelVersion = "brief.v1"

// Store is the subset of internal/store.Store the brief builder needs.
type Store interface {
	ListAlertsSince(ctx context.Context, sinceISO string) ([]types.Alert, error)
	CountSuppressedSince(ctx context.Context, sinceISO string) (total int, byRule, bySource []SuppressionCount, err error)
}

// SuppressionCount is a (key, count) breakdown row.
type SuppressionCount = store.SuppressionCount

// Window is the half-open time range a brief covers.
type Window struct {
	SinceUTC string `json:"since_utc"`
	UntilUTC string `json:"until_utc"`
}

// Counts tallies the window's alerts two independent ways: by how they
// moved (New vs Updated) and by classification tier
// (impactful/relevant/interesting).
type Counts struct {
	New        int `json:"new"`
	Updated    int `json:"updated"`
	Impactful  int `json:"impactful"`
	Relevant   int `json:"relevant"`
	Interesting int `json:"interesting"`
}

// SuppressedBlock is the window's suppression summary.
type SuppressedBlock struct {
	Count   int                `json:"count"`
	ByRule  []SuppressionCount `json:"by_rule"`
	BySource []SuppressionCount `json:"by_source"`
}

// Model is the brief.v1 read model: a plain data snapshot, not a rendering.
type Model struct {
	ReadModelVersion string           `json:"read_model_version"`
	Window           Window           `json:"window"`
	Counts           Counts           `json:"counts"`
	TierCounts       map[string]int   `json:"tier_counts"`
	Top              []types.Alert    `json:"top"`
	Created          []types.Alert    `json:"created"`
	Updated          []types.Alert    `json:"updated"`
	Suppressed       SuppressedBlock  `json:"suppressed"`

	// SuppressedLegacy mirrors Suppressed.Count under the field name an
	// older consumer of this read model expects, kept for one release so a
	// reader depending on either name keeps working.
	SuppressedLegacy int `json:"suppressed_legacy"`
}

const topN = 10

// Build assembles a brief.v1 Model for the window [now-windowHours, now).
func Build(ctx context.Context, store Store, windowHours int, nowUTC time.Time) (Model, error) {
	since := nowUTC.Add(-time.Duration(windowHours) * time.Hour)
	sinceISO := since.UTC().Format(time.RFC3339)
	untilISO := nowUTC.UTC().Format(time.RFC3339)

	alerts, err := store.ListAlertsSince(ctx, sinceISO)
	if err != nil {
		return Model{}, fmt.Errorf("listing alerts for brief: %w", err)
	}

	m := Model{
		ReadModelVersion: readModelVersion,
		Window:           Window{SinceUTC: sinceISO, UntilUTC: untilISO},
		TierCounts:       map[string]int{"impactful": 0, "relevant": 0, "interesting": 0},
	}

	for _, a := range alerts {
		switch a.Classification {
		case types.ClassificationImpactful:
			m.Counts.Impactful++
			m.TierCounts["impactful"]++
		case types.ClassificationRelevant:
			m.Counts.Relevant++
			m.TierCounts["relevant"]++
		default:
			m.Counts.Interesting++
			m.TierCounts["interesting"]++
		}

		switch a.Status {
		case types.AlertStatusOpen:
			m.Counts.New++
			m.Created = append(m.Created, a)
		case types.AlertStatusUpdated:
			m.Counts.Updated++
			m.Updated = append(m.Updated, a)
		}
	}

	// alerts is already sorted by the query (classification DESC,
	// impact_score DESC, update_count DESC, last_seen_utc DESC); top[] is
	// just its head.
	if len(alerts) > topN {
		m.Top = alerts[:topN]
	} else {
		m.Top = alerts
	}

	total, byRule, bySource, err := store.CountSuppressedSince(ctx, sinceISO)
	if err != nil {
		return Model{}, fmt.Errorf("counting suppressed items for brief: %w", err)
	}
	m.Suppressed = SuppressedBlock{Count: total, ByRule: byRule, BySource: bySource}
	m.SuppressedLegacy = total

	return m, nil
}
