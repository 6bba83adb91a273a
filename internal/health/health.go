// Package health computes per-source health scores from recent SourceRun
// rows and exposes an optional Redis-backed read cache in front of that
// computation.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/hardstop/hardstop/pkg/types"
)

// BudgetState is the bucketed health state a score maps to.
type BudgetState string

const (
	BudgetHealthy BudgetState = "HEALTHY"
	BudgetWatch   BudgetState = "WATCH"
	BudgetBlocked BudgetState = "BLOCKED"
)

// Metrics is the derived health snapshot for one source, built from its N
// most recent FETCH runs plus its single most recent INGEST run.
type Metrics struct {
	LastSuccessUTC      string
	LastFailureUTC      string
	SuccessRate         float64
	LastStatusCode      *int
	LastError           string
	LastItemsFetched    int
	LastItemsNew        int
	SuppressionRatio    *float64
	StaleHours          *float64
	ConsecutiveFailures int
	AvgBytesDownloaded  float64
	DedupeRate          *float64
	AvgDurationSeconds  *float64
}

// Score is the scorer's output: the bounded score, its bucket, and the
// ordered list of deduction reasons that produced it.
type Score struct {
	Value       int
	BudgetState BudgetState
	Factors     []string
}

// Store is the subset of internal/store.Store the health package needs.
type Store interface {
	RecentRuns(ctx context.Context, sourceID string, phase types.RunPhase, limit int) ([]types.SourceRun, error)
	ListSourceIDs(ctx context.Context) ([]string, error)
}

// SourceHealth bundles a source's id with its computed metrics and score.
type SourceHealth struct {
	SourceID string
	Metrics  Metrics
	Score    Score
}

const defaultLookback = 10

// ComputeMetrics derives a Metrics snapshot from a source's recent FETCH
// runs (newest first) and its single most recent INGEST run, ported from
// `get_source_health`'s aggregation loop.
func ComputeMetrics(fetchRuns []types.SourceRun, latestIngest *types.SourceRun, nowUTC time.Time) Metrics {
	var m Metrics

	if len(fetchRuns) == 0 {
		m.SuccessRate = 0
	} else {
		successful := 0
		for _, r := range fetchRuns {
			if r.Status == types.RunStatusSuccess {
				successful++
			}
		}
		m.SuccessRate = float64(successful) / float64(len(fetchRuns))
	}

	var durations []float64
	var bytesDownloaded []float64
	var dedupeRates []float64
	streakBroken := false

	for _, r := range fetchRuns {
		if r.DurationSeconds > 0 {
			durations = append(durations, r.DurationSeconds)
		}
		bytesDownloaded = append(bytesDownloaded, float64(r.BytesDownloaded))
		if r.ItemsFetched > 0 {
			dropped := r.ItemsFetched - r.ItemsNew
			if dropped < 0 {
				dropped = 0
			}
			dedupeRates = append(dedupeRates, float64(dropped)/float64(r.ItemsFetched))
		}

		if r.Status == types.RunStatusSuccess && m.LastSuccessUTC == "" {
			m.LastSuccessUTC = r.RunAtUTC
			if m.LastStatusCode == nil {
				m.LastStatusCode = r.StatusCode
			}
			if m.LastItemsFetched == 0 {
				m.LastItemsFetched = r.ItemsFetched
			}
			if m.LastItemsNew == 0 {
				m.LastItemsNew = r.ItemsNew
			}
		} else if r.Status == types.RunStatusFailure && m.LastFailureUTC == "" {
			m.LastFailureUTC = r.RunAtUTC
			if m.LastStatusCode == nil {
				m.LastStatusCode = r.StatusCode
			}
			if m.LastError == "" {
				m.LastError = r.Error
			}
		}

		if !streakBroken {
			if r.Status == types.RunStatusFailure {
				m.ConsecutiveFailures++
			} else {
				streakBroken = true
			}
		}
	}

	if len(fetchRuns) > 0 {
		mostRecent := fetchRuns[0]
		if m.LastStatusCode == nil {
			m.LastStatusCode = mostRecent.StatusCode
		}
		if m.LastError == "" {
			m.LastError = mostRecent.Error
		}
		if m.LastItemsFetched == 0 {
			m.LastItemsFetched = mostRecent.ItemsFetched
		}
		if m.LastItemsNew == 0 {
			m.LastItemsNew = mostRecent.ItemsNew
		}
	}

	if len(bytesDownloaded) > 0 {
		m.AvgBytesDownloaded = avg(bytesDownloaded)
	}
	if len(dedupeRates) > 0 {
		r := avg(dedupeRates)
		m.DedupeRate = &r
	}
	if len(durations) > 0 {
		d := avg(durations)
		m.AvgDurationSeconds = &d
	}

	if latestIngest != nil && latestIngest.ItemsProcessed > 0 {
		ratio := float64(latestIngest.ItemsSuppressed) / float64(latestIngest.ItemsProcessed)
		m.SuppressionRatio = &ratio
	}

	if t, ok := parseRFC3339(m.LastSuccessUTC); ok {
		hours := nowUTC.Sub(t).Hours()
		m.StaleHours = &hours
	}

	return m
}

// ComputeScore runs the deterministic 100-point deduction ladder, a direct
// port of `compute_health_score`.
func ComputeScore(m Metrics, staleThresholdHours int) Score {
	score := 100
	var factors []string
	deduct := func(amount int, reason string) {
		if amount <= 0 {
			return
		}
		score -= amount
		factors = append(factors, reason)
	}

	switch {
	case m.SuccessRate < 0.25:
		deduct(50, "success_rate<25%")
	case m.SuccessRate < 0.5:
		deduct(35, "success_rate<50%")
	case m.SuccessRate < 0.7:
		deduct(20, "success_rate<70%")
	case m.SuccessRate < 0.9:
		deduct(10, "success_rate<90%")
	}

	if m.StaleHours == nil {
		deduct(15, "no_success_history")
	} else {
		threshold := float64(staleThresholdHours)
		switch {
		case *m.StaleHours > threshold:
			deduct(25, "stale_over_threshold")
		case *m.StaleHours > threshold/2:
			deduct(10, "stale_trending")
		}
	}

	switch {
	case m.ConsecutiveFailures >= 3:
		deduct(25, "failure_streak>=3")
	case m.ConsecutiveFailures == 2:
		deduct(10, "failure_streak_two")
	}

	if m.LastStatusCode != nil {
		switch {
		case *m.LastStatusCode >= 500:
			deduct(20, "last_status_5xx")
		case *m.LastStatusCode >= 400:
			deduct(10, "last_status_4xx")
		}
	}

	if m.LastError != "" {
		deduct(10, "recent_error")
	}

	switch {
	case m.AvgBytesDownloaded == 0:
		deduct(5, "zero_bytes")
	case m.AvgBytesDownloaded < 500:
		deduct(3, "tiny_payloads")
	}

	if m.DedupeRate != nil && *m.DedupeRate > 0.9 {
		deduct(5, "dedupe>90%")
	}

	if m.SuppressionRatio != nil {
		switch {
		case *m.SuppressionRatio > 0.85:
			deduct(10, "suppression>85%")
		case *m.SuppressionRatio > 0.6:
			deduct(5, "suppression>60%")
		}
	}

	if m.AvgDurationSeconds != nil && *m.AvgDurationSeconds > 15 {
		deduct(5, "slow_fetch>15s")
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	var bucket BudgetState
	switch {
	case score >= 80:
		bucket = BudgetHealthy
	case score >= 50:
		bucket = BudgetWatch
	default:
		bucket = BudgetBlocked
	}

	return Score{Value: score, BudgetState: bucket, Factors: factors}
}

// GetSourceHealth loads recent runs for one source and returns its computed
// metrics and score.
func GetSourceHealth(ctx context.Context, store Store, sourceID string, lookbackN, staleThresholdHours int, nowUTC time.Time) (SourceHealth, error) {
	if lookbackN <= 0 {
		lookbackN = defaultLookback
	}
	fetchRuns, err := store.RecentRuns(ctx, sourceID, types.PhaseFetch, lookbackN)
	if err != nil {
		return SourceHealth{}, fmt.Errorf("loading fetch runs for %s: %w", sourceID, err)
	}
	ingestRuns, err := store.RecentRuns(ctx, sourceID, types.PhaseIngest, 1)
	if err != nil {
		return SourceHealth{}, fmt.Errorf("loading ingest runs for %s: %w", sourceID, err)
	}
	var latestIngest *types.SourceRun
	if len(ingestRuns) > 0 {
		latestIngest = &ingestRuns[0]
	}

	m := ComputeMetrics(fetchRuns, latestIngest, nowUTC)
	return SourceHealth{SourceID: sourceID, Metrics: m, Score: ComputeScore(m, staleThresholdHours)}, nil
}

// GetAllSourceHealth returns health for every source known to the store
// (or, when sourceIDs is non-nil, only those). Results follow the order of
// sourceIDs; when it is nil they follow ListSourceIDs' order.
func GetAllSourceHealth(ctx context.Context, store Store, sourceIDs []string, lookbackN, staleThresholdHours int, nowUTC time.Time) ([]SourceHealth, error) {
	ids := sourceIDs
	if ids == nil {
		var err error
		ids, err = store.ListSourceIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing sources: %w", err)
		}
	}

	out := make([]SourceHealth, 0, len(ids))
	for _, id := range ids {
		h, err := GetSourceHealth(ctx, store, id, lookbackN, staleThresholdHours, nowUTC)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

func avg(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func parseRFC3339(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
