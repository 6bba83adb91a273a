package health

import (
	"context"
	"testing"
	"time"

	"github.com/hardstop/hardstop/pkg/types"
)

func intPtr(n int) *int { return &n }

func TestComputeScore_AllHealthyDefaults(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	lastSuccess := now.Add(-time.Hour)
	m := Metrics{
		SuccessRate:        1.0,
		LastSuccessUTC:     lastSuccess.Format(time.RFC3339),
		StaleHours:         floatPtr(1),
		AvgBytesDownloaded: 5000,
	}
	s := ComputeScore(m, 48)
	if s.Value != 100 {
		t.Errorf("expected score 100, got %d (%v)", s.Value, s.Factors)
	}
	if s.BudgetState != BudgetHealthy {
		t.Errorf("expected HEALTHY, got %v", s.BudgetState)
	}
}

func TestComputeScore_LowSuccessRateDeducts50(t *testing.T) {
	m := Metrics{SuccessRate: 0.1, StaleHours: floatPtr(1), AvgBytesDownloaded: 5000}
	s := ComputeScore(m, 48)
	if s.Value != 50 {
		t.Errorf("expected score 50 (100-50), got %d", s.Value)
	}
}

func TestComputeScore_NoSuccessHistoryDeducts15(t *testing.T) {
	m := Metrics{SuccessRate: 0, StaleHours: nil, AvgBytesDownloaded: 5000}
	s := ComputeScore(m, 48)
	if s.Value != 100-50-15 {
		t.Errorf("expected score %d, got %d (%v)", 100-50-15, s.Value, s.Factors)
	}
}

func TestComputeScore_ClampsToZero(t *testing.T) {
	sc := intPtr(503)
	m := Metrics{
		SuccessRate:         0,
		StaleHours:          floatPtr(1000),
		ConsecutiveFailures: 5,
		LastStatusCode:      sc,
		LastError:           "timeout",
		AvgBytesDownloaded:  0,
		DedupeRate:          floatPtr(0.95),
		SuppressionRatio:    floatPtr(0.9),
		AvgDurationSeconds:  floatPtr(20),
	}
	s := ComputeScore(m, 48)
	if s.Value != 0 {
		t.Errorf("expected clamp to 0, got %d", s.Value)
	}
	if s.BudgetState != BudgetBlocked {
		t.Errorf("expected BLOCKED, got %v", s.BudgetState)
	}
}

func TestComputeScore_BucketBoundaries(t *testing.T) {
	healthy := ComputeScore(Metrics{SuccessRate: 1, StaleHours: floatPtr(1), AvgBytesDownloaded: 5000}, 48)
	if healthy.BudgetState != BudgetHealthy {
		t.Errorf("expected HEALTHY at score %d", healthy.Value)
	}

	watch := ComputeScore(Metrics{SuccessRate: 0.4, StaleHours: floatPtr(1), AvgBytesDownloaded: 5000}, 48)
	if watch.BudgetState != BudgetWatch {
		t.Errorf("expected WATCH, got %v (score %d)", watch.BudgetState, watch.Value)
	}
}

func TestComputeMetrics_ConsecutiveFailuresStopsAtFirstSuccess(t *testing.T) {
	runs := []types.SourceRun{
		{Status: types.RunStatusFailure, RunAtUTC: "2026-07-31T10:00:00Z"},
		{Status: types.RunStatusFailure, RunAtUTC: "2026-07-31T09:00:00Z"},
		{Status: types.RunStatusSuccess, RunAtUTC: "2026-07-31T08:00:00Z"},
		{Status: types.RunStatusFailure, RunAtUTC: "2026-07-31T07:00:00Z"},
	}
	m := ComputeMetrics(runs, nil, time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC))
	if m.ConsecutiveFailures != 2 {
		t.Errorf("expected leading failure streak of 2, got %d", m.ConsecutiveFailures)
	}
	if m.LastSuccessUTC != "2026-07-31T08:00:00Z" {
		t.Errorf("expected last success at 08:00, got %q", m.LastSuccessUTC)
	}
}

func TestComputeMetrics_SuppressionRatioFromLatestIngest(t *testing.T) {
	ingest := types.SourceRun{ItemsProcessed: 10, ItemsSuppressed: 7}
	m := ComputeMetrics(nil, &ingest, time.Now())
	if m.SuppressionRatio == nil || *m.SuppressionRatio != 0.7 {
		t.Errorf("expected suppression ratio 0.7, got %v", m.SuppressionRatio)
	}
}

type fakeHealthStore struct {
	fetchRuns  []types.SourceRun
	ingestRuns []types.SourceRun
	sourceIDs  []string
}

func (f *fakeHealthStore) RecentRuns(ctx context.Context, sourceID string, phase types.RunPhase, limit int) ([]types.SourceRun, error) {
	if phase == types.PhaseFetch {
		return f.fetchRuns, nil
	}
	return f.ingestRuns, nil
}

func (f *fakeHealthStore) ListSourceIDs(ctx context.Context) ([]string, error) {
	return f.sourceIDs, nil
}

func TestGetSourceHealth_EndToEnd(t *testing.T) {
	store := &fakeHealthStore{
		fetchRuns: []types.SourceRun{
			{Status: types.RunStatusSuccess, RunAtUTC: "2026-07-31T11:00:00Z", BytesDownloaded: 2000, ItemsFetched: 10, ItemsNew: 8},
		},
	}
	h, err := GetSourceHealth(context.Background(), store, "src-a", 10, 48, time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Score.BudgetState != BudgetHealthy {
		t.Errorf("expected HEALTHY, got %v (%v)", h.Score.BudgetState, h.Score.Factors)
	}
}

type fakeJSONCache struct {
	store map[string]string
	hits  int
	misses int
}

func (c *fakeJSONCache) GetJSON(ctx context.Context, key string, v any) (bool, error) {
	_, ok := c.store[key]
	if !ok {
		c.misses++
		return false, nil
	}
	c.hits++
	return true, nil
}

func (c *fakeJSONCache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if c.store == nil {
		c.store = map[string]string{}
	}
	c.store[key] = "cached"
	return nil
}

func TestCachedProvider_MissThenHit(t *testing.T) {
	store := &fakeHealthStore{fetchRuns: []types.SourceRun{{Status: types.RunStatusSuccess, RunAtUTC: "2026-07-31T11:00:00Z"}}}
	cache := &fakeJSONCache{}
	p := &CachedProvider{Store: store, Cache: cache}

	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	if _, err := p.GetSourceHealth(context.Background(), "src-a", 10, 48, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cache.misses != 1 {
		t.Errorf("expected first call to miss, got %d misses", cache.misses)
	}

	if _, err := p.GetSourceHealth(context.Background(), "src-a", 10, 48, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cache.hits != 1 {
		t.Errorf("expected second call to hit cache, got %d hits", cache.hits)
	}
}

func floatPtr(f float64) *float64 { return &f }
