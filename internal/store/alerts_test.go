package store_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/hardstop/hardstop/internal/store"
	"github.com/hardstop/hardstop/pkg/types"
)

func newTestAlert(alertID, correlationKey string) types.Alert {
	return types.Alert{
		AlertID:           alertID,
		Classification:    types.ClassificationRelevant,
		Status:            types.AlertStatusOpen,
		RiskType:          "SPILL",
		Summary:           "Hazmat spill near facility",
		RootEventID:       "event-1",
		RootEventIDs:      []string{"event-1"},
		CorrelationKey:    correlationKey,
		CorrelationAction: types.CorrelationCreated,
		FirstSeenUTC:      "2026-07-31T00:00:00Z",
		LastSeenUTC:       "2026-07-31T00:00:00Z",
		UpdateCount:       0,
		ImpactScore:       40,
		Scope:             types.AlertScope{Facilities: []string{"fac-a"}},
		LastUpdater:       types.UpdaterProvenance{Tier: types.TierRegional, SourceID: "src-1", TrustTier: 2},
		Reasoning:         "keyword match on SPILL",
	}
}

func TestInsertAlertAndFindMostRecentAlertInWindow_RoundTrips(t *testing.T) {
	pool := testPool(t)
	st := store.NewStore(pool)
	ctx := context.Background()

	correlationKey := "key-" + uuid.NewString()
	alert := newTestAlert("alert-"+uuid.NewString(), correlationKey)
	if err := st.InsertAlert(ctx, alert); err != nil {
		t.Fatal(err)
	}

	found, err := st.FindMostRecentAlertInWindow(ctx, correlationKey, "2026-07-30T00:00:00Z")
	if err != nil {
		t.Fatal(err)
	}
	if found == nil {
		t.Fatal("expected to find the inserted alert within the window")
	}
	if found.AlertID != alert.AlertID {
		t.Errorf("expected alert_id %s, got %s", alert.AlertID, found.AlertID)
	}
	if found.Classification != types.ClassificationRelevant {
		t.Errorf("expected classification to round-trip, got %v", found.Classification)
	}
	if len(found.Scope.Facilities) != 1 || found.Scope.Facilities[0] != "fac-a" {
		t.Errorf("expected scope facilities to round-trip, got %+v", found.Scope)
	}
}

func TestFindMostRecentAlertInWindow_MissOutsideWindowReturnsNil(t *testing.T) {
	pool := testPool(t)
	st := store.NewStore(pool)
	ctx := context.Background()

	correlationKey := "key-" + uuid.NewString()
	alert := newTestAlert("alert-"+uuid.NewString(), correlationKey)
	alert.LastSeenUTC = "2026-07-01T00:00:00Z"
	if err := st.InsertAlert(ctx, alert); err != nil {
		t.Fatal(err)
	}

	found, err := st.FindMostRecentAlertInWindow(ctx, correlationKey, "2026-07-30T00:00:00Z")
	if err != nil {
		t.Fatal(err)
	}
	if found != nil {
		t.Fatal("expected no match outside the lookback window")
	}
}

func TestUpdateAlert_MergesScopeAndBumpsUpdateCount(t *testing.T) {
	pool := testPool(t)
	st := store.NewStore(pool)
	ctx := context.Background()

	correlationKey := "key-" + uuid.NewString()
	alert := newTestAlert("alert-"+uuid.NewString(), correlationKey)
	if err := st.InsertAlert(ctx, alert); err != nil {
		t.Fatal(err)
	}

	merged := alert
	merged.Classification = types.ClassificationImpactful
	merged.Status = types.AlertStatusUpdated
	merged.CorrelationAction = types.CorrelationUpdated
	merged.RootEventIDs = append(merged.RootEventIDs, "event-2")
	merged.UpdateCount = 1
	merged.LastSeenUTC = "2026-07-31T06:00:00Z"
	merged.Scope.Facilities = append(merged.Scope.Facilities, "fac-b")
	merged.Evidence = &types.AlertEvidenceRef{ArtifactHash: "hash-1", MergeSummary: []string{"merged on shared facility"}}

	if err := st.UpdateAlert(ctx, merged); err != nil {
		t.Fatal(err)
	}

	found, err := st.FindMostRecentAlertInWindow(ctx, correlationKey, "2026-07-01T00:00:00Z")
	if err != nil {
		t.Fatal(err)
	}
	if found == nil {
		t.Fatal("expected merged alert to be found")
	}
	if found.Classification != types.ClassificationImpactful {
		t.Errorf("expected classification to be updated to Impactful, got %v", found.Classification)
	}
	if found.UpdateCount != 1 || len(found.RootEventIDs) != 2 {
		t.Errorf("expected update_count 1 and 2 root_event_ids, got %d / %v", found.UpdateCount, found.RootEventIDs)
	}
	if len(found.Scope.Facilities) != 2 {
		t.Errorf("expected scope to include both facilities, got %+v", found.Scope.Facilities)
	}
	if found.Evidence == nil || found.Evidence.ArtifactHash != "hash-1" {
		t.Errorf("expected evidence artifact hash to round-trip, got %+v", found.Evidence)
	}
}

func TestListAlertsSince_OrdersHigherClassificationFirst(t *testing.T) {
	pool := testPool(t)
	st := store.NewStore(pool)
	ctx := context.Background()

	sinceISO := "2026-07-31T00:00:00Z"
	low := newTestAlert("alert-"+uuid.NewString(), "key-"+uuid.NewString())
	low.Classification = types.ClassificationInteresting
	low.ImpactScore = 10
	low.LastSeenUTC = "2026-07-31T01:00:00Z"

	high := newTestAlert("alert-"+uuid.NewString(), "key-"+uuid.NewString())
	high.Classification = types.ClassificationImpactful
	high.ImpactScore = 90
	high.LastSeenUTC = "2026-07-31T02:00:00Z"

	for _, a := range []types.Alert{low, high} {
		if err := st.InsertAlert(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	alerts, err := st.ListAlertsSince(ctx, sinceISO)
	if err != nil {
		t.Fatal(err)
	}
	var highIdx, lowIdx = -1, -1
	for i, a := range alerts {
		if a.AlertID == high.AlertID {
			highIdx = i
		}
		if a.AlertID == low.AlertID {
			lowIdx = i
		}
	}
	if highIdx == -1 || lowIdx == -1 {
		t.Fatal("expected both alerts to be returned")
	}
	if highIdx > lowIdx {
		t.Errorf("expected higher-classification alert to sort before lower one, got indices %d (high) vs %d (low)", highIdx, lowIdx)
	}
}
