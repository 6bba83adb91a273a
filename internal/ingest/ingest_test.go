package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hardstop/hardstop/pkg/types"
)

type fakeStore struct {
	sourceIDs []string
	items     map[string][]types.RawItem

	alreadyIngested map[string]bool
	existingAlert   *types.Alert

	markedStatus     map[string]types.RawItemStatus
	markedSuppressed map[string]bool
	insertedEvents   []types.Event
	sourceRuns       []types.SourceRun
	insertedAlerts   []types.Alert
	updatedAlerts    []types.Alert

	insertEventErrorForRawID string
}

func (f *fakeStore) ListSourceIDs(ctx context.Context) ([]string, error) {
	return f.sourceIDs, nil
}

func (f *fakeStore) ListUnsuppressedNewRawItems(ctx context.Context, sourceID string) ([]types.RawItem, error) {
	return f.items[sourceID], nil
}

func (f *fakeStore) MarkRawItemStatus(ctx context.Context, rawID string, status types.RawItemStatus) error {
	if f.markedStatus == nil {
		f.markedStatus = map[string]types.RawItemStatus{}
	}
	f.markedStatus[rawID] = status
	return nil
}

func (f *fakeStore) MarkRawItemSuppressed(ctx context.Context, rawID, primaryRuleID string, ruleIDsJSON []byte, stage, reasonCode string, suppressedAtUTC string) error {
	if f.markedSuppressed == nil {
		f.markedSuppressed = map[string]bool{}
	}
	f.markedSuppressed[rawID] = true
	return nil
}

func (f *fakeStore) InsertEvent(ctx context.Context, e types.Event) error {
	if e.RawID == f.insertEventErrorForRawID {
		return errors.New("boom")
	}
	f.insertedEvents = append(f.insertedEvents, e)
	return nil
}

func (f *fakeStore) HasIngestRun(ctx context.Context, sourceID, runGroupID string) (bool, error) {
	return f.alreadyIngested[sourceID], nil
}

func (f *fakeStore) InsertSourceRun(ctx context.Context, r types.SourceRun) (string, error) {
	f.sourceRuns = append(f.sourceRuns, r)
	return "run-1", nil
}

func (f *fakeStore) FindMostRecentAlertInWindow(ctx context.Context, correlationKey, sinceISO string) (*types.Alert, error) {
	return f.existingAlert, nil
}

func (f *fakeStore) InsertAlert(ctx context.Context, a types.Alert) error {
	f.insertedAlerts = append(f.insertedAlerts, a)
	return nil
}

func (f *fakeStore) UpdateAlert(ctx context.Context, a types.Alert) error {
	f.updatedAlerts = append(f.updatedAlerts, a)
	return nil
}

func rawItem(rawID, sourceID, title string) types.RawItem {
	return types.RawItem{
		RawID:        rawID,
		SourceID:     sourceID,
		Tier:         types.TierRegional,
		Status:       types.RawItemStatusNew,
		Title:        title,
		FetchedAtUTC: "2026-07-31T08:00:00Z",
		PayloadJSON:  []byte(`{"title":"` + title + `","summary":"details"}`),
		TrustTier:    2,
	}
}

func baseOptions(store *fakeStore) Options {
	return Options{
		RunGroupID: "rg-1",
		SourceSetups: map[string]SourceSetup{
			"src-a": {Tier: types.TierRegional, TrustTier: 2},
		},
		ShipmentLinkMax:       25,
		AlertMergeWindowHours: 168,
		NowUTC:                time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC),
	}
}

func TestIngest_ProcessesNewItemsAndWritesOneIngestRunPerSource(t *testing.T) {
	store := &fakeStore{
		sourceIDs: []string{"src-a"},
		items: map[string][]types.RawItem{
			"src-a": {rawItem("raw-1", "src-a", "Port strike begins"), rawItem("raw-2", "src-a", "Routine update")},
		},
	}
	result, err := Ingest(context.Background(), store, baseOptions(store))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Processed != 2 || result.Events != 2 {
		t.Errorf("expected 2 processed/2 events, got %+v", result)
	}
	if len(store.sourceRuns) != 1 {
		t.Fatalf("expected exactly one INGEST SourceRun row, got %d", len(store.sourceRuns))
	}
	if store.sourceRuns[0].Status != types.RunStatusSuccess {
		t.Errorf("expected SUCCESS status, got %v", store.sourceRuns[0].Status)
	}
	if store.markedStatus["raw-1"] != types.RawItemStatusNormalized {
		t.Errorf("expected raw-1 marked NORMALIZED, got %v", store.markedStatus["raw-1"])
	}
	if len(store.insertedAlerts) != 2 {
		t.Errorf("expected an alert per non-suppressed event, got %d", len(store.insertedAlerts))
	}
}

func TestIngest_SuppressedItemSkipsAlertFlow(t *testing.T) {
	store := &fakeStore{
		sourceIDs: []string{"src-a"},
		items: map[string][]types.RawItem{
			"src-a": {rawItem("raw-1", "src-a", "Weekly newsletter digest")},
		},
	}
	opts := baseOptions(store)
	opts.GlobalSuppressionRules = []types.SuppressionRule{
		{RuleID: "skip-newsletters", Enabled: true, Field: types.FieldTitle, Match: types.MatchKeyword, Pattern: "newsletter"},
	}

	result, err := Ingest(context.Background(), store, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Suppressed != 1 {
		t.Errorf("expected 1 suppressed item, got %d", result.Suppressed)
	}
	if len(store.insertedAlerts) != 0 {
		t.Errorf("expected suppressed item to skip alert flow, got %d alerts", len(store.insertedAlerts))
	}
	if !store.markedSuppressed["raw-1"] {
		t.Error("expected raw-1 to be marked suppressed")
	}
}

func TestIngest_ItemErrorIncrementsErrorsAndMarksFailedWithoutAbortingBatch(t *testing.T) {
	store := &fakeStore{
		sourceIDs: []string{"src-a"},
		items: map[string][]types.RawItem{
			"src-a": {rawItem("raw-bad", "src-a", "Port strike"), rawItem("raw-ok", "src-a", "Port strike continues")},
		},
		insertEventErrorForRawID: "raw-bad",
	}
	opts := baseOptions(store)
	opts.AllowIngestErrors = true

	result, err := Ingest(context.Background(), store, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Errors != 1 {
		t.Errorf("expected 1 error, got %d", result.Errors)
	}
	if store.markedStatus["raw-bad"] != types.RawItemStatusFailed {
		t.Errorf("expected raw-bad marked FAILED, got %v", store.markedStatus["raw-bad"])
	}
	if store.markedStatus["raw-ok"] != types.RawItemStatusNormalized {
		t.Errorf("expected raw-ok to still be processed, got %v", store.markedStatus["raw-ok"])
	}
	if len(store.sourceRuns) != 1 || store.sourceRuns[0].Status != types.RunStatusSuccess {
		t.Errorf("expected SUCCESS because allow_ingest_errors was set, got %+v", store.sourceRuns)
	}
}

func TestIngest_AttemptOnceSkipsSourceAlreadyIngested(t *testing.T) {
	store := &fakeStore{
		sourceIDs:       []string{"src-a"},
		items:           map[string][]types.RawItem{"src-a": {rawItem("raw-1", "src-a", "Port strike")}},
		alreadyIngested: map[string]bool{"src-a": true},
	}
	result, err := Ingest(context.Background(), store, baseOptions(store))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Processed != 0 {
		t.Errorf("expected attempt-once to skip an already-ingested source, got %+v", result)
	}
	if len(store.sourceRuns) != 0 {
		t.Errorf("expected no new SourceRun row when already ingested, got %d", len(store.sourceRuns))
	}
}
