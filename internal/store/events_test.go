package store_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/hardstop/hardstop/internal/store"
	"github.com/hardstop/hardstop/pkg/types"
)

func TestInsertEventAndGetEvent_RoundTrips(t *testing.T) {
	pool := testPool(t)
	st := store.NewStore(pool)
	ctx := context.Background()

	sourceID := "source-" + uuid.NewString()
	raw, _, err := st.SaveRawItem(ctx, sourceID, types.TierGlobal, 3,
		types.RawItemCandidate{CanonicalID: "canon-event", Title: "Port closure"}, "hash-event", "2026-07-31T00:00:00Z")
	if err != nil {
		t.Fatal(err)
	}

	event := types.Event{
		EventID:             "event-" + uuid.NewString(),
		RawID:               raw.RawID,
		SourceID:            sourceID,
		Tier:                types.TierGlobal,
		EventType:           types.EventTypeClosure,
		EventTimeUTC:        "2026-07-31T00:00:00Z",
		LocationHint:        "Port of Long Beach",
		Title:               "Port closure",
		RawText:             "The port has closed due to weather.",
		EventPayloadJSON:    []byte(`{"title":"Port closure"}`),
		TrustTier:           3,
		ClassificationFloor: 1,
		WeightingBias:       0,
		CreatedAtUTC:        "2026-07-31T00:00:01Z",
	}
	if err := st.InsertEvent(ctx, event); err != nil {
		t.Fatal(err)
	}

	got, err := st.GetEvent(ctx, event.EventID)
	if err != nil {
		t.Fatal(err)
	}
	if got.RawID != raw.RawID {
		t.Errorf("expected raw_id %s, got %s", raw.RawID, got.RawID)
	}
	if got.EventType != types.EventTypeClosure {
		t.Errorf("expected event_type CLOSURE, got %s", got.EventType)
	}
	if got.LocationHint != "Port of Long Beach" {
		t.Errorf("expected location_hint to round-trip, got %q", got.LocationHint)
	}
}

func TestGetEvent_UnknownIDReturnsError(t *testing.T) {
	pool := testPool(t)
	st := store.NewStore(pool)
	ctx := context.Background()

	if _, err := st.GetEvent(ctx, "event-"+uuid.NewString()); err == nil {
		t.Fatal("expected error for unknown event_id")
	}
}
