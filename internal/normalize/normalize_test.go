package normalize

import (
	"testing"
	"time"

	"github.com/hardstop/hardstop/internal/idgen"
	"github.com/hardstop/hardstop/pkg/types"
)

func TestExtractEventType_FirstMatchWins(t *testing.T) {
	got := ExtractEventType("Severe weather strike notice", "hurricane warning issued, union calls strike")
	if got != types.EventTypeWeather {
		t.Errorf("expected WEATHER to win as first keyword set checked, got %s", got)
	}
}

func TestExtractEventType_DefaultsToOther(t *testing.T) {
	got := ExtractEventType("Quarterly earnings report", "revenue increased 5%")
	if got != types.EventTypeOther {
		t.Errorf("expected OTHER, got %s", got)
	}
}

func TestExtractLocationHint_PrefersGeoMetadata(t *testing.T) {
	hint := ExtractLocationHint(map[string]any{"city": "Oakland"}, &GeoMetadata{City: "Houston", State: "TX"})
	if hint != "Houston, TX" {
		t.Errorf("expected geo metadata to win, got %q", hint)
	}
}

func TestExtractLocationHint_FallsBackToCityStateRegex(t *testing.T) {
	payload := map[string]any{"description": "Flooding reported near Baton Rouge, LA this morning"}
	hint := ExtractLocationHint(payload, nil)
	if hint != "Baton Rouge, LA" {
		t.Errorf("expected city/state regex extraction, got %q", hint)
	}
}

func TestNormalize_DeterministicEventIDUnderContext(t *testing.T) {
	frozen := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	in := Input{
		RawItem:   types.RawItem{RawID: "raw-1"},
		Candidate: types.RawItemCandidate{Title: "Port closed due to strike", Payload: map[string]any{}},
		SourceID:  "src-1",
		Tier:      types.TierGlobal,
		Trust:     DefaultTrust(),
		NowUTC:    frozen,
	}

	pop1 := idgen.Push(42, frozen)
	e1, err := Normalize(in)
	pop1()
	if err != nil {
		t.Fatal(err)
	}

	pop2 := idgen.Push(42, frozen)
	e2, err := Normalize(in)
	pop2()
	if err != nil {
		t.Fatal(err)
	}

	if e1.EventID != e2.EventID {
		t.Errorf("expected identical event ids under identical seed/counter replay, got %s vs %s", e1.EventID, e2.EventID)
	}
	if e1.EventType != types.EventTypeStrike {
		t.Errorf("expected STRIKE event type, got %s", e1.EventType)
	}
}
