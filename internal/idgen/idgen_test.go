package idgen

import (
	"strings"
	"testing"
	"time"
)

func TestNewEventID_Deterministic(t *testing.T) {
	frozen := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	pop := Push(42, frozen)
	defer pop()

	id1 := NewEventID()
	id2 := NewEventID()

	if id1 == id2 {
		t.Fatalf("expected distinct ids from successive counter values, got %s twice", id1)
	}
	if !strings.HasPrefix(id1, "EVT-20260301-") {
		t.Errorf("wrong prefix/date segment: %s", id1)
	}
}

func TestNewEventID_SameSeedSameSequenceReproduces(t *testing.T) {
	frozen := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	pop := Push(7, frozen)
	firstRun := []string{NewEventID(), NewEventID(), NewAlertID()}
	pop()

	pop = Push(7, frozen)
	secondRun := []string{NewEventID(), NewEventID(), NewAlertID()}
	pop()

	for i := range firstRun {
		if firstRun[i] != secondRun[i] {
			t.Errorf("id %d not reproducible: %s != %s", i, firstRun[i], secondRun[i])
		}
	}
}

func TestNewAlertID_Prefix(t *testing.T) {
	pop := Push(1, time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC))
	defer pop()

	id := NewAlertID()
	if !strings.HasPrefix(id, "ALERT-20251225-") {
		t.Errorf("wrong prefix/date segment: %s", id)
	}
}

func TestNewEventID_NoContextFallsBackToRandom(t *testing.T) {
	id1 := NewEventID()
	id2 := NewEventID()
	if id1 == id2 {
		t.Fatalf("expected random ids outside a pushed context, got %s twice", id1)
	}
	if !strings.HasPrefix(id1, "EVT-") {
		t.Errorf("wrong prefix: %s", id1)
	}
}

func TestPush_PopRestoresPriorContext(t *testing.T) {
	outer := Push(1, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	_ = NewEventID()

	inner := Push(2, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	innerID := NewEventID()
	inner()

	if !strings.HasPrefix(innerID, "EVT-20260601-") {
		t.Errorf("inner context not applied: %s", innerID)
	}

	afterPop := NewEventID()
	if !strings.HasPrefix(afterPop, "EVT-20260101-") {
		t.Errorf("expected outer context restored after inner pop, got %s", afterPop)
	}
	outer()
}
