package store_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/hardstop/hardstop/internal/store"
	"github.com/hardstop/hardstop/pkg/types"
)

func TestInsertSourceRunAndHasIngestRun_EnforcesAttemptOnceLookup(t *testing.T) {
	pool := testPool(t)
	st := store.NewStore(pool)
	ctx := context.Background()

	sourceID := "source-" + uuid.NewString()
	runGroupID := "group-" + uuid.NewString()

	has, err := st.HasIngestRun(ctx, sourceID, runGroupID)
	if err != nil {
		t.Fatal(err)
	}
	if has {
		t.Fatal("expected no ingest run before any insert")
	}

	run := types.SourceRun{
		RunGroupID:     runGroupID,
		SourceID:       sourceID,
		Phase:          types.PhaseIngest,
		RunAtUTC:       "2026-07-31T00:00:00Z",
		Status:         types.RunStatusSuccess,
		ItemsProcessed: 3,
	}
	runID, err := st.InsertSourceRun(ctx, run)
	if err != nil {
		t.Fatal(err)
	}
	if runID == "" {
		t.Fatal("expected a generated run_id")
	}

	has, err = st.HasIngestRun(ctx, sourceID, runGroupID)
	if err != nil {
		t.Fatal(err)
	}
	if !has {
		t.Fatal("expected an ingest run to now be recorded")
	}
}

func TestRecentRuns_OrdersNewestFirstAndFiltersByPhase(t *testing.T) {
	pool := testPool(t)
	st := store.NewStore(pool)
	ctx := context.Background()

	sourceID := "source-" + uuid.NewString()
	older := types.SourceRun{
		RunGroupID: "group-" + uuid.NewString(), SourceID: sourceID, Phase: types.PhaseFetch,
		RunAtUTC: "2026-07-30T00:00:00Z", Status: types.RunStatusSuccess,
	}
	newer := types.SourceRun{
		RunGroupID: "group-" + uuid.NewString(), SourceID: sourceID, Phase: types.PhaseFetch,
		RunAtUTC: "2026-07-31T00:00:00Z", Status: types.RunStatusFailure, Error: "timeout",
	}
	ingest := types.SourceRun{
		RunGroupID: "group-" + uuid.NewString(), SourceID: sourceID, Phase: types.PhaseIngest,
		RunAtUTC: "2026-07-31T01:00:00Z", Status: types.RunStatusSuccess,
	}
	for _, r := range []types.SourceRun{older, newer, ingest} {
		if _, err := st.InsertSourceRun(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := st.RecentRuns(ctx, sourceID, types.PhaseFetch, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 FETCH runs, got %d", len(runs))
	}
	if runs[0].RunAtUTC != newer.RunAtUTC {
		t.Errorf("expected newest run first, got %s", runs[0].RunAtUTC)
	}
	if runs[0].Status != types.RunStatusFailure || runs[0].Error != "timeout" {
		t.Errorf("expected newest run's failure status/error to round-trip, got %+v", runs[0])
	}
}

func TestListSourceIDs_ReturnsDistinctSortedIDs(t *testing.T) {
	pool := testPool(t)
	st := store.NewStore(pool)
	ctx := context.Background()

	sourceA := "a-" + uuid.NewString()
	sourceB := "b-" + uuid.NewString()
	for _, id := range []string{sourceA, sourceA, sourceB} {
		run := types.SourceRun{
			RunGroupID: "group-" + uuid.NewString(), SourceID: id, Phase: types.PhaseFetch,
			RunAtUTC: "2026-07-31T00:00:00Z", Status: types.RunStatusSuccess,
		}
		if _, err := st.InsertSourceRun(ctx, run); err != nil {
			t.Fatal(err)
		}
	}

	ids, err := st.ListSourceIDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]int{}
	for _, id := range ids {
		seen[id]++
	}
	if seen[sourceA] != 1 {
		t.Errorf("expected source %s to appear exactly once in distinct list, got %d", sourceA, seen[sourceA])
	}
	if seen[sourceB] != 1 {
		t.Errorf("expected source %s to appear exactly once in distinct list, got %d", sourceB, seen[sourceB])
	}
	idxA, idxB := -1, -1
	for i, id := range ids {
		if id == sourceA {
			idxA = i
		}
		if id == sourceB {
			idxB = i
		}
	}
	if idxA == -1 || idxB == -1 || idxA > idxB {
		t.Errorf("expected %s to sort before %s, got indices %d and %d", sourceA, sourceB, idxA, idxB)
	}
}
