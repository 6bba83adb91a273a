package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hardstop/hardstop/pkg/types"
)

// InsertSourceRun writes a FETCH or INGEST row. Callers enforce the
// exactly-one-INGEST-row-per-(source_id,run_group_id) contract; this method
// performs an unconditional insert.
func (s *Store) InsertSourceRun(ctx context.Context, r types.SourceRun) (string, error) {
	if r.RunID == "" {
		r.RunID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO source_runs (run_id, run_group_id, source_id, phase, run_at_utc, status, status_code,
			error, duration_seconds, items_fetched, items_new, bytes_downloaded, items_processed,
			items_suppressed, items_events_created, items_alerts_touched, diagnostics_json)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17::jsonb)
	`,
		r.RunID, r.RunGroupID, r.SourceID, r.Phase, r.RunAtUTC, r.Status, r.StatusCode,
		nullableString(r.Error), r.DurationSeconds, r.ItemsFetched, r.ItemsNew, r.BytesDownloaded,
		r.ItemsProcessed, r.ItemsSuppressed, r.ItemsEventsCreated, r.ItemsAlertsTouched,
		nullableJSON(r.DiagnosticsJSON),
	)
	if err != nil {
		return "", fmt.Errorf("inserting source_run: %w", err)
	}
	return r.RunID, nil
}

// HasIngestRun reports whether an INGEST row already exists for
// (sourceID, runGroupID) — used to enforce attempt-once semantics.
func (s *Store) HasIngestRun(ctx context.Context, sourceID, runGroupID string) (bool, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM source_runs WHERE source_id = $1 AND run_group_id = $2 AND phase = $3
	`, sourceID, runGroupID, types.PhaseIngest).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking existing ingest run: %w", err)
	}
	return count > 0, nil
}

// RecentRuns returns the N most recent rows for a source and phase, newest
// first — the lookback window the health scorer operates over.
func (s *Store) RecentRuns(ctx context.Context, sourceID string, phase types.RunPhase, limit int) ([]types.SourceRun, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, run_group_id, source_id, phase, run_at_utc, status, status_code,
			coalesce(error, ''), duration_seconds, items_fetched, items_new, bytes_downloaded,
			items_processed, items_suppressed, items_events_created, items_alerts_touched,
			coalesce(diagnostics_json, '{}'::jsonb)
		FROM source_runs
		WHERE source_id = $1 AND phase = $2
		ORDER BY run_at_utc DESC
		LIMIT $3
	`, sourceID, phase, limit)
	if err != nil {
		return nil, fmt.Errorf("listing source_runs: %w", err)
	}
	defer rows.Close()

	var out []types.SourceRun
	for rows.Next() {
		var r types.SourceRun
		if err := rows.Scan(
			&r.RunID, &r.RunGroupID, &r.SourceID, &r.Phase, &r.RunAtUTC, &r.Status, &r.StatusCode,
			&r.Error, &r.DurationSeconds, &r.ItemsFetched, &r.ItemsNew, &r.BytesDownloaded,
			&r.ItemsProcessed, &r.ItemsSuppressed, &r.ItemsEventsCreated, &r.ItemsAlertsTouched,
			&r.DiagnosticsJSON,
		); err != nil {
			return nil, fmt.Errorf("scanning source_run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListSourceIDs returns the distinct set of source ids that have ever
// produced a run, used by GetAllSourceHealth.
func (s *Store) ListSourceIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT source_id FROM source_runs ORDER BY source_id`)
	if err != nil {
		return nil, fmt.Errorf("listing source ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning source id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
