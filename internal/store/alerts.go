package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hardstop/hardstop/pkg/types"
)

// FindMostRecentAlertInWindow finds the most recent alert matching
// correlation_key whose last_seen_utc >= sinceISO (ISO-8601 lexicographic
// comparison, valid since all timestamps are stored as RFC3339 UTC
// strings). Returns nil, nil on a miss.
func (s *Store) FindMostRecentAlertInWindow(ctx context.Context, correlationKey, sinceISO string) (*types.Alert, error) {
	alert, err := scanAlert(s.pool.QueryRow(ctx, `
		SELECT alert_id, classification, status, risk_type, summary, root_event_id, root_event_ids_json,
			correlation_key, correlation_action, first_seen_utc, last_seen_utc, update_count, impact_score,
			scope_json, last_updater_tier, last_updater_source_id, last_updater_trust_tier,
			coalesce(reasoning, ''), recommended_actions_json,
			coalesce(evidence_artifact_hash, ''), evidence_merge_summary_json
		FROM alerts
		WHERE correlation_key = $1 AND last_seen_utc >= $2
		ORDER BY last_seen_utc DESC
		LIMIT 1
	`, correlationKey, sinceISO))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding alert in window: %w", err)
	}
	return &alert, nil
}

// InsertAlert inserts a newly created alert (correlation miss path).
func (s *Store) InsertAlert(ctx context.Context, a types.Alert) error {
	rootEventIDsJSON, scopeJSON, recommendedJSON, evidenceSummaryJSON, err := marshalAlertJSON(a)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO alerts (alert_id, classification, status, risk_type, summary, root_event_id,
			root_event_ids_json, correlation_key, correlation_action, first_seen_utc, last_seen_utc,
			update_count, impact_score, scope_json, last_updater_tier, last_updater_source_id,
			last_updater_trust_tier, reasoning, recommended_actions_json,
			evidence_artifact_hash, evidence_merge_summary_json)
		VALUES ($1,$2,$3,$4,$5,$6,$7::jsonb,$8,$9,$10,$11,$12,$13,$14::jsonb,$15,$16,$17,$18,$19::jsonb,$20,$21::jsonb)
	`,
		a.AlertID, a.Classification, a.Status, a.RiskType, a.Summary, a.RootEventID,
		rootEventIDsJSON, a.CorrelationKey, a.CorrelationAction, a.FirstSeenUTC, a.LastSeenUTC,
		a.UpdateCount, a.ImpactScore, scopeJSON, a.LastUpdater.Tier, a.LastUpdater.SourceID,
		a.LastUpdater.TrustTier, a.Reasoning, recommendedJSON,
		nullableString(evidenceHash(a)), evidenceSummaryJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting alert: %w", err)
	}
	return nil
}

// UpdateAlert persists the merged state of an existing alert (correlation
// hit path). Callers are expected to have already computed the merge
// (classification max, scope union, root_event_ids append) before calling.
func (s *Store) UpdateAlert(ctx context.Context, a types.Alert) error {
	rootEventIDsJSON, scopeJSON, recommendedJSON, evidenceSummaryJSON, err := marshalAlertJSON(a)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE alerts SET
			classification = $2, status = $3, summary = $4, root_event_ids_json = $5::jsonb,
			correlation_action = $6, last_seen_utc = $7, update_count = $8, impact_score = $9,
			scope_json = $10::jsonb, last_updater_tier = $11, last_updater_source_id = $12,
			last_updater_trust_tier = $13, reasoning = $14, recommended_actions_json = $15::jsonb,
			evidence_artifact_hash = $16, evidence_merge_summary_json = $17::jsonb
		WHERE alert_id = $1
	`,
		a.AlertID, a.Classification, a.Status, a.Summary, rootEventIDsJSON,
		a.CorrelationAction, a.LastSeenUTC, a.UpdateCount, a.ImpactScore,
		scopeJSON, a.LastUpdater.Tier, a.LastUpdater.SourceID, a.LastUpdater.TrustTier,
		a.Reasoning, recommendedJSON, nullableString(evidenceHash(a)), evidenceSummaryJSON,
	)
	if err != nil {
		return fmt.Errorf("updating alert: %w", err)
	}
	return nil
}

// ListAlertsSince returns every alert last touched at or after sinceISO,
// ordered classification DESC, impact_score DESC (nulls last), update_count
// DESC, last_seen_utc DESC — the sort order the brief read model's top[]
// and tier_counts derive from.
func (s *Store) ListAlertsSince(ctx context.Context, sinceISO string) ([]types.Alert, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT alert_id, classification, status, risk_type, summary, root_event_id, root_event_ids_json,
			correlation_key, correlation_action, first_seen_utc, last_seen_utc, update_count, impact_score,
			scope_json, last_updater_tier, last_updater_source_id, last_updater_trust_tier,
			coalesce(reasoning, ''), recommended_actions_json,
			coalesce(evidence_artifact_hash, ''), evidence_merge_summary_json
		FROM alerts
		WHERE last_seen_utc >= $1
		ORDER BY classification DESC, impact_score DESC NULLS LAST, update_count DESC, last_seen_utc DESC
	`, sinceISO)
	if err != nil {
		return nil, fmt.Errorf("listing alerts since %s: %w", sinceISO, err)
	}
	defer rows.Close()

	var out []types.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func evidenceHash(a types.Alert) string {
	if a.Evidence == nil {
		return ""
	}
	return a.Evidence.ArtifactHash
}

func marshalAlertJSON(a types.Alert) (rootEventIDs, scope, recommended, evidenceSummary []byte, err error) {
	if rootEventIDs, err = json.Marshal(a.RootEventIDs); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshaling root_event_ids: %w", err)
	}
	if scope, err = json.Marshal(a.Scope); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshaling scope: %w", err)
	}
	if recommended, err = json.Marshal(a.RecommendedActions); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshaling recommended_actions: %w", err)
	}
	var summary []string
	if a.Evidence != nil {
		summary = a.Evidence.MergeSummary
	}
	if evidenceSummary, err = json.Marshal(summary); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshaling evidence merge_summary: %w", err)
	}
	return rootEventIDs, scope, recommended, evidenceSummary, nil
}

func scanAlert(row rowScanner) (types.Alert, error) {
	var a types.Alert
	var rootEventIDsJSON, scopeJSON, recommendedJSON, evidenceSummaryJSON []byte
	var evidenceArtifactHash string
	err := row.Scan(
		&a.AlertID, &a.Classification, &a.Status, &a.RiskType, &a.Summary, &a.RootEventID, &rootEventIDsJSON,
		&a.CorrelationKey, &a.CorrelationAction, &a.FirstSeenUTC, &a.LastSeenUTC, &a.UpdateCount, &a.ImpactScore,
		&scopeJSON, &a.LastUpdater.Tier, &a.LastUpdater.SourceID, &a.LastUpdater.TrustTier,
		&a.Reasoning, &recommendedJSON, &evidenceArtifactHash, &evidenceSummaryJSON,
	)
	if err != nil {
		return a, err
	}
	if err := json.Unmarshal(rootEventIDsJSON, &a.RootEventIDs); err != nil {
		return a, fmt.Errorf("unmarshaling root_event_ids: %w", err)
	}
	if err := json.Unmarshal(scopeJSON, &a.Scope); err != nil {
		return a, fmt.Errorf("unmarshaling scope: %w", err)
	}
	if err := json.Unmarshal(recommendedJSON, &a.RecommendedActions); err != nil {
		return a, fmt.Errorf("unmarshaling recommended_actions: %w", err)
	}
	if evidenceArtifactHash != "" {
		var summary []string
		if len(evidenceSummaryJSON) > 0 {
			if err := json.Unmarshal(evidenceSummaryJSON, &summary); err != nil {
				return a, fmt.Errorf("unmarshaling evidence merge_summary: %w", err)
			}
		}
		a.Evidence = &types.AlertEvidenceRef{ArtifactHash: evidenceArtifactHash, MergeSummary: summary}
	}
	return a, nil
}
