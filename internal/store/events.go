package store

import (
	"context"
	"fmt"

	"github.com/hardstop/hardstop/pkg/types"
)

// InsertEvent persists a normalized (and, for non-suppressed items, linked
// and scored) event. Exactly one row per RawItem, ever.
func (s *Store) InsertEvent(ctx context.Context, e types.Event) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO events (event_id, raw_id, source_id, tier, event_type, event_time_utc, location_hint,
			title, raw_text, entities_json, event_payload_json, trust_tier, classification_floor,
			weighting_bias, suppression_status, primary_rule_id, suppression_reason_code, created_at_utc)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10::jsonb,$11::jsonb,$12,$13,$14,$15,$16,$17,$18)
	`,
		e.EventID, e.RawID, e.SourceID, e.Tier, e.EventType, nullableString(e.EventTimeUTC),
		nullableString(e.LocationHint), nullableString(e.Title), nullableString(e.RawText),
		nullableJSON(e.EntitiesJSON), nullableJSON(e.EventPayloadJSON), e.TrustTier,
		e.ClassificationFloor, e.WeightingBias, nullableString(e.SuppressionStatus),
		nullableString(e.PrimaryRuleID), nullableString(e.ReasonCode), e.CreatedAtUTC,
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// GetEvent fetches a single event by id.
func (s *Store) GetEvent(ctx context.Context, eventID string) (*types.Event, error) {
	var e types.Event
	err := s.pool.QueryRow(ctx, `
		SELECT event_id, raw_id, source_id, tier, event_type, coalesce(event_time_utc, ''),
			coalesce(location_hint, ''), coalesce(title, ''), coalesce(raw_text, ''),
			coalesce(entities_json, '{}'::jsonb), event_payload_json, trust_tier,
			classification_floor, weighting_bias, coalesce(suppression_status, ''),
			coalesce(primary_rule_id, ''), coalesce(suppression_reason_code, ''), created_at_utc
		FROM events WHERE event_id = $1
	`, eventID).Scan(
		&e.EventID, &e.RawID, &e.SourceID, &e.Tier, &e.EventType, &e.EventTimeUTC,
		&e.LocationHint, &e.Title, &e.RawText, &e.EntitiesJSON, &e.EventPayloadJSON, &e.TrustTier,
		&e.ClassificationFloor, &e.WeightingBias, &e.SuppressionStatus, &e.PrimaryRuleID,
		&e.ReasonCode, &e.CreatedAtUTC,
	)
	if err != nil {
		return nil, fmt.Errorf("getting event: %w", err)
	}
	return &e, nil
}
