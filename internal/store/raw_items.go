package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hardstop/hardstop/pkg/types"
)

// SaveRawItem implements the Dedup and Raw-Item Repo's Save contract:
// look up by (source_id, canonical_id) first, fall back to
// (source_id, content_hash); on a hit, refresh fetched_at_utc and return
// the existing row unchanged otherwise; on a miss, insert a new NEW row.
// created reports whether a new row was inserted.
func (s *Store) SaveRawItem(ctx context.Context, sourceID string, tier types.SourceTier, trustTier int, candidate types.RawItemCandidate, contentHash string, fetchedAtUTC string) (*types.RawItem, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("beginning raw_item save transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var existing types.RawItem
	if candidate.CanonicalID != "" {
		existing, err = scanRawItem(tx.QueryRow(ctx, `
			SELECT raw_id, source_id, tier, fetched_at_utc, coalesce(published_at_utc, ''),
				coalesce(canonical_id, ''), coalesce(url, ''), coalesce(title, ''),
				payload_json, content_hash, status, trust_tier,
				coalesce(suppression_status, ''), coalesce(primary_rule_id, ''),
				rule_ids_json, coalesce(suppressed_at_utc, ''), coalesce(suppression_stage, ''),
				coalesce(suppression_reason_code, '')
			FROM raw_items WHERE source_id = $1 AND canonical_id = $2
		`, sourceID, candidate.CanonicalID))
		if err != nil && err != pgx.ErrNoRows {
			return nil, false, fmt.Errorf("looking up raw_item by canonical_id: %w", err)
		}
	}

	if existing.RawID == "" {
		existing, err = scanRawItem(tx.QueryRow(ctx, `
			SELECT raw_id, source_id, tier, fetched_at_utc, coalesce(published_at_utc, ''),
				coalesce(canonical_id, ''), coalesce(url, ''), coalesce(title, ''),
				payload_json, content_hash, status, trust_tier,
				coalesce(suppression_status, ''), coalesce(primary_rule_id, ''),
				rule_ids_json, coalesce(suppressed_at_utc, ''), coalesce(suppression_stage, ''),
				coalesce(suppression_reason_code, '')
			FROM raw_items WHERE source_id = $1 AND content_hash = $2
		`, sourceID, contentHash))
		if err != nil && err != pgx.ErrNoRows {
			return nil, false, fmt.Errorf("looking up raw_item by content_hash: %w", err)
		}
	}

	if existing.RawID != "" {
		_, err = tx.Exec(ctx, `UPDATE raw_items SET fetched_at_utc = $1 WHERE raw_id = $2`, fetchedAtUTC, existing.RawID)
		if err != nil {
			return nil, false, fmt.Errorf("refreshing fetched_at_utc: %w", err)
		}
		existing.FetchedAtUTC = fetchedAtUTC
		if err := tx.Commit(ctx); err != nil {
			return nil, false, fmt.Errorf("committing raw_item refresh: %w", err)
		}
		return &existing, false, nil
	}

	payloadJSON, err := marshalPayload(candidate.Payload)
	if err != nil {
		return nil, false, fmt.Errorf("marshaling raw_item payload: %w", err)
	}

	item := types.RawItem{
		RawID:          uuid.New().String(),
		SourceID:       sourceID,
		Tier:           tier,
		FetchedAtUTC:   fetchedAtUTC,
		PublishedAtUTC: candidate.PublishedAtUTC,
		CanonicalID:    candidate.CanonicalID,
		URL:            candidate.URL,
		Title:          candidate.Title,
		PayloadJSON:    payloadJSON,
		ContentHash:    contentHash,
		Status:         types.RawItemStatusNew,
		TrustTier:      trustTier,
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO raw_items (raw_id, source_id, tier, fetched_at_utc, published_at_utc, canonical_id, url,
			title, payload_json, content_hash, status, trust_tier)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11, $12)
	`,
		item.RawID, item.SourceID, item.Tier, item.FetchedAtUTC, nullableString(item.PublishedAtUTC),
		nullableString(item.CanonicalID), nullableString(item.URL), nullableString(item.Title),
		item.PayloadJSON, item.ContentHash, item.Status, item.TrustTier,
	)
	if err != nil {
		return nil, false, fmt.Errorf("inserting raw_item: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("committing raw_item insert: %w", err)
	}
	return &item, true, nil
}

// MarkRawItemStatus advances a raw item's status to NORMALIZED or FAILED.
// Status only ever moves forward from NEW; callers are expected to check
// the current status before calling this for FAILED transitions.
func (s *Store) MarkRawItemStatus(ctx context.Context, rawID string, status types.RawItemStatus) error {
	_, err := s.pool.Exec(ctx, `UPDATE raw_items SET status = $1 WHERE raw_id = $2`, status, rawID)
	if err != nil {
		return fmt.Errorf("updating raw_item status: %w", err)
	}
	return nil
}

// MarkRawItemSuppressed records a suppression verdict on a raw item. The
// item's Status is left unchanged (NEW): suppression is tracked separately
// via SuppressionStatus so it can be distinguished from "not yet processed".
func (s *Store) MarkRawItemSuppressed(ctx context.Context, rawID, primaryRuleID string, ruleIDsJSON []byte, stage, reasonCode string, suppressedAtUTC string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE raw_items SET suppression_status = 'SUPPRESSED', primary_rule_id = $1, rule_ids_json = $2::jsonb,
			suppression_stage = $3, suppression_reason_code = $4, suppressed_at_utc = $5
		WHERE raw_id = $6
	`, primaryRuleID, ruleIDsJSON, stage, reasonCode, suppressedAtUTC, rawID)
	if err != nil {
		return fmt.Errorf("marking raw_item suppressed: %w", err)
	}
	return nil
}

// ListUnsuppressedNewRawItems returns NEW, non-suppressed raw items for a
// source, the set the Ingest Runner's Normalizer pass consumes.
func (s *Store) ListUnsuppressedNewRawItems(ctx context.Context, sourceID string) ([]types.RawItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT raw_id, source_id, tier, fetched_at_utc, coalesce(published_at_utc, ''),
			coalesce(canonical_id, ''), coalesce(url, ''), coalesce(title, ''),
			payload_json, content_hash, status, trust_tier,
			coalesce(suppression_status, ''), coalesce(primary_rule_id, ''),
			rule_ids_json, coalesce(suppressed_at_utc, ''), coalesce(suppression_stage, ''),
			coalesce(suppression_reason_code, '')
		FROM raw_items
		WHERE source_id = $1 AND status = $2 AND coalesce(suppression_status, '') != 'SUPPRESSED'
		ORDER BY fetched_at_utc
	`, sourceID, types.RawItemStatusNew)
	if err != nil {
		return nil, fmt.Errorf("listing raw_items: %w", err)
	}
	defer rows.Close()

	var out []types.RawItem
	for rows.Next() {
		item, err := scanRawItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning raw_item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// SuppressionCount is one (rule_id|source_id, count) row from a
// suppression breakdown query.
type SuppressionCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// CountSuppressedSince returns the total number of raw items suppressed at
// or after sinceISO, and its breakdown by suppression rule and by source —
// the brief read model's `suppressed{count,by_rule[],by_source[]}` block.
func (s *Store) CountSuppressedSince(ctx context.Context, sinceISO string) (total int, byRule, bySource []SuppressionCount, err error) {
	if err = s.pool.QueryRow(ctx, `
		SELECT count(*) FROM raw_items
		WHERE suppression_status = 'SUPPRESSED' AND suppressed_at_utc >= $1
	`, sinceISO).Scan(&total); err != nil {
		return 0, nil, nil, fmt.Errorf("counting suppressed raw_items: %w", err)
	}

	byRule, err = s.suppressionBreakdown(ctx, sinceISO, "coalesce(primary_rule_id, '')")
	if err != nil {
		return 0, nil, nil, fmt.Errorf("counting suppressed by rule: %w", err)
	}
	bySource, err = s.suppressionBreakdown(ctx, sinceISO, "source_id")
	if err != nil {
		return 0, nil, nil, fmt.Errorf("counting suppressed by source: %w", err)
	}
	return total, byRule, bySource, nil
}

func (s *Store) suppressionBreakdown(ctx context.Context, sinceISO, groupExpr string) ([]SuppressionCount, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s AS k, count(*) FROM raw_items
		WHERE suppression_status = 'SUPPRESSED' AND suppressed_at_utc >= $1
		GROUP BY k ORDER BY count(*) DESC, k
	`, groupExpr), sinceISO)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SuppressionCount
	for rows.Next() {
		var c SuppressionCount
		if err := rows.Scan(&c.Key, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRawItem(row rowScanner) (types.RawItem, error) {
	var item types.RawItem
	err := row.Scan(
		&item.RawID, &item.SourceID, &item.Tier, &item.FetchedAtUTC, &item.PublishedAtUTC,
		&item.CanonicalID, &item.URL, &item.Title, &item.PayloadJSON, &item.ContentHash,
		&item.Status, &item.TrustTier,
		&item.SuppressionStatus, &item.PrimaryRuleID, &item.RuleIDsJSON, &item.SuppressedAtUTC,
		&item.SuppressionStage, &item.SuppressionReason,
	)
	return item, err
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func marshalPayload(payload map[string]any) ([]byte, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	return json.Marshal(payload)
}
