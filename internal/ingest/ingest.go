// Package ingest runs the Normalize -> Suppress -> Link -> Score -> Correlate
// pipeline over already-fetched raw items, one source group at a time, and
// writes the per-source INGEST SourceRun accounting row.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hardstop/hardstop/internal/correlation"
	"github.com/hardstop/hardstop/internal/linker"
	"github.com/hardstop/hardstop/internal/normalize"
	"github.com/hardstop/hardstop/internal/scoring"
	"github.com/hardstop/hardstop/internal/suppression"
	"github.com/hardstop/hardstop/pkg/types"
)

// Store is the subset of internal/store.Store the runner needs.
type Store interface {
	ListSourceIDs(ctx context.Context) ([]string, error)
	ListUnsuppressedNewRawItems(ctx context.Context, sourceID string) ([]types.RawItem, error)
	MarkRawItemStatus(ctx context.Context, rawID string, status types.RawItemStatus) error
	MarkRawItemSuppressed(ctx context.Context, rawID, primaryRuleID string, ruleIDsJSON []byte, stage, reasonCode string, suppressedAtUTC string) error
	InsertEvent(ctx context.Context, e types.Event) error
	HasIngestRun(ctx context.Context, sourceID, runGroupID string) (bool, error)
	InsertSourceRun(ctx context.Context, r types.SourceRun) (string, error)
	correlation.AlertStore
}

// SourceSetup is the per-source configuration the runner needs to evaluate
// suppression and build events, looked up once per source group.
type SourceSetup struct {
	Tier                types.SourceTier
	TrustTier           int
	ClassificationFloor int
	WeightingBias       int
	SuppressionRules    []types.SuppressionRule // this source's rules only
}

// Options configures one Ingest call.
type Options struct {
	Limit            int // 0 == unlimited
	MinTier          types.SourceTier
	SourceID         string // "" == all sources
	SinceHours       int    // 0 == no filter
	NoSuppress       bool
	ExplainSuppress  bool
	RunGroupID       string
	FailFast         bool
	AllowIngestErrors bool

	GlobalSuppressionRules []types.SuppressionRule
	SourceSetups           map[string]SourceSetup // keyed by source_id
	Facilities             []types.Facility
	Lanes                  []types.Lane
	Shipments              []types.Shipment
	ShipmentLinkMax        int
	AlertMergeWindowHours  int
	RiskKeywords           []scoring.RiskKeyword

	NowUTC time.Time
}

// Result is the aggregate outcome of one Ingest call across all sources.
type Result struct {
	Processed  int
	Events     int
	Alerts     int
	Suppressed int
	Errors     int
}

var tierRank = map[types.SourceTier]int{
	types.TierLocal:    0,
	types.TierRegional: 1,
	types.TierGlobal:   2,
	types.TierUnknown:  0,
}

// Ingest runs the pipeline over every eligible source group, in a stable
// source order, writing one INGEST SourceRun row per source it processes.
// A source skipped by MinTier, or already ingested under opts.RunGroupID,
// gets no new row.
func Ingest(ctx context.Context, store Store, opts Options) (Result, error) {
	nowUTC := opts.NowUTC
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}

	sourceIDs, err := selectSourceIDs(ctx, store, opts.SourceID)
	if err != nil {
		return Result{}, fmt.Errorf("listing sources: %w", err)
	}

	var total Result
	remaining := opts.Limit

	for _, sourceID := range sourceIDs {
		if opts.Limit > 0 && remaining <= 0 {
			break
		}

		setup := opts.SourceSetups[sourceID]
		if opts.MinTier != "" && tierRank[setup.Tier] < tierRank[opts.MinTier] {
			continue
		}

		items, err := store.ListUnsuppressedNewRawItems(ctx, sourceID)
		if err != nil {
			return total, fmt.Errorf("listing raw items for %s: %w", sourceID, err)
		}
		if items == nil {
			// A source with nothing new to ingest is a legal empty batch, not
			// the preflight's "nil items" rejection (reserved for malformed
			// calls, e.g. from tests exercising the batch boundary directly).
			items = []types.RawItem{}
		}
		items = filterSinceHours(items, opts.SinceHours, nowUTC)
		if opts.Limit > 0 && len(items) > remaining {
			items = items[:remaining]
		}

		sourceResult, writeErr := runSourceBatch(ctx, store, sourceID, items, setup, opts, nowUTC)
		if writeErr != nil && opts.FailFast {
			return total, writeErr
		}

		total.Processed += sourceResult.Processed
		total.Events += sourceResult.Events
		total.Alerts += sourceResult.Alerts
		total.Suppressed += sourceResult.Suppressed
		total.Errors += sourceResult.Errors
		if opts.Limit > 0 {
			remaining -= sourceResult.Processed
		}
	}

	return total, nil
}

// runSourceBatch processes one source's item group end to end, wrapped in a
// named-return + defer/recover boundary so a panic anywhere in the item
// loop still produces a FAILURE SourceRun row instead of an unaccounted
// crash — the same flush-on-stop shape the fetch/ship loop uses for its own
// batch boundary.
func runSourceBatch(ctx context.Context, store Store, sourceID string, items []types.RawItem, setup SourceSetup, opts Options, nowUTC time.Time) (result Result, err error) {
	start := time.Now()
	sourceRunWritten := false

	defer func() {
		if sourceRunWritten {
			return
		}
		if r := recover(); r != nil {
			writeSourceRun(ctx, store, sourceID, opts.RunGroupID, nowUTC, time.Since(start), result, fmt.Errorf("panic: %v", r))
			sourceRunWritten = true
			if opts.FailFast {
				err = fmt.Errorf("source %s panicked: %v", sourceID, r)
			}
		}
	}()

	if preflightErr := preflightSourceBatch(sourceID, items); preflightErr != nil {
		writeSourceRun(ctx, store, sourceID, opts.RunGroupID, nowUTC, time.Since(start), result, preflightErr)
		sourceRunWritten = true
		if opts.FailFast {
			return result, preflightErr
		}
		return result, nil
	}

	alreadyRun, hasErr := store.HasIngestRun(ctx, sourceID, opts.RunGroupID)
	if hasErr != nil {
		writeSourceRun(ctx, store, sourceID, opts.RunGroupID, nowUTC, time.Since(start), result, hasErr)
		sourceRunWritten = true
		return result, nil
	}
	if alreadyRun {
		return result, nil
	}

	sourceRules := globalAndSourceRules(opts.GlobalSuppressionRules, setup.SuppressionRules)

	for _, item := range items {
		itemErr := processItem(ctx, store, item, setup, sourceRules, opts, nowUTC, &result)
		if itemErr != nil {
			result.Errors++
			truncated := types.TruncateError(itemErr.Error())
			if markErr := store.MarkRawItemStatus(ctx, item.RawID, types.RawItemStatusFailed); markErr != nil {
				_ = markErr
			}
			if opts.FailFast {
				writeSourceRun(ctx, store, sourceID, opts.RunGroupID, nowUTC, time.Since(start), result, fmt.Errorf("%s", truncated))
				sourceRunWritten = true
				return result, fmt.Errorf("processing item %s: %w", item.RawID, itemErr)
			}
		}
	}

	var runErr error
	if result.Errors > 0 && !opts.AllowIngestErrors {
		runErr = fmt.Errorf("%d item(s) failed during ingest", result.Errors)
	}
	writeSourceRun(ctx, store, sourceID, opts.RunGroupID, nowUTC, time.Since(start), result, runErr)
	sourceRunWritten = true

	return result, nil
}

// processItem runs one raw item through normalize -> suppress|correlate.
func processItem(ctx context.Context, store Store, item types.RawItem, setup SourceSetup, sourceRules []types.SuppressionRule, opts Options, nowUTC time.Time, result *Result) error {
	result.Processed++

	candidate, err := candidateFromRawItem(item)
	if err != nil {
		return fmt.Errorf("rebuilding candidate: %w", err)
	}

	event, err := normalize.Normalize(normalize.Input{
		RawItem:   item,
		Candidate: candidate,
		SourceID:  item.SourceID,
		Tier:      item.Tier,
		Trust: normalize.SourceTrustDefaults{
			TrustTier:           setup.TrustTier,
			ClassificationFloor: setup.ClassificationFloor,
			WeightingBias:       setup.WeightingBias,
		},
		NowUTC: nowUTC,
	})
	if err != nil {
		return fmt.Errorf("normalizing: %w", err)
	}

	if !opts.NoSuppress {
		suppressResult := suppression.Evaluate(item.SourceID, item.Tier, suppression.Item{
			Title:     event.Title,
			RawText:   event.RawText,
			URL:       item.URL,
			EventType: string(event.EventType),
		}, opts.GlobalSuppressionRules, setup.SuppressionRules)

		if suppressResult.IsSuppressed {
			ruleIDsJSON, _ := json.Marshal(suppressResult.MatchedRuleIDs)
			suppressedAt := nowUTC.UTC().Format(time.RFC3339)
			if err := store.MarkRawItemSuppressed(ctx, item.RawID, suppressResult.PrimaryRuleID, ruleIDsJSON, "ingest", suppressResult.PrimaryReasonCode, suppressedAt); err != nil {
				return fmt.Errorf("marking suppressed: %w", err)
			}
			event.SuppressionStatus = "SUPPRESSED"
			event.PrimaryRuleID = suppressResult.PrimaryRuleID
			event.ReasonCode = suppressResult.PrimaryReasonCode
			if err := store.InsertEvent(ctx, event); err != nil {
				return fmt.Errorf("persisting suppressed event: %w", err)
			}
			result.Suppressed++
			result.Events++
			return nil
		}
	}

	if err := store.InsertEvent(ctx, event); err != nil {
		return fmt.Errorf("persisting event: %w", err)
	}
	result.Events++

	linked := linker.Link(event.Title, event.RawText, opts.Facilities, opts.Lanes, opts.Shipments, opts.ShipmentLinkMax)
	scored := scoring.Score(scoring.Input{
		EventType:           event.EventType,
		Title:               event.Title,
		RawText:             event.RawText,
		Facilities:          facilitiesByID(opts.Facilities, linked.Facilities),
		Lanes:               lanesByID(opts.Lanes, linked.Lanes),
		Shipments:           shipmentsByID(opts.Shipments, linked.Shipments),
		TrustTier:           event.TrustTier,
		WeightingBias:        event.WeightingBias,
		ClassificationFloor:  event.ClassificationFloor,
		RiskKeywords:         opts.RiskKeywords,
		NowUTC:               nowUTC,
	})

	_, err = correlation.Upsert(ctx, store, correlation.Input{
		Event:       event,
		Linked:      linked,
		Scored:      scored,
		Tier:        event.Tier,
		SourceID:    event.SourceID,
		WindowHours: opts.AlertMergeWindowHours,
		NowUTC:      nowUTC,
	})
	if err != nil {
		return fmt.Errorf("correlating: %w", err)
	}
	result.Alerts++

	if err := store.MarkRawItemStatus(ctx, item.RawID, types.RawItemStatusNormalized); err != nil {
		return fmt.Errorf("marking normalized: %w", err)
	}
	return nil
}

// preflightSourceBatch rejects a malformed call before any item work starts.
// An empty item slice is legal (a source with nothing new to ingest).
func preflightSourceBatch(sourceID string, items []types.RawItem) error {
	if sourceID == "" {
		return fmt.Errorf("source_id must not be empty")
	}
	if items == nil {
		return fmt.Errorf("items must not be nil")
	}
	return nil
}

func writeSourceRun(ctx context.Context, store Store, sourceID, runGroupID string, nowUTC time.Time, duration time.Duration, result Result, runErr error) {
	status := types.RunStatusSuccess
	errMsg := ""
	var diagnostics []byte
	if runErr != nil {
		status = types.RunStatusFailure
		errMsg = types.TruncateError(runErr.Error())
		diagnostics, _ = json.Marshal(map[string]any{"errors": result.Errors})
	}

	_, _ = store.InsertSourceRun(ctx, types.SourceRun{
		RunGroupID:         runGroupID,
		SourceID:           sourceID,
		Phase:              types.PhaseIngest,
		RunAtUTC:           nowUTC.UTC().Format(time.RFC3339),
		Status:             status,
		Error:              errMsg,
		DurationSeconds:    duration.Seconds(),
		ItemsProcessed:     result.Processed,
		ItemsSuppressed:    result.Suppressed,
		ItemsEventsCreated: result.Events,
		ItemsAlertsTouched: result.Alerts,
		DiagnosticsJSON:    diagnostics,
	})
}

func selectSourceIDs(ctx context.Context, store Store, filter string) ([]string, error) {
	if filter != "" {
		return []string{filter}, nil
	}
	return store.ListSourceIDs(ctx)
}

func filterSinceHours(items []types.RawItem, sinceHours int, nowUTC time.Time) []types.RawItem {
	if sinceHours <= 0 {
		return items
	}
	cutoff := nowUTC.Add(-time.Duration(sinceHours) * time.Hour).Format(time.RFC3339)
	out := make([]types.RawItem, 0, len(items))
	for _, item := range items {
		if item.FetchedAtUTC >= cutoff {
			out = append(out, item)
		}
	}
	return out
}

func globalAndSourceRules(global, source []types.SuppressionRule) []types.SuppressionRule {
	out := make([]types.SuppressionRule, 0, len(global)+len(source))
	out = append(out, global...)
	out = append(out, source...)
	return out
}

func candidateFromRawItem(item types.RawItem) (types.RawItemCandidate, error) {
	var payload map[string]any
	if len(item.PayloadJSON) > 0 {
		if err := json.Unmarshal(item.PayloadJSON, &payload); err != nil {
			return types.RawItemCandidate{}, fmt.Errorf("unmarshaling payload: %w", err)
		}
	}
	return types.RawItemCandidate{
		CanonicalID:    item.CanonicalID,
		Title:          item.Title,
		URL:            item.URL,
		PublishedAtUTC: item.PublishedAtUTC,
		Payload:        payload,
	}, nil
}

func facilitiesByID(all []types.Facility, ids []string) []types.Facility {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	var out []types.Facility
	for _, f := range all {
		if set[f.FacilityID] {
			out = append(out, f)
		}
	}
	return out
}

func lanesByID(all []types.Lane, ids []string) []types.Lane {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	var out []types.Lane
	for _, l := range all {
		if set[l.LaneID] {
			out = append(out, l)
		}
	}
	return out
}

func shipmentsByID(all []types.Shipment, ids []string) []types.Shipment {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	var out []types.Shipment
	for _, sh := range all {
		if set[sh.ShipmentID] {
			out = append(out, sh)
		}
	}
	return out
}
