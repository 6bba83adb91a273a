package correlation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hardstop/hardstop/internal/artifact"
	"github.com/hardstop/hardstop/internal/idgen"
	"github.com/hardstop/hardstop/internal/linker"
	"github.com/hardstop/hardstop/internal/scoring"
	"github.com/hardstop/hardstop/pkg/types"
)

// AlertStore is the subset of internal/store.Store the builder needs.
// Declared as an interface so alertbuilder_test.go can substitute a fake
// without touching a real database.
type AlertStore interface {
	FindMostRecentAlertInWindow(ctx context.Context, correlationKey, sinceISO string) (*types.Alert, error)
	InsertAlert(ctx context.Context, a types.Alert) error
	UpdateAlert(ctx context.Context, a types.Alert) error
}

// Input bundles everything the builder needs to upsert an Alert from one
// normalized, linked, scored event.
type Input struct {
	Event   types.Event
	Linked  linker.Result
	Scored  scoring.Result
	Tier    types.SourceTier
	SourceID string

	WindowHours int
	NowUTC      time.Time
}

// Outcome is what Upsert produced: the resulting alert, whether it was a
// correlation hit (merge) or miss (create), and — on a merge — the
// IncidentEvidence artifact explaining it.
type Outcome struct {
	Alert    types.Alert
	Action   types.CorrelationAction
	Evidence *types.IncidentEvidence
}

// Upsert looks up the most recent alert sharing in.Event's correlation key
// within the merge window; on a miss it creates a new alert, on a hit it
// merges into the existing one and builds an IncidentEvidence artifact
// explaining the merge.
func Upsert(ctx context.Context, store AlertStore, in Input) (Outcome, error) {
	windowHours := in.WindowHours
	if windowHours <= 0 {
		windowHours = 168
	}
	nowUTC := in.NowUTC
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}

	key := BuildKey(in.Event.EventType, in.Event.Title, in.Event.RawText, in.Linked.Facilities, in.Linked.Lanes)
	sinceISO := nowUTC.Add(-time.Duration(windowHours) * time.Hour).Format(time.RFC3339)

	existing, err := store.FindMostRecentAlertInWindow(ctx, key, sinceISO)
	if err != nil {
		return Outcome{}, fmt.Errorf("looking up existing alert: %w", err)
	}

	if existing == nil {
		alert := newAlert(key, in, nowUTC)
		if err := store.InsertAlert(ctx, alert); err != nil {
			return Outcome{}, fmt.Errorf("inserting new alert: %w", err)
		}
		return Outcome{Alert: alert, Action: types.CorrelationCreated}, nil
	}

	merged, evidence, err := mergeAlert(*existing, in, key, windowHours, nowUTC)
	if err != nil {
		return Outcome{}, fmt.Errorf("merging alert: %w", err)
	}
	if err := store.UpdateAlert(ctx, merged); err != nil {
		return Outcome{}, fmt.Errorf("updating merged alert: %w", err)
	}
	return Outcome{Alert: merged, Action: types.CorrelationUpdated, Evidence: &evidence}, nil
}

func newAlert(key string, in Input, nowUTC time.Time) types.Alert {
	nowISO := nowUTC.Format(time.RFC3339)
	return types.Alert{
		AlertID:        idgen.NewAlertID(),
		Classification: in.Scored.Classification,
		Status:         types.AlertStatusOpen,
		RiskType:       string(in.Event.EventType),
		Summary:        buildSummary(in.Event),
		RootEventID:    in.Event.EventID,
		RootEventIDs:   []string{in.Event.EventID},
		CorrelationKey: key,
		CorrelationAction: types.CorrelationCreated,
		FirstSeenUTC:   nowISO,
		LastSeenUTC:    nowISO,
		UpdateCount:    0,
		ImpactScore:    in.Scored.Score,
		Scope: types.AlertScope{
			Facilities:           in.Linked.Facilities,
			Lanes:                in.Linked.Lanes,
			Shipments:            in.Linked.Shipments,
			ShipmentsTotalLinked: in.Linked.ShipmentsTotalLinked,
			ShipmentsTruncated:   in.Linked.ShipmentsTruncated,
		},
		LastUpdater: types.UpdaterProvenance{
			Tier:      in.Tier,
			SourceID:  in.SourceID,
			TrustTier: in.Event.TrustTier,
		},
		Reasoning:          buildReasoning(in.Scored.Breakdown),
		RecommendedActions: recommendedActions(in.Scored.Classification),
	}
}

func mergeAlert(existing types.Alert, in Input, key string, windowHours int, nowUTC time.Time) (types.Alert, types.IncidentEvidence, error) {
	evidence, err := artifact.BuildIncidentEvidence(existing.AlertID, artifact.EvidenceEventInput{
		EventID:       in.Event.EventID,
		EventType:     string(in.Event.EventType),
		ObservedAtUTC: in.Event.CreatedAtUTC,
		Title:         in.Event.Title,
		EventTimeUTC:  in.Event.EventTimeUTC,
		Facilities:    in.Linked.Facilities,
		Lanes:         in.Linked.Lanes,
		Shipments:     in.Linked.Shipments,
	}, key, existing, windowHours, nowUTC)
	if err != nil {
		return types.Alert{}, types.IncidentEvidence{}, err
	}

	merged := existing
	merged.Classification = maxClassification(existing.Classification, in.Scored.Classification)
	merged.ImpactScore = in.Scored.Score
	merged.Status = types.AlertStatusUpdated
	merged.CorrelationAction = types.CorrelationUpdated
	merged.UpdateCount = existing.UpdateCount + 1
	merged.RootEventIDs = dedupeSorted(append(append([]string{}, existing.RootEventIDs...), in.Event.EventID))
	merged.LastSeenUTC = nowUTC.Format(time.RFC3339)
	merged.Scope = mergeScope(existing.Scope, in.Linked)
	merged.LastUpdater = types.UpdaterProvenance{
		Tier:      in.Tier,
		SourceID:  in.SourceID,
		TrustTier: in.Event.TrustTier,
	}
	merged.Evidence = &types.AlertEvidenceRef{
		ArtifactHash: evidence.ArtifactHash,
		MergeSummary: evidence.MergeSummary,
	}

	return merged, evidence, nil
}

// mergeScope unions existing and incoming scope entries, deduping while
// preserving first-seen order (existing entries keep their original
// position; only genuinely new ids are appended).
func mergeScope(existing types.AlertScope, linked linker.Result) types.AlertScope {
	return types.AlertScope{
		Facilities:           dedupePreserveOrder(existing.Facilities, linked.Facilities),
		Lanes:                dedupePreserveOrder(existing.Lanes, linked.Lanes),
		Shipments:            dedupePreserveOrder(existing.Shipments, linked.Shipments),
		ShipmentsTotalLinked: existing.ShipmentsTotalLinked + linked.ShipmentsTotalLinked,
		ShipmentsTruncated:   existing.ShipmentsTruncated || linked.ShipmentsTruncated,
	}
}

func dedupePreserveOrder(base, incoming []string) []string {
	seen := make(map[string]bool, len(base)+len(incoming))
	out := make([]string, 0, len(base)+len(incoming))
	for _, v := range base {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, v := range incoming {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func dedupeSorted(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func maxClassification(a, b types.Classification) types.Classification {
	if b > a {
		return b
	}
	return a
}

func buildSummary(e types.Event) string {
	if e.Title != "" {
		return e.Title
	}
	return fmt.Sprintf("%s event", e.EventType)
}

func buildReasoning(breakdown []string) string {
	reasoning := ""
	for i, line := range breakdown {
		if i > 0 {
			reasoning += "; "
		}
		reasoning += line
	}
	return reasoning
}

func recommendedActions(c types.Classification) []string {
	switch c {
	case types.ClassificationImpactful:
		return []string{"Notify network operations lead", "Review affected lanes for rerouting"}
	case types.ClassificationRelevant:
		return []string{"Monitor for escalation"}
	default:
		return nil
	}
}
