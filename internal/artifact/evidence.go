package artifact

import (
	"fmt"
	"sort"
	"time"

	"github.com/hardstop/hardstop/pkg/types"
)

const incidentEvidenceVersion = "incident-evidence.v1"

// EvidenceEventInput describes the incoming event that triggered a merge.
type EvidenceEventInput struct {
	EventID       string
	EventType     string
	ObservedAtUTC string
	Title         string
	EventTimeUTC  string
	Facilities    []string
	Lanes         []string
	Shipments     []string
}

// BuildIncidentEvidence constructs the IncidentEvidence artifact explaining
// one correlation merge: reasons derived from correlation-key match, scope
// overlap, and a temporal-window check (delta_hours <= window_hours).
func BuildIncidentEvidence(alertID string, event EvidenceEventInput, correlationKey string, existing types.Alert, windowHours int, nowUTC time.Time) (types.IncidentEvidence, error) {
	overlapFacilities := intersect(existing.Scope.Facilities, event.Facilities)
	overlapLanes := intersect(existing.Scope.Lanes, event.Lanes)

	var reasons []types.MergeReason
	reasons = append(reasons, types.MergeReason{
		Code:    types.ReasonCorrelationKeyMatch,
		Message: fmt.Sprintf("event correlation key %q matches existing alert %s", correlationKey, alertID),
		Matched: true,
	})

	withinWindow, deltaHours := temporalOverlap(existing.LastSeenUTC, event.EventTimeUTC, event.ObservedAtUTC, windowHours)
	reasons = append(reasons, types.MergeReason{
		Code:    types.ReasonTemporalOverlap,
		Message: fmt.Sprintf("event observed within %.1fh of alert's last activity (window %dh)", deltaHours, windowHours),
		Matched: withinWindow,
		Details: map[string]any{"delta_hours": deltaHours, "window_hours": windowHours},
	})

	reasons = append(reasons, types.MergeReason{
		Code:    types.ReasonSharedFacilities,
		Message: fmt.Sprintf("%d shared facilities", len(overlapFacilities)),
		Matched: len(overlapFacilities) > 0,
		Details: map[string]any{"facilities": overlapFacilities},
	})
	reasons = append(reasons, types.MergeReason{
		Code:    types.ReasonSharedLanes,
		Message: fmt.Sprintf("%d shared lanes", len(overlapLanes)),
		Matched: len(overlapLanes) > 0,
		Details: map[string]any{"lanes": overlapLanes},
	})

	var summary []string
	for _, r := range reasons {
		if r.Matched {
			summary = append(summary, r.Message)
		}
	}

	evidence := types.IncidentEvidence{
		ArtifactVersion: incidentEvidenceVersion,
		Kind:            "IncidentEvidence",
		CorrelationKey:  correlationKey,
		GeneratedAtUTC:  nowUTC.UTC().Format(time.RFC3339),
		Inputs: types.EvidenceInputs{
			AlertID: alertID,
			Event: types.EvidenceEventSnapshot{
				EventID:       event.EventID,
				EventType:     event.EventType,
				ObservedAtUTC: event.ObservedAtUTC,
				Title:         event.Title,
			},
			ExistingAlert: types.EvidenceExistingAlertSnapshot{
				AlertID:      existing.AlertID,
				LastSeenUTC:  existing.LastSeenUTC,
				RootEventIDs: existing.RootEventIDs,
			},
		},
		MergeReasons: reasons,
		MergeSummary: summary,
		Overlap: types.EvidenceOverlap{
			Facilities: overlapFacilities,
			Lanes:      overlapLanes,
		},
		Scope: types.EvidenceScope{
			Existing: types.EvidenceScopeSnapshot{
				Facilities: existing.Scope.Facilities,
				Lanes:      existing.Scope.Lanes,
				Shipments:  existing.Scope.Shipments,
			},
			Incoming: types.EvidenceScopeSnapshot{
				Facilities: event.Facilities,
				Lanes:      event.Lanes,
				Shipments:  event.Shipments,
			},
		},
		WindowHours: windowHours,
	}

	hash, err := Hash(evidence)
	if err != nil {
		return types.IncidentEvidence{}, fmt.Errorf("hashing incident evidence: %w", err)
	}
	evidence.ArtifactHash = hash
	return evidence, nil
}

func intersect(a, b []string) []string {
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	var out []string
	seen := make(map[string]bool)
	for _, v := range b {
		if set[v] && !seen[v] {
			out = append(out, v)
			seen[v] = true
		}
	}
	sort.Strings(out)
	return out
}

// temporalOverlap reports whether the event's observed time falls within
// windowHours of the alert's last activity, and the signed delta in hours
// (event time minus last-seen). An event observed before the alert's
// last-seen time yields a negative delta, which always satisfies the
// window check — backfilled or out-of-order events always merge.
func temporalOverlap(lastSeenUTC, eventTimeUTC, observedAtUTC string, windowHours int) (bool, float64) {
	last, err := time.Parse(time.RFC3339, lastSeenUTC)
	if err != nil {
		return false, 0
	}
	eventTime := eventTimeUTC
	if eventTime == "" {
		eventTime = observedAtUTC
	}
	evt, err := time.Parse(time.RFC3339, eventTime)
	if err != nil {
		return false, 0
	}
	deltaHours := evt.Sub(last).Hours()
	return deltaHours <= float64(windowHours), deltaHours
}
