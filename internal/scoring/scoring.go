// Package scoring computes the network impact score and resulting
// classification for a linked event: a deterministic ordered accumulator,
// never a model.
package scoring

import (
	"fmt"
	"strings"
	"time"

	"github.com/hardstop/hardstop/pkg/types"
)

// RiskKeyword is a config-driven weighted keyword the event-type fallback
// rule scans for.
type RiskKeyword struct {
	Term   string
	Weight int
}

// DefaultRiskKeywords matches the documented default weighted keyword list.
func DefaultRiskKeywords() []RiskKeyword {
	return []RiskKeyword{
		{"SPILL", 1}, {"STRIKE", 1}, {"CLOSURE", 1}, {"CLOSED", 1}, {"SHUTDOWN", 1},
	}
}

// Input is everything the scorer needs about one event plus its linked
// network entities.
type Input struct {
	EventType types.EventType
	Title     string
	RawText   string

	Facilities []types.Facility
	Lanes      []types.Lane
	Shipments  []types.Shipment

	TrustTier           int
	WeightingBias       int
	ClassificationFloor int

	RiskKeywords []RiskKeyword
	NowUTC       time.Time
}

// Result is the scorer's output: the final score, the ordered breakdown of
// contributing rules, and the resulting classification.
type Result struct {
	Score          int
	Breakdown      []string
	Classification types.Classification
}

var highImpactEventTypes = map[types.EventType]bool{
	types.EventTypeSpill:   true,
	types.EventTypeStrike:  true,
	types.EventTypeClosure: true,
}

// Score runs the ordered rule accumulator and maps the result to a
// classification, enforcing the source's classification floor.
func Score(in Input) Result {
	var score int
	var breakdown []string

	for _, f := range in.Facilities {
		if f.Criticality >= 7 {
			score += 2
			breakdown = append(breakdown, fmt.Sprintf("+2: Facility criticality_score >= 7 (%s=%d)", f.FacilityID, f.Criticality))
			break
		}
	}

	for _, l := range in.Lanes {
		if l.VolumeScore >= 7 {
			score++
			breakdown = append(breakdown, fmt.Sprintf("+1: Lane volume_score >= 7 (%s=%d)", l.LaneID, l.VolumeScore))
			break
		}
	}

	if len(in.Shipments) > 0 {
		var priorityShipments []types.Shipment
		for _, s := range in.Shipments {
			if s.Priority == types.ShipmentPriorityHigh {
				priorityShipments = append(priorityShipments, s)
			}
		}
		if len(priorityShipments) > 0 {
			score++
			breakdown = append(breakdown, fmt.Sprintf("+1: Priority shipments found (%d total)", len(priorityShipments)))

			if len(priorityShipments) >= 5 {
				score++
				breakdown = append(breakdown, fmt.Sprintf("+1: >=5 priority shipments (%d)", len(priorityShipments)))
			}

			nearTerm := 0
			for _, s := range priorityShipments {
				if isETAWithinWindow(s.ETAWindowTo, in.NowUTC) {
					nearTerm++
				}
			}
			if nearTerm > 0 {
				score++
				breakdown = append(breakdown, fmt.Sprintf("+1: Priority shipment ETA within window (%d shipments)", nearTerm))
			}
		}
		if len(in.Shipments) >= 10 {
			score++
			breakdown = append(breakdown, fmt.Sprintf("+1: Shipment count >= 10 (%d)", len(in.Shipments)))
		}
	}

	if highImpactEventTypes[in.EventType] {
		score++
		breakdown = append(breakdown, fmt.Sprintf("+1: Event type in high-impact types (%s)", in.EventType))
	} else {
		keywords := in.RiskKeywords
		if keywords == nil {
			keywords = DefaultRiskKeywords()
		}
		text := strings.ToUpper(in.Title + " " + in.RawText)
		var matched []string
		total := 0
		for _, kw := range keywords {
			if strings.Contains(text, kw.Term) {
				matched = append(matched, kw.Term)
				total += kw.Weight
			}
		}
		if len(matched) > 0 {
			score += total
			breakdown = append(breakdown, fmt.Sprintf("+%d: High-impact keywords detected (%s)", total, strings.Join(matched, ", ")))
		}
	}

	if len(breakdown) == 0 {
		breakdown = append(breakdown, "No impact factors detected")
	}

	switch in.TrustTier {
	case 3:
		score++
		breakdown = append(breakdown, "+1: Trust tier 3 bonus (official/government source)")
	case 1:
		score--
		breakdown = append(breakdown, "-1: Trust tier 1 penalty (lower trust source)")
	}

	if in.WeightingBias != 0 {
		score += in.WeightingBias
		sign := "+"
		if in.WeightingBias < 0 {
			sign = ""
		}
		breakdown = append(breakdown, fmt.Sprintf("%s%d: Weighting bias (manual adjustment)", sign, in.WeightingBias))
	}

	original := score
	if score > 10 {
		score = 10
	}
	if score < 0 {
		score = 0
	}
	if score != original {
		breakdown = append(breakdown, fmt.Sprintf("Capped at %d (was %d)", score, original))
	}

	classification := mapScoreToClassification(score)
	if types.Classification(in.ClassificationFloor) > classification {
		classification = types.Classification(in.ClassificationFloor)
		breakdown = append(breakdown, "Classification floor applied")
	}

	return Result{Score: score, Breakdown: breakdown, Classification: classification}
}

func mapScoreToClassification(score int) types.Classification {
	switch {
	case score >= 4:
		return types.ClassificationImpactful
	case score >= 2:
		return types.ClassificationRelevant
	default:
		return types.ClassificationInteresting
	}
}

var etaLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02T15:04:05Z0700",
}

// parseETA never panics on a malformed string; it returns (zero, false).
func parseETA(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if len(raw) == 10 && strings.Count(raw, "-") == 2 {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, false
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, time.UTC), true
	}
	for _, layout := range etaLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			if t.Location() == time.UTC || t.Location().String() == "" {
				t = t.UTC()
			}
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// isETAWithinWindow checks whether an ETA falls within [-7d, +48h] of now,
// accommodating late shipments as well as near-term ones.
func isETAWithinWindow(eta string, now time.Time) bool {
	t, ok := parseETA(eta)
	if !ok {
		return false
	}
	diff := t.Sub(now)
	return diff >= -7*24*time.Hour && diff <= 48*time.Hour
}
