// Package normalize turns a fetched RawItemCandidate into a canonical Event:
// event type classification, location hint extraction, and trust-weighting
// field injection from source config.
package normalize

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/hardstop/hardstop/internal/idgen"
	"github.com/hardstop/hardstop/pkg/types"
)

type keywordSet struct {
	eventType types.EventType
	keywords  []string
}

// eventTypeKeywords is scanned in order; first match wins.
var eventTypeKeywords = []keywordSet{
	{types.EventTypeWeather, []string{
		"hurricane", "tornado", "flood", "storm", "blizzard", "snow", "ice",
		"warning", "watch", "alert", "severe weather", "thunderstorm",
		"wind", "hail", "freeze", "frost", "heat", "drought",
	}},
	{types.EventTypeSpill, []string{
		"spill", "leak", "contamination", "chemical release", "hazardous material",
		"oil spill", "toxic", "pollution",
	}},
	{types.EventTypeStrike, []string{
		"strike", "labor dispute", "work stoppage", "union", "walkout",
		"picketing", "lockout",
	}},
	{types.EventTypeClosure, []string{
		"closure", "closed", "shutdown", "shut down", "suspended", "halted",
		"blocked", "barricade", "evacuation", "emergency closure",
	}},
	{types.EventTypeReg, []string{
		"regulation", "regulatory", "compliance", "violation", "fine", "penalty",
		"inspection", "audit", "sanction", "ban", "prohibition",
	}},
	{types.EventTypeRecall, []string{
		"recall", "recalled", "withdrawal", "removed from market", "voluntary recall",
	}},
}

// ExtractEventType scans title+body against the ordered keyword list,
// first match wins, else OTHER.
func ExtractEventType(title, body string) types.EventType {
	combined := strings.ToLower(title + " " + body)
	for _, set := range eventTypeKeywords {
		for _, kw := range set.keywords {
			if strings.Contains(combined, kw) {
				return set.eventType
			}
		}
	}
	return types.EventTypeOther
}

var cityStateRe = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*),\s+([A-Z]{2}|[A-Z][a-z]+)\b`)

var locationPayloadFields = []string{"areaDesc", "location", "area", "region", "city", "state"}
var locationTextFields = []string{"description", "summary", "content", "title"}

// GeoMetadata is an optional source-config-provided location override.
type GeoMetadata struct {
	City, State, Country string
}

// ExtractLocationHint tries geo metadata first, then payload location
// fields, then a "City, ST" regex over description/title/summary/content.
func ExtractLocationHint(payload map[string]any, geo *GeoMetadata) string {
	if geo != nil {
		var parts []string
		if geo.City != "" {
			parts = append(parts, geo.City)
		}
		if geo.State != "" {
			parts = append(parts, geo.State)
		}
		if geo.Country != "" {
			parts = append(parts, geo.Country)
		}
		if len(parts) > 0 {
			return strings.Join(parts, ", ")
		}
	}

	for _, field := range locationPayloadFields {
		if v, ok := payload[field]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}

	for _, field := range locationTextFields {
		v, ok := payload[field]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok || s == "" {
			continue
		}
		if m := cityStateRe.FindStringSubmatch(s); m != nil {
			return m[1] + ", " + m[2]
		}
	}
	return ""
}

// SourceTrustDefaults are injected onto an event when a source config does
// not override them.
type SourceTrustDefaults struct {
	TrustTier           int
	ClassificationFloor int
	WeightingBias       int
}

// DefaultTrust matches the documented normalization defaults.
func DefaultTrust() SourceTrustDefaults {
	return SourceTrustDefaults{TrustTier: 2, ClassificationFloor: 0, WeightingBias: 0}
}

// Input is everything the normalizer needs to build one Event from one
// RawItem.
type Input struct {
	RawItem   types.RawItem
	Candidate types.RawItemCandidate
	SourceID  string
	Tier      types.SourceTier
	Trust     SourceTrustDefaults
	Geo       *GeoMetadata
	NowUTC    time.Time
}

// Normalize builds the canonical Event for one raw item. Event ids are
// deterministic under a pushed idgen context, else UUID-based.
func Normalize(in Input) (types.Event, error) {
	title := in.Candidate.Title
	if title == "" {
		title = stringField(in.Candidate.Payload, "title")
	}

	var textParts []string
	if title != "" {
		textParts = append(textParts, title)
	}
	for _, field := range []string{"summary", "description", "content"} {
		if v := stringField(in.Candidate.Payload, field); v != "" {
			textParts = append(textParts, v)
		}
	}
	rawText := strings.Join(textParts, " ")

	eventType := ExtractEventType(title, rawText)
	locationHint := ExtractLocationHint(in.Candidate.Payload, in.Geo)

	var entitiesJSON []byte
	if locationHint != "" {
		b, err := json.Marshal(map[string]string{"location": locationHint})
		if err != nil {
			return types.Event{}, err
		}
		entitiesJSON = b
	}

	payloadJSON, err := json.Marshal(in.Candidate.Payload)
	if err != nil {
		return types.Event{}, err
	}

	return types.Event{
		EventID:             idgen.NewEventID(),
		RawID:                in.RawItem.RawID,
		SourceID:             in.SourceID,
		Tier:                 in.Tier,
		EventType:            eventType,
		EventTimeUTC:         in.Candidate.PublishedAtUTC,
		LocationHint:         locationHint,
		Title:                title,
		RawText:              rawText,
		EntitiesJSON:         entitiesJSON,
		EventPayloadJSON:     payloadJSON,
		TrustTier:            in.Trust.TrustTier,
		ClassificationFloor:  in.Trust.ClassificationFloor,
		WeightingBias:        in.Trust.WeightingBias,
		CreatedAtUTC:         in.NowUTC.UTC().Format(time.RFC3339),
	}, nil
}

func stringField(payload map[string]any, key string) string {
	if v, ok := payload[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
