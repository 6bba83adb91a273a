// Package linker resolves an event's free text against the reference
// network (facilities, lanes, shipments), producing resolved entity ids
// plus confidence/provenance for each linking stage.
package linker

import (
	"regexp"
	"sort"
	"strings"

	"github.com/hardstop/hardstop/pkg/types"
)

const defaultMaxShipments = 50

var usStateAbbr = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR", "california": "CA",
	"colorado": "CO", "connecticut": "CT", "delaware": "DE", "florida": "FL", "georgia": "GA",
	"hawaii": "HI", "idaho": "ID", "illinois": "IL", "indiana": "IN", "iowa": "IA",
	"kansas": "KS", "kentucky": "KY", "louisiana": "LA", "maine": "ME", "maryland": "MD",
	"massachusetts": "MA", "michigan": "MI", "minnesota": "MN", "mississippi": "MS",
	"missouri": "MO", "montana": "MT", "nebraska": "NE", "nevada": "NV",
	"new hampshire": "NH", "new jersey": "NJ", "new mexico": "NM", "new york": "NY",
	"north carolina": "NC", "north dakota": "ND", "ohio": "OH", "oklahoma": "OK",
	"oregon": "OR", "pennsylvania": "PA", "rhode island": "RI", "south carolina": "SC",
	"south dakota": "SD", "tennessee": "TN", "texas": "TX", "utah": "UT", "vermont": "VT",
	"virginia": "VA", "washington": "WA", "west virginia": "WV", "wisconsin": "WI", "wyoming": "WY",
}

func normalizeState(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if len(s) == 2 {
		return strings.ToUpper(s)
	}
	if abbr, ok := usStateAbbr[strings.ToLower(s)]; ok {
		return abbr
	}
	return ""
}

var cityStateRe = regexp.MustCompile(`\b([A-Z][a-z]+(?:-[A-Z][a-z]+)?),\s*([A-Za-z]{2}|[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)\b`)

func extractCityState(text string) (city, state string, ok bool) {
	m := cityStateRe.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	st := normalizeState(m[2])
	if st == "" {
		return "", "", false
	}
	return strings.Trim(m[1], "."), st, true
}

// LaneMatch records how one lane matched the resolved facility set.
type LaneMatch struct {
	LaneID    string
	MatchType string // ORIGIN, DESTINATION, or BOTH
}

// Result is the Entity Linker's output, attached to an Event before
// scoring.
type Result struct {
	Facilities []string
	Lanes      []string
	LaneMatches []LaneMatch
	Shipments  []string

	ShipmentsTotalLinked int
	ShipmentsTruncated   bool

	FacilityConfidence float64
	FacilityProvenance string
}

// Link resolves an event's title+raw_text against the network tables
// already loaded into memory (facilities/lanes/shipments). maxShipments
// defaults to 50 when <= 0.
func Link(title, rawText string, facilities []types.Facility, lanes []types.Lane, shipments []types.Shipment, maxShipments int) Result {
	if maxShipments <= 0 {
		maxShipments = defaultMaxShipments
	}
	text := strings.TrimSpace(title + " " + rawText)

	var res Result
	matchedFacilityIDs, confidence, provenance := resolveFacilities(text, facilities)
	res.Facilities = matchedFacilityIDs
	res.FacilityConfidence = confidence
	res.FacilityProvenance = provenance

	if len(res.Facilities) == 0 {
		return res
	}

	facilitySet := make(map[string]bool, len(res.Facilities))
	for _, id := range res.Facilities {
		facilitySet[id] = true
	}

	var matchedLanes []types.Lane
	for _, lane := range lanes {
		if facilitySet[lane.OriginID] || facilitySet[lane.DestID] {
			matchedLanes = append(matchedLanes, lane)
		}
	}
	if len(matchedLanes) == 0 {
		return res
	}

	laneIDs := make([]string, 0, len(matchedLanes))
	laneIDSet := make(map[string]bool, len(matchedLanes))
	for _, lane := range matchedLanes {
		var sources []string
		if facilitySet[lane.OriginID] {
			sources = append(sources, "ORIGIN")
		}
		if facilitySet[lane.DestID] {
			sources = append(sources, "DESTINATION")
		}
		matchType := sources[0]
		if len(sources) == 2 {
			matchType = "BOTH"
		}
		res.LaneMatches = append(res.LaneMatches, LaneMatch{LaneID: lane.LaneID, MatchType: matchType})
		if !laneIDSet[lane.LaneID] {
			laneIDSet[lane.LaneID] = true
			laneIDs = append(laneIDs, lane.LaneID)
		}
	}
	sort.Strings(laneIDs)
	res.Lanes = laneIDs

	var laneShipments []types.Shipment
	for _, s := range shipments {
		if laneIDSet[s.LaneID] {
			laneShipments = append(laneShipments, s)
		}
	}
	if len(laneShipments) == 0 {
		return res
	}

	sort.SliceStable(laneShipments, func(i, j int) bool {
		pi, pj := priorityRank(laneShipments[i].Priority), priorityRank(laneShipments[j].Priority)
		if pi != pj {
			return pi > pj
		}
		ei, ej := etaOrFarFuture(laneShipments[i].ETAWindowTo), etaOrFarFuture(laneShipments[j].ETAWindowTo)
		return ei < ej
	})

	res.ShipmentsTotalLinked = len(laneShipments)
	top := laneShipments
	if len(top) > maxShipments {
		top = top[:maxShipments]
		res.ShipmentsTruncated = true
	}
	for _, s := range top {
		res.Shipments = append(res.Shipments, s.ShipmentID)
	}
	return res
}

func priorityRank(p types.ShipmentPriority) int {
	switch p {
	case types.ShipmentPriorityHigh:
		return 2
	case types.ShipmentPriorityNormal:
		return 1
	default:
		return 0
	}
}

func etaOrFarFuture(eta string) string {
	if eta == "" {
		return "9999-12-31"
	}
	return eta
}

func resolveFacilities(text string, facilities []types.Facility) ([]string, float64, string) {
	// Stage 1: exact facility_id substring.
	var exactIDs []string
	for _, f := range facilities {
		if f.FacilityID != "" && strings.Contains(text, f.FacilityID) {
			exactIDs = append(exactIDs, f.FacilityID)
		}
	}
	if len(exactIDs) > 0 {
		sort.Strings(exactIDs)
		return dedupeSorted(exactIDs), 0.95, "FACILITY_ID_EXACT"
	}

	// Stage 2: facility name substring (case-insensitive).
	textLower := strings.ToLower(text)
	var nameHits []string
	for _, f := range facilities {
		if f.Name != "" && strings.Contains(textLower, strings.ToLower(f.Name)) {
			nameHits = append(nameHits, f.FacilityID)
		}
	}
	if len(nameHits) > 0 {
		sort.Strings(nameHits)
		return dedupeSorted(nameHits), 0.85, "FACILITY_NAME_SUBSTRING"
	}

	// Stage 3/4/5: city/state extraction.
	city, state, ok := extractCityState(text)
	if !ok {
		return nil, 0, ""
	}
	var hits []types.Facility
	for _, f := range facilities {
		if f.City == "" {
			continue
		}
		if !strings.EqualFold(f.City, city) {
			continue
		}
		if stateMatches(f.State, state) {
			hits = append(hits, f)
		}
	}
	if len(hits) == 0 {
		return nil, 0, ""
	}
	if len(hits) == 1 {
		return []string{hits[0].FacilityID}, 0.70, "CITY_STATE"
	}

	for _, f := range hits {
		if strings.Contains(text, f.FacilityID) || (f.Name != "" && strings.Contains(textLower, strings.ToLower(f.Name))) {
			return []string{f.FacilityID}, 0.70, "CITY_STATE_WITH_SIGNAL"
		}
	}

	sorted := append([]types.Facility{}, hits...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Criticality != sorted[j].Criticality {
			return sorted[i].Criticality > sorted[j].Criticality
		}
		return types.FacilityTypePriority(sorted[i].Type) > types.FacilityTypePriority(sorted[j].Type)
	})
	return []string{sorted[0].FacilityID}, 0.45, "CITY_STATE_AMBIGUOUS"
}

func stateMatches(facilityState, wantedAbbr string) bool {
	if strings.EqualFold(facilityState, wantedAbbr) {
		return true
	}
	normalized := normalizeState(facilityState)
	return normalized != "" && normalized == wantedAbbr
}

func dedupeSorted(ids []string) []string {
	out := ids[:0:0]
	var last string
	for i, id := range ids {
		if i == 0 || id != last {
			out = append(out, id)
			last = id
		}
	}
	return out
}
