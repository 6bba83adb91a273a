package linker

import (
	"testing"

	"github.com/hardstop/hardstop/pkg/types"
)

func TestLink_ExactFacilityIDWins(t *testing.T) {
	facilities := []types.Facility{
		{FacilityID: "FAC-100", Name: "Avon Plant", City: "Avon", State: "IN", Criticality: 5, Type: types.FacilityPlant},
	}
	res := Link("Closure reported at FAC-100 today", "", facilities, nil, nil, 0)
	if res.FacilityProvenance != "FACILITY_ID_EXACT" {
		t.Fatalf("expected exact id match, got %s", res.FacilityProvenance)
	}
	if res.FacilityConfidence != 0.95 {
		t.Errorf("expected confidence 0.95, got %f", res.FacilityConfidence)
	}
}

func TestLink_NameSubstringFallback(t *testing.T) {
	facilities := []types.Facility{
		{FacilityID: "FAC-100", Name: "Avon Distribution Center", City: "Avon", State: "IN"},
	}
	res := Link("Strike impacting Avon Distribution Center operations", "", facilities, nil, nil, 0)
	if res.FacilityProvenance != "FACILITY_NAME_SUBSTRING" {
		t.Fatalf("expected name substring match, got %s", res.FacilityProvenance)
	}
}

func TestLink_CityStateUniqueHit(t *testing.T) {
	facilities := []types.Facility{
		{FacilityID: "FAC-1", Name: "Plant One", City: "Avon", State: "IN"},
	}
	res := Link("Flooding reported near Avon, IN this week", "", facilities, nil, nil, 0)
	if res.FacilityProvenance != "CITY_STATE" {
		t.Fatalf("expected CITY_STATE, got %s", res.FacilityProvenance)
	}
	if len(res.Facilities) != 1 || res.Facilities[0] != "FAC-1" {
		t.Errorf("expected FAC-1, got %v", res.Facilities)
	}
}

func TestLink_CityStateAmbiguousPicksHighestCriticalityThenType(t *testing.T) {
	facilities := []types.Facility{
		{FacilityID: "FAC-LOW", Name: "Low Priority DC", City: "Avon", State: "IN", Criticality: 3, Type: types.FacilityDC},
		{FacilityID: "FAC-HIGH", Name: "High Priority Plant", City: "Avon", State: "IN", Criticality: 8, Type: types.FacilityPlant},
	}
	res := Link("Weather warning issued for Avon, IN region", "", facilities, nil, nil, 0)
	if res.FacilityProvenance != "CITY_STATE_AMBIGUOUS" {
		t.Fatalf("expected ambiguous match, got %s", res.FacilityProvenance)
	}
	if len(res.Facilities) != 1 || res.Facilities[0] != "FAC-HIGH" {
		t.Errorf("expected tie-break to pick FAC-HIGH, got %v", res.Facilities)
	}
	if res.FacilityConfidence != 0.45 {
		t.Errorf("expected 0.45 confidence for ambiguous match, got %f", res.FacilityConfidence)
	}
}

func TestLink_CityStateAmbiguousWithNameInTextResolvesAtNameStage(t *testing.T) {
	// A facility name in the text is caught by the name-substring stage,
	// which runs before any city/state stage, so the ambiguous city/state
	// hit never gets to break the tie.
	facilities := []types.Facility{
		{FacilityID: "FAC-A", Name: "Facility A", City: "Avon", State: "IN", Criticality: 3},
		{FacilityID: "FAC-B", Name: "Facility B", City: "Avon", State: "IN", Criticality: 8},
	}
	res := Link("Closure near Avon, IN at Facility A gate", "", facilities, nil, nil, 0)
	if res.FacilityProvenance != "FACILITY_NAME_SUBSTRING" {
		t.Fatalf("expected name-substring match, got %s", res.FacilityProvenance)
	}
	if res.Facilities[0] != "FAC-A" {
		t.Errorf("expected the facility carrying the second signal, got %v", res.Facilities)
	}
}

func TestLink_CityStateMultipleNamesInTextLinksAllSortedAtNameStage(t *testing.T) {
	facilities := []types.Facility{
		{FacilityID: "FAC-LOW", Name: "Facility Low", City: "Avon", State: "IN", Criticality: 3},
		{FacilityID: "FAC-HIGH", Name: "Facility High", City: "Avon", State: "IN", Criticality: 8},
	}
	res := Link("Closure near Avon, IN at Facility Low and Facility High gates", "", facilities, nil, nil, 0)
	if res.FacilityProvenance != "FACILITY_NAME_SUBSTRING" {
		t.Fatalf("expected name-substring match, got %s", res.FacilityProvenance)
	}
	if len(res.Facilities) != 2 || res.Facilities[0] != "FAC-HIGH" || res.Facilities[1] != "FAC-LOW" {
		t.Errorf("expected both named facilities in sorted id order [FAC-HIGH FAC-LOW], got %v", res.Facilities)
	}
}

func TestLink_LanesAndShipmentsFollowFacilityMatch(t *testing.T) {
	facilities := []types.Facility{{FacilityID: "FAC-1", City: "Avon", State: "IN"}}
	lanes := []types.Lane{
		{LaneID: "LANE-1", OriginID: "FAC-1", DestID: "FAC-2"},
		{LaneID: "LANE-2", OriginID: "FAC-9", DestID: "FAC-1"},
	}
	shipments := []types.Shipment{
		{ShipmentID: "SHIP-LOW", LaneID: "LANE-1", Priority: types.ShipmentPriorityLow, ETAWindowTo: "2026-08-01T00:00:00Z"},
		{ShipmentID: "SHIP-HIGH", LaneID: "LANE-1", Priority: types.ShipmentPriorityHigh, ETAWindowTo: "2026-08-05T00:00:00Z"},
	}
	res := Link("Flooding near Avon, IN facilities", "", facilities, lanes, shipments, 0)

	if len(res.Lanes) != 2 {
		t.Fatalf("expected both lanes linked, got %v", res.Lanes)
	}
	if len(res.Shipments) != 2 || res.Shipments[0] != "SHIP-HIGH" {
		t.Errorf("expected high priority shipment sorted first, got %v", res.Shipments)
	}
}

func TestLink_ShipmentsTruncatedWhenOverMax(t *testing.T) {
	facilities := []types.Facility{{FacilityID: "FAC-1", City: "Avon", State: "IN"}}
	lanes := []types.Lane{{LaneID: "LANE-1", OriginID: "FAC-1", DestID: "FAC-2"}}
	var shipments []types.Shipment
	for i := 0; i < 5; i++ {
		shipments = append(shipments, types.Shipment{ShipmentID: string(rune('A' + i)), LaneID: "LANE-1", Priority: types.ShipmentPriorityNormal})
	}
	res := Link("Flooding near Avon, IN", "", facilities, lanes, shipments, 2)
	if !res.ShipmentsTruncated {
		t.Error("expected truncation flag")
	}
	if res.ShipmentsTotalLinked != 5 {
		t.Errorf("expected total linked 5, got %d", res.ShipmentsTotalLinked)
	}
	if len(res.Shipments) != 2 {
		t.Errorf("expected 2 shipments after truncation, got %d", len(res.Shipments))
	}
}

func TestLink_NoFacilityMatchReturnsEmptyResult(t *testing.T) {
	res := Link("Quarterly earnings report released", "", nil, nil, nil, 0)
	if len(res.Facilities) != 0 || len(res.Lanes) != 0 || len(res.Shipments) != 0 {
		t.Error("expected no entities linked for unrelated text")
	}
}
