package store_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/hardstop/hardstop/internal/store"
	"github.com/hardstop/hardstop/pkg/types"
)

func TestReplaceNetworkFixtureAndLoader_RoundTrips(t *testing.T) {
	pool := testPool(t)
	st := store.NewStore(pool)
	ctx := context.Background()

	facilityID := "fac-" + uuid.NewString()
	laneID := "lane-" + uuid.NewString()
	shipmentID := "ship-" + uuid.NewString()

	facilities := []types.Facility{{FacilityID: facilityID, Name: "Long Beach DC", Type: types.FacilityDC, City: "Long Beach", State: "CA", Criticality: 8}}
	lanes := []types.Lane{{LaneID: laneID, OriginID: facilityID, DestID: facilityID, VolumeScore: 5}}
	shipments := []types.Shipment{{ShipmentID: shipmentID, LaneID: laneID, Priority: types.ShipmentPriorityHigh, ETAWindowFrom: "2026-08-01T00:00:00Z", ETAWindowTo: "2026-08-02T00:00:00Z"}}

	if err := st.ReplaceNetworkFixture(ctx, facilities, lanes, shipments); err != nil {
		t.Fatal(err)
	}

	loader := st.NewNetworkLoader(ctx)

	gotFacilities, err := loader.LoadFacilities()
	if err != nil {
		t.Fatal(err)
	}
	if len(gotFacilities) != 1 || gotFacilities[0].FacilityID != facilityID {
		t.Errorf("expected 1 facility %s, got %+v", facilityID, gotFacilities)
	}

	gotLanes, err := loader.LoadLanes()
	if err != nil {
		t.Fatal(err)
	}
	if len(gotLanes) != 1 || gotLanes[0].LaneID != laneID {
		t.Errorf("expected 1 lane %s, got %+v", laneID, gotLanes)
	}

	gotShipments, err := loader.LoadShipments()
	if err != nil {
		t.Fatal(err)
	}
	if len(gotShipments) != 1 || gotShipments[0].ShipmentID != shipmentID {
		t.Errorf("expected 1 shipment %s, got %+v", shipmentID, gotShipments)
	}
}

func TestReplaceNetworkFixture_TruncatesPreviousContents(t *testing.T) {
	pool := testPool(t)
	st := store.NewStore(pool)
	ctx := context.Background()

	first := []types.Facility{{FacilityID: "fac-" + uuid.NewString(), Name: "Old DC", Type: types.FacilityDC, City: "Reno", State: "NV", Criticality: 3}}
	if err := st.ReplaceNetworkFixture(ctx, first, nil, nil); err != nil {
		t.Fatal(err)
	}

	second := []types.Facility{{FacilityID: "fac-" + uuid.NewString(), Name: "New DC", Type: types.FacilityDC, City: "Austin", State: "TX", Criticality: 6}}
	if err := st.ReplaceNetworkFixture(ctx, second, nil, nil); err != nil {
		t.Fatal(err)
	}

	loader := st.NewNetworkLoader(ctx)
	got, err := loader.LoadFacilities()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].FacilityID != second[0].FacilityID {
		t.Errorf("expected only the second fixture's single facility to remain, got %+v", got)
	}
}
