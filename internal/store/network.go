package store

import (
	"context"
	"fmt"

	"github.com/hardstop/hardstop/pkg/types"
)

// NetworkLoader adapts a Store into a types.NetworkFixtureLoader, reading
// the reference network tables loaded once at startup from the CSV
// fixtures by the migration/seed step.
type NetworkLoader struct {
	store *Store
	ctx   context.Context
}

// NewNetworkLoader returns a types.NetworkFixtureLoader backed by this
// Store. The context is captured because the loader interface's methods
// take no context parameter.
func (s *Store) NewNetworkLoader(ctx context.Context) types.NetworkFixtureLoader {
	return &NetworkLoader{store: s, ctx: ctx}
}

func (l *NetworkLoader) LoadFacilities() ([]types.Facility, error) {
	rows, err := l.store.pool.Query(l.ctx, `
		SELECT facility_id, name, type, city, state, criticality FROM facilities ORDER BY facility_id
	`)
	if err != nil {
		return nil, fmt.Errorf("loading facilities: %w", err)
	}
	defer rows.Close()

	var out []types.Facility
	for rows.Next() {
		var f types.Facility
		if err := rows.Scan(&f.FacilityID, &f.Name, &f.Type, &f.City, &f.State, &f.Criticality); err != nil {
			return nil, fmt.Errorf("scanning facility: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (l *NetworkLoader) LoadLanes() ([]types.Lane, error) {
	rows, err := l.store.pool.Query(l.ctx, `
		SELECT lane_id, origin_id, dest_id, volume_score FROM lanes ORDER BY lane_id
	`)
	if err != nil {
		return nil, fmt.Errorf("loading lanes: %w", err)
	}
	defer rows.Close()

	var out []types.Lane
	for rows.Next() {
		var ln types.Lane
		if err := rows.Scan(&ln.LaneID, &ln.OriginID, &ln.DestID, &ln.VolumeScore); err != nil {
			return nil, fmt.Errorf("scanning lane: %w", err)
		}
		out = append(out, ln)
	}
	return out, rows.Err()
}

func (l *NetworkLoader) LoadShipments() ([]types.Shipment, error) {
	rows, err := l.store.pool.Query(l.ctx, `
		SELECT shipment_id, lane_id, priority, eta_window_from, eta_window_to FROM shipments ORDER BY shipment_id
	`)
	if err != nil {
		return nil, fmt.Errorf("loading shipments: %w", err)
	}
	defer rows.Close()

	var out []types.Shipment
	for rows.Next() {
		var sh types.Shipment
		if err := rows.Scan(&sh.ShipmentID, &sh.LaneID, &sh.Priority, &sh.ETAWindowFrom, &sh.ETAWindowTo); err != nil {
			return nil, fmt.Errorf("scanning shipment: %w", err)
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

// ReplaceNetworkFixture truncates and reloads the three reference tables
// from parsed fixture data, the load path a CSV-ingesting CLI command
// drives at startup.
func (s *Store) ReplaceNetworkFixture(ctx context.Context, facilities []types.Facility, lanes []types.Lane, shipments []types.Shipment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning network fixture reload: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE facilities, lanes, shipments CASCADE`); err != nil {
		return fmt.Errorf("truncating network tables: %w", err)
	}
	for _, f := range facilities {
		if _, err := tx.Exec(ctx, `
			INSERT INTO facilities (facility_id, name, type, city, state, criticality) VALUES ($1,$2,$3,$4,$5,$6)
		`, f.FacilityID, f.Name, f.Type, f.City, f.State, f.Criticality); err != nil {
			return fmt.Errorf("inserting facility %s: %w", f.FacilityID, err)
		}
	}
	for _, ln := range lanes {
		if _, err := tx.Exec(ctx, `
			INSERT INTO lanes (lane_id, origin_id, dest_id, volume_score) VALUES ($1,$2,$3,$4)
		`, ln.LaneID, ln.OriginID, ln.DestID, ln.VolumeScore); err != nil {
			return fmt.Errorf("inserting lane %s: %w", ln.LaneID, err)
		}
	}
	for _, sh := range shipments {
		if _, err := tx.Exec(ctx, `
			INSERT INTO shipments (shipment_id, lane_id, priority, eta_window_from, eta_window_to)
			VALUES ($1,$2,$3,$4,$5)
		`, sh.ShipmentID, sh.LaneID, sh.Priority, sh.ETAWindowFrom, sh.ETAWindowTo); err != nil {
			return fmt.Errorf("inserting shipment %s: %w", sh.ShipmentID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing network fixture reload: %w", err)
	}
	return nil
}
