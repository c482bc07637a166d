package postgres

import (
	"context"
	"errors"
	"time"

	"yardops/yard-service/internal/store"

	"github.com/jackc/pgx/v5"
)

// RegisterServices inserts pending requests for a vehicle, one row per
// item in that item's area partition. The whole payload is one transaction
// so a bad area label leaves nothing behind.
func (s *Store) RegisterServices(ctx context.Context, input store.RegisterInput) error {
	if len(input.Items) == 0 {
		return store.ErrNoPendingRequests
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var exists bool
	row := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM vehicles WHERE vehicle_id = $1)`, input.VehicleID)
	if err = row.Scan(&exists); err != nil {
		return err
	}
	if !exists {
		err = store.ErrVehicleNotFound
		return err
	}

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	for _, item := range input.Items {
		var table string
		table, err = requestTable(item.Area)
		if err != nil {
			return err
		}
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO `+table+` (vehicle_id, service_type, requested_qty, observation, odometer, status, created_at)
			VALUES ($1, $2, $3, $4, $5, 'pending', $6)
		`, input.VehicleID, item.ServiceType, qty, input.Observation, input.Odometer, createdAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// ListPendingVehicles returns every vehicle that has at least one pending
// request in any area.
func (s *Store) ListPendingVehicles(ctx context.Context) ([]store.VehicleSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT v.vehicle_id, v.plate, v.company
		FROM vehicles v
		WHERE EXISTS (SELECT 1 FROM service_requests_tire WHERE vehicle_id = v.vehicle_id AND status = 'pending')
			OR EXISTS (SELECT 1 FROM service_requests_align WHERE vehicle_id = v.vehicle_id AND status = 'pending')
			OR EXISTS (SELECT 1 FROM service_requests_maint WHERE vehicle_id = v.vehicle_id AND status = 'pending')
		ORDER BY v.plate ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []store.VehicleSummary
	for rows.Next() {
		var v store.VehicleSummary
		if err := rows.Scan(&v.VehicleID, &v.Plate, &v.Company); err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return vehicles, nil
}

// PendingAreas returns the set of areas with at least one pending request
// for the vehicle, plus the vehicle's entry odometer (0 when none).
func (s *Store) PendingAreas(ctx context.Context, vehicleID int64) (store.PendingAreas, error) {
	result := store.PendingAreas{Areas: []string{}}
	for _, area := range areaOrder {
		table := requestTables[area]
		var exists bool
		row := s.pool.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM `+table+` WHERE vehicle_id = $1 AND status = 'pending')
		`, vehicleID)
		if err := row.Scan(&exists); err != nil {
			return store.PendingAreas{}, err
		}
		if exists {
			result.Areas = append(result.Areas, area)
		}
	}

	odometer, err := s.firstPendingOdometer(ctx, s.pool, vehicleID)
	if err != nil {
		return store.PendingAreas{}, err
	}
	result.Odometer = odometer
	return result, nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// firstPendingOdometer picks the odometer recorded on any pending request
// of the vehicle (arbitrary tie-break), used as the entry odometer at
// allocation time.
func (s *Store) firstPendingOdometer(ctx context.Context, q rowQuerier, vehicleID int64) (int64, error) {
	var odometer int64
	row := q.QueryRow(ctx, `
		SELECT odometer FROM (
			SELECT odometer, created_at FROM service_requests_tire WHERE vehicle_id = $1 AND status = 'pending'
			UNION ALL
			SELECT odometer, created_at FROM service_requests_align WHERE vehicle_id = $1 AND status = 'pending'
			UNION ALL
			SELECT odometer, created_at FROM service_requests_maint WHERE vehicle_id = $1 AND status = 'pending'
		) pending
		ORDER BY created_at ASC
		LIMIT 1
	`, vehicleID)
	if err := row.Scan(&odometer); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return odometer, nil
}

// CompletedServices flattens finalized requests across the three area
// partitions for executions finished inside [start, end].
func (s *Store) CompletedServices(ctx context.Context, start, end time.Time) ([]store.CompletedRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT area, request_id, vehicle_id, plate, service_type, executed_qty, odometer, finished_at FROM (
			SELECT 'tire' AS area, r.request_id, r.vehicle_id, v.plate, r.service_type,
				COALESCE(r.executed_qty, 0) AS executed_qty, r.odometer, e.finished_at
			FROM service_requests_tire r
			JOIN executions e ON e.execution_id = r.execution_id
			JOIN vehicles v ON v.vehicle_id = r.vehicle_id
			WHERE r.status = 'finalized' AND e.finished_at >= $1 AND e.finished_at < $2
			UNION ALL
			SELECT 'align', r.request_id, r.vehicle_id, v.plate, r.service_type,
				COALESCE(r.executed_qty, 0), r.odometer, e.finished_at
			FROM service_requests_align r
			JOIN executions e ON e.execution_id = r.execution_id
			JOIN vehicles v ON v.vehicle_id = r.vehicle_id
			WHERE r.status = 'finalized' AND e.finished_at >= $1 AND e.finished_at < $2
			UNION ALL
			SELECT 'maint', r.request_id, r.vehicle_id, v.plate, r.service_type,
				COALESCE(r.executed_qty, 0), r.odometer, e.finished_at
			FROM service_requests_maint r
			JOIN executions e ON e.execution_id = r.execution_id
			JOIN vehicles v ON v.vehicle_id = r.vehicle_id
			WHERE r.status = 'finalized' AND e.finished_at >= $1 AND e.finished_at < $2
		) completed
		ORDER BY finished_at ASC, area ASC, request_id ASC
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []store.CompletedRow
	for rows.Next() {
		var r store.CompletedRow
		if err := rows.Scan(&r.Area, &r.RequestID, &r.VehicleID, &r.Plate, &r.ServiceType, &r.ExecutedQty, &r.Odometer, &r.FinishedAt); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
