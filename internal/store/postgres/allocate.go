package postgres

import (
	"context"
	"errors"
	"time"

	"yardops/yard-service/internal/models"
	"yardops/yard-service/internal/store"

	"github.com/jackc/pgx/v5"
)

// AssignBay atomically opens an execution for a vehicle, moves the chosen
// area's pending requests to in_progress and occupies the bay. A vehicle
// is physically present in at most one bay, so allocation is per-area but
// per-vehicle exclusive: multi-area work is sequential.
func (s *Store) AssignBay(ctx context.Context, input store.AssignInput) (models.Execution, error) {
	table, err := requestTable(input.Area)
	if err != nil {
		return models.Execution{}, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Execution{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// Driver identity is snapshotted into the execution row so later
	// vehicle edits do not rewrite historical billing records.
	var driverName, driverContact string
	row := tx.QueryRow(ctx, `
		SELECT COALESCE(driver_name, ''), COALESCE(driver_contact, '')
		FROM vehicles
		WHERE vehicle_id = $1
		FOR UPDATE
	`, input.VehicleID)
	if err = row.Scan(&driverName, &driverContact); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrVehicleNotFound
		}
		return models.Execution{}, err
	}

	var active bool
	row = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM executions WHERE vehicle_id = $1 AND status = 'in_progress')
			OR EXISTS (SELECT 1 FROM service_requests_tire WHERE vehicle_id = $1 AND status = 'in_progress')
			OR EXISTS (SELECT 1 FROM service_requests_align WHERE vehicle_id = $1 AND status = 'in_progress')
			OR EXISTS (SELECT 1 FROM service_requests_maint WHERE vehicle_id = $1 AND status = 'in_progress')
	`, input.VehicleID)
	if err = row.Scan(&active); err != nil {
		return models.Execution{}, err
	}
	if active {
		err = store.ErrVehicleAlreadyActive
		return models.Execution{}, err
	}

	odometer, err := s.firstPendingOdometer(ctx, tx, input.VehicleID)
	if err != nil {
		return models.Execution{}, err
	}

	// Occupying asserts the bay was free; a concurrent allocation loses
	// here and the whole transaction aborts.
	tag, err := tx.Exec(ctx, `
		UPDATE bays SET occupied = TRUE WHERE bay_id = $1 AND occupied = FALSE
	`, input.BayID)
	if err != nil {
		return models.Execution{}, err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		row = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bays WHERE bay_id = $1)`, input.BayID)
		if err = row.Scan(&exists); err != nil {
			return models.Execution{}, err
		}
		if !exists {
			err = store.ErrBayNotFound
		} else {
			err = store.ErrBayBusy
		}
		return models.Execution{}, err
	}

	startedAt := input.AssignedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	execution := models.Execution{
		VehicleID:     input.VehicleID,
		BayID:         input.BayID,
		WorkerID:      input.WorkerID,
		Odometer:      odometer,
		Status:        models.ExecutionInProgress,
		StartedAt:     startedAt,
		AssignedBy:    input.OperatorID,
		DriverName:    driverName,
		DriverContact: driverContact,
	}
	row = tx.QueryRow(ctx, `
		INSERT INTO executions (
			vehicle_id, bay_id, worker_id, odometer, status, started_at,
			assigned_by, driver_name, driver_contact
		) VALUES ($1, $2, $3, $4, 'in_progress', $5, $6, $7, $8)
		RETURNING execution_id
	`, input.VehicleID, input.BayID, input.WorkerID, odometer, startedAt,
		input.OperatorID, driverName, driverContact)
	if err = row.Scan(&execution.ExecutionID); err != nil {
		return models.Execution{}, err
	}

	tag, err = tx.Exec(ctx, `
		UPDATE `+table+`
		SET status = 'in_progress',
			bay_id = $1,
			worker_id = $2,
			execution_id = $3,
			updated_at = $4
		WHERE vehicle_id = $5 AND status = ANY($6)
	`, input.BayID, input.WorkerID, execution.ExecutionID, startedAt, input.VehicleID,
		store.AllowedStatuses("assign"))
	if err != nil {
		return models.Execution{}, err
	}
	if tag.RowsAffected() == 0 {
		err = store.ErrNoPendingRequests
		return models.Execution{}, err
	}

	// The proactive-revision suggestion is stale once the vehicle is in
	// the yard; the external scheduler recomputes it after finalize.
	_, err = tx.Exec(ctx, `
		UPDATE vehicles SET next_revision_suggested_at = NULL WHERE vehicle_id = $1
	`, input.VehicleID)
	if err != nil {
		return models.Execution{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Execution{}, err
	}
	return execution, nil
}
