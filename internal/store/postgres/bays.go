package postgres

import (
	"context"
	"database/sql"
	"errors"

	"yardops/yard-service/internal/models"
	"yardops/yard-service/internal/store"

	"github.com/jackc/pgx/v5"
)

// ListFreeBays returns unoccupied bays. Bay id 0 is reserved and never
// appears: ids start at 1 by schema constraint.
func (s *Store) ListFreeBays(ctx context.Context) ([]models.Bay, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT bay_id, area, occupied
		FROM bays
		WHERE occupied = FALSE
		ORDER BY bay_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bays []models.Bay
	for rows.Next() {
		var bay models.Bay
		if err := rows.Scan(&bay.BayID, &bay.Area, &bay.Occupied); err != nil {
			return nil, err
		}
		bays = append(bays, bay)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bays, nil
}

// ListWorkers returns the yard staff available for allocation.
func (s *Store) ListWorkers(ctx context.Context) ([]models.Worker, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT worker_id, name
		FROM workers
		ORDER BY name ASC, worker_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workers []models.Worker
	for rows.Next() {
		var worker models.Worker
		if err := rows.Scan(&worker.WorkerID, &worker.Name); err != nil {
			return nil, err
		}
		workers = append(workers, worker)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return workers, nil
}

// ActiveBays returns the per-bay snapshot: every bay plus, when occupied,
// its in-progress execution and vehicle.
func (s *Store) ActiveBays(ctx context.Context) ([]store.BaySnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT b.bay_id, b.area, b.occupied,
			e.execution_id, e.vehicle_id, e.worker_id, e.odometer, e.status, e.started_at,
			e.driver_name, e.driver_contact,
			v.plate, v.company
		FROM bays b
		LEFT JOIN executions e ON e.bay_id = b.bay_id AND e.status = 'in_progress'
		LEFT JOIN vehicles v ON v.vehicle_id = e.vehicle_id
		ORDER BY b.bay_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []store.BaySnapshot
	for rows.Next() {
		var snap store.BaySnapshot
		var execID, vehicleID, workerID, odometer sql.NullInt64
		var execStatus, driverName, driverContact, plate, company sql.NullString
		var startedAt sql.NullTime
		if err := rows.Scan(&snap.Bay.BayID, &snap.Bay.Area, &snap.Bay.Occupied,
			&execID, &vehicleID, &workerID, &odometer, &execStatus, &startedAt,
			&driverName, &driverContact, &plate, &company); err != nil {
			return nil, err
		}
		if execID.Valid {
			snap.Execution = &models.Execution{
				ExecutionID:   execID.Int64,
				VehicleID:     vehicleID.Int64,
				BayID:         snap.Bay.BayID,
				WorkerID:      workerID.Int64,
				Odometer:      odometer.Int64,
				Status:        nullString(execStatus),
				StartedAt:     startedAt.Time,
				DriverName:    nullString(driverName),
				DriverContact: nullString(driverContact),
			}
			snap.Vehicle = &store.VehicleSummary{
				VehicleID: vehicleID.Int64,
				Plate:     nullString(plate),
				Company:   nullString(company),
			}
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return snapshots, nil
}

// BayDetails returns the active execution on a bay together with every
// request bound to it, across all three area partitions.
func (s *Store) BayDetails(ctx context.Context, bayID int) (store.BayDetail, error) {
	var detail store.BayDetail
	var finishedAt sql.NullTime
	var finalizedBy sql.NullString
	row := s.pool.QueryRow(ctx, `
		SELECT e.execution_id, e.vehicle_id, e.bay_id, e.worker_id, e.odometer, e.status,
			e.started_at, e.finished_at, e.assigned_by, e.finalized_by,
			e.driver_name, e.driver_contact,
			v.plate, v.company
		FROM executions e
		JOIN vehicles v ON v.vehicle_id = e.vehicle_id
		WHERE e.bay_id = $1 AND e.status = 'in_progress'
	`, bayID)
	var assignedBy, driverName, driverContact, company sql.NullString
	if err := row.Scan(&detail.Execution.ExecutionID, &detail.Execution.VehicleID, &detail.Execution.BayID,
		&detail.Execution.WorkerID, &detail.Execution.Odometer, &detail.Execution.Status,
		&detail.Execution.StartedAt, &finishedAt, &assignedBy, &finalizedBy,
		&driverName, &driverContact, &detail.Vehicle.Plate, &company); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.BayDetail{}, store.ErrNoActiveExecution
		}
		return store.BayDetail{}, err
	}
	detail.Execution.FinishedAt = nullTimePtr(finishedAt)
	detail.Execution.AssignedBy = nullString(assignedBy)
	detail.Execution.FinalizedBy = nullString(finalizedBy)
	detail.Execution.DriverName = nullString(driverName)
	detail.Execution.DriverContact = nullString(driverContact)
	detail.Vehicle.VehicleID = detail.Execution.VehicleID
	detail.Vehicle.Company = nullString(company)

	requests, err := s.requestsByExecution(ctx, detail.Execution.ExecutionID)
	if err != nil {
		return store.BayDetail{}, err
	}
	detail.Requests = requests
	return detail, nil
}

func (s *Store) requestsByExecution(ctx context.Context, executionID int64) ([]models.ServiceRequest, error) {
	var requests []models.ServiceRequest
	for _, area := range areaOrder {
		table := requestTables[area]
		rows, err := s.pool.Query(ctx, `
			SELECT request_id, vehicle_id, service_type, requested_qty, executed_qty,
				observation, exec_observation, odometer, status, bay_id, worker_id, execution_id,
				added_by, created_at, updated_at
			FROM `+table+`
			WHERE execution_id = $1
			ORDER BY request_id ASC
		`, executionID)
		if err != nil {
			return nil, err
		}
		areaRequests, err := scanRequests(rows, area)
		if err != nil {
			return nil, err
		}
		requests = append(requests, areaRequests...)
	}
	return requests, nil
}

func scanRequests(rows pgx.Rows, area string) ([]models.ServiceRequest, error) {
	defer rows.Close()
	var requests []models.ServiceRequest
	for rows.Next() {
		var req models.ServiceRequest
		var executedQty, bayID, workerID, executionID sql.NullInt64
		var observation, execObservation, addedBy sql.NullString
		var updatedAt sql.NullTime
		if err := rows.Scan(&req.RequestID, &req.VehicleID, &req.ServiceType, &req.RequestedQty,
			&executedQty, &observation, &execObservation, &req.Odometer, &req.Status,
			&bayID, &workerID, &executionID, &addedBy, &req.CreatedAt, &updatedAt); err != nil {
			return nil, err
		}
		req.Area = area
		req.ExecutedQty = nullQtyPtr(executedQty)
		req.Observation = nullString(observation)
		req.ExecObservation = nullString(execObservation)
		req.AddedBy = nullString(addedBy)
		req.BayID = nullBayPtr(bayID)
		req.WorkerID = nullIntPtr(workerID)
		req.ExecutionID = nullIntPtr(executionID)
		req.UpdatedAt = nullTimePtr(updatedAt)
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return requests, nil
}
