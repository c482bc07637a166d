package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"yardops/yard-service/internal/models"
	"yardops/yard-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// FinalizeBay closes the active execution on a bay: acknowledged requests
// are finalized with their executed quantities, requests left in_progress
// are swept to cancelled, the execution closes, the bay frees, and the
// outbox notifications are written — all in one transaction. The daily-km
// recomputation runs afterwards in its own transaction; its failure never
// rolls back the finalize.
func (s *Store) FinalizeBay(ctx context.Context, input store.FinalizeInput) error {
	vehicleID, err := s.finalizeTx(ctx, input)
	if err != nil {
		return err
	}

	if _, err := s.RecomputeDailyAverage(ctx, vehicleID); err != nil {
		log.Printf("daily-km recompute failed vehicle=%d: %v", vehicleID, err)
	}
	return nil
}

func (s *Store) finalizeTx(ctx context.Context, input store.FinalizeInput) (int64, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	execution, err := lockActiveExecution(ctx, tx, input.BayID)
	if err != nil {
		return 0, err
	}

	finishedAt := input.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = time.Now().UTC()
	}

	completedAreas := map[string]int{}
	for _, item := range input.Services {
		var table string
		table, err = requestTable(item.Area)
		if err != nil {
			return 0, err
		}
		var current string
		row := tx.QueryRow(ctx, `
			SELECT status FROM `+table+`
			WHERE request_id = $1 AND execution_id = $2
			FOR UPDATE
		`, item.RequestID, execution.ExecutionID)
		if err = row.Scan(&current); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				err = store.ErrRequestNotFound
			}
			return 0, err
		}
		if !store.ValidTransition("finalize", current) {
			err = store.ErrRequestNotFound
			return 0, err
		}
		_, err = tx.Exec(ctx, `
			UPDATE `+table+`
			SET status = 'finalized',
				executed_qty = $1,
				exec_observation = $2,
				updated_at = $3
			WHERE request_id = $4
		`, item.ExecutedQty, input.FinalObservation, finishedAt, item.RequestID)
		if err != nil {
			return 0, err
		}
		completedAreas[item.Area]++
	}

	// Implicit cancel: requests the payload did not acknowledge must not
	// dangle in_progress once the execution closes.
	for _, area := range areaOrder {
		table := requestTables[area]
		_, err = tx.Exec(ctx, `
			UPDATE `+table+`
			SET status = 'cancelled', updated_at = $1
			WHERE execution_id = $2 AND status = ANY($3)
		`, finishedAt, execution.ExecutionID, store.AllowedStatuses("sweep"))
		if err != nil {
			return 0, err
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE executions
		SET status = 'finalized', finished_at = $1, finalized_by = $2
		WHERE execution_id = $3
	`, finishedAt, input.OperatorID, execution.ExecutionID)
	if err != nil {
		return 0, err
	}

	_, err = tx.Exec(ctx, `UPDATE bays SET occupied = FALSE WHERE bay_id = $1`, input.BayID)
	if err != nil {
		return 0, err
	}

	for area, count := range completedAreas {
		if err = insertOutboxEvent(ctx, tx, "service.step_completed", map[string]any{
			"vehicle_id": execution.VehicleID,
			"bay_id":     input.BayID,
			"area":       area,
			"services":   count,
			"odometer":   execution.Odometer,
		}); err != nil {
			return 0, err
		}
	}

	var pendingLeft bool
	row := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM service_requests_tire WHERE vehicle_id = $1 AND status = 'pending')
			OR EXISTS (SELECT 1 FROM service_requests_align WHERE vehicle_id = $1 AND status = 'pending')
			OR EXISTS (SELECT 1 FROM service_requests_maint WHERE vehicle_id = $1 AND status = 'pending')
	`, execution.VehicleID)
	if err = row.Scan(&pendingLeft); err != nil {
		return 0, err
	}
	if !pendingLeft {
		if err = insertOutboxEvent(ctx, tx, "vehicle.ready_for_billing", map[string]any{
			"vehicle_id":   execution.VehicleID,
			"execution_id": execution.ExecutionID,
			"odometer":     execution.Odometer,
		}); err != nil {
			return 0, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	return execution.VehicleID, nil
}

// AddService inserts a request directly in_progress, bound to the bay's
// active execution and carrying its odometer and start timestamp.
func (s *Store) AddService(ctx context.Context, input store.AddServiceInput) (models.ServiceRequest, error) {
	table, err := requestTable(input.Area)
	if err != nil {
		return models.ServiceRequest{}, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.ServiceRequest{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	execution, err := lockActiveExecution(ctx, tx, input.BayID)
	if err != nil {
		return models.ServiceRequest{}, err
	}

	qty := input.Quantity
	if qty <= 0 {
		qty = 1
	}

	request := models.ServiceRequest{
		Area:         input.Area,
		VehicleID:    execution.VehicleID,
		ServiceType:  input.ServiceType,
		RequestedQty: qty,
		Odometer:     execution.Odometer,
		Status:       models.StatusInProgress,
		BayID:        &execution.BayID,
		WorkerID:     &execution.WorkerID,
		ExecutionID:  &execution.ExecutionID,
		AddedBy:      input.OperatorID,
		CreatedAt:    execution.StartedAt,
	}
	row := tx.QueryRow(ctx, `
		INSERT INTO `+table+` (
			vehicle_id, service_type, requested_qty, odometer, status,
			bay_id, worker_id, execution_id, added_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, 'in_progress', $5, $6, $7, $8, $9, $9)
		RETURNING request_id
	`, execution.VehicleID, input.ServiceType, qty, execution.Odometer,
		execution.BayID, execution.WorkerID, execution.ExecutionID, input.OperatorID,
		execution.StartedAt)
	if err = row.Scan(&request.RequestID); err != nil {
		return models.ServiceRequest{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.ServiceRequest{}, err
	}
	return request, nil
}

func lockActiveExecution(ctx context.Context, tx pgx.Tx, bayID int) (models.Execution, error) {
	var execution models.Execution
	row := tx.QueryRow(ctx, `
		SELECT execution_id, vehicle_id, bay_id, worker_id, odometer, status, started_at
		FROM executions
		WHERE bay_id = $1 AND status = 'in_progress'
		FOR UPDATE
	`, bayID)
	if err := row.Scan(&execution.ExecutionID, &execution.VehicleID, &execution.BayID,
		&execution.WorkerID, &execution.Odometer, &execution.Status, &execution.StartedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Execution{}, store.ErrNoActiveExecution
		}
		return models.Execution{}, err
	}
	return execution, nil
}

func insertOutboxEvent(ctx context.Context, tx pgx.Tx, eventType string, payload map[string]any) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, type, payload_json, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), eventType, payloadJSON, time.Now().UTC())
	return err
}
