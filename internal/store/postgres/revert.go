package postgres

import (
	"context"
	"log"
	"time"

	"yardops/yard-service/internal/store"

	"github.com/jackc/pgx/v5"
)

// UnassignBay reverses an allocation that was never finalized: every
// request bound to the active execution returns to pending with its
// bindings cleared, the execution is deleted, the bay is released.
func (s *Store) UnassignBay(ctx context.Context, bayID int) error {
	vehicleID, err := s.unassignTx(ctx, bayID)
	if err != nil {
		return err
	}

	// Typically a no-op: only a concurrent history edit changes the
	// average here.
	if _, err := s.RecomputeDailyAverage(ctx, vehicleID); err != nil {
		log.Printf("daily-km recompute failed vehicle=%d: %v", vehicleID, err)
	}
	return nil
}

func (s *Store) unassignTx(ctx context.Context, bayID int) (int64, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	execution, err := lockActiveExecution(ctx, tx, bayID)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	for _, area := range areaOrder {
		table := requestTables[area]
		_, err = tx.Exec(ctx, `
			UPDATE `+table+`
			SET status = 'pending',
				bay_id = NULL,
				worker_id = NULL,
				execution_id = NULL,
				updated_at = $1
			WHERE execution_id = $2 AND status = ANY($3)
		`, now, execution.ExecutionID, store.AllowedStatuses("unassign"))
		if err != nil {
			return 0, err
		}
	}

	_, err = tx.Exec(ctx, `DELETE FROM executions WHERE execution_id = $1`, execution.ExecutionID)
	if err != nil {
		return 0, err
	}

	_, err = tx.Exec(ctx, `UPDATE bays SET occupied = FALSE WHERE bay_id = $1`, bayID)
	if err != nil {
		return 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	return execution.VehicleID, nil
}

// RevertVisit corrects a data-entry error on an already-finalized visit,
// keyed by (vehicle, odometer): matching finalized executions become
// cancelled and their requests return to pending with bindings cleared.
func (s *Store) RevertVisit(ctx context.Context, vehicleID, odometer int64) error {
	if err := s.revertTx(ctx, vehicleID, odometer); err != nil {
		return err
	}

	if _, err := s.RecomputeDailyAverage(ctx, vehicleID); err != nil {
		log.Printf("daily-km recompute failed vehicle=%d: %v", vehicleID, err)
	}
	return nil
}

func (s *Store) revertTx(ctx context.Context, vehicleID, odometer int64) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	rows, err := tx.Query(ctx, `
		SELECT execution_id
		FROM executions
		WHERE vehicle_id = $1 AND odometer = $2 AND status = 'finalized'
		FOR UPDATE
	`, vehicleID, odometer)
	if err != nil {
		return err
	}
	var executionIDs []int64
	for rows.Next() {
		var id int64
		if err = rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		executionIDs = append(executionIDs, id)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return err
	}
	if len(executionIDs) == 0 {
		err = store.ErrVisitNotFound
		return err
	}

	now := time.Now().UTC()
	for _, area := range areaOrder {
		table := requestTables[area]
		_, err = tx.Exec(ctx, `
			UPDATE `+table+`
			SET status = 'pending',
				bay_id = NULL,
				worker_id = NULL,
				execution_id = NULL,
				executed_qty = NULL,
				updated_at = $1
			WHERE execution_id = ANY($2) AND status = ANY($3)
		`, now, executionIDs, store.AllowedStatuses("revert"))
		if err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE executions SET status = 'cancelled' WHERE execution_id = ANY($1)
	`, executionIDs)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}
