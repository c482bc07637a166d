package postgres

import (
	"context"
	"log"

	"yardops/yard-service/internal/store"
)

// RecomputeDailyAverage rebuilds a vehicle's avg_km_per_day from its
// finalized visits. It runs in its own transaction, after the mutation
// that triggered it has committed: bay and execution invariants must be
// observable regardless of whether this succeeds.
func (s *Store) RecomputeDailyAverage(ctx context.Context, vehicleID int64) (*float64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT finished_at, odometer
		FROM executions
		WHERE vehicle_id = $1 AND status = 'finalized'
			AND finished_at IS NOT NULL AND odometer > 0
		ORDER BY finished_at ASC
	`, vehicleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []store.Reading
	for rows.Next() {
		var reading store.Reading
		if err := rows.Scan(&reading.Date, &reading.Odometer); err != nil {
			return nil, err
		}
		reading.Date = store.DateOf(reading.Date, s.loc)
		readings = append(readings, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, rate := range store.TransitionRates(readings) {
		if label := store.ClassifyRate(rate); label != "" {
			log.Printf("odometer transition %s vehicle=%d km_per_day=%.1f", label, vehicleID, rate)
		}
	}

	avg := store.DailyAverage(readings)
	if _, err := s.pool.Exec(ctx, `
		UPDATE vehicles SET avg_km_per_day = $1 WHERE vehicle_id = $2
	`, avg, vehicleID); err != nil {
		return nil, err
	}
	return avg, nil
}
