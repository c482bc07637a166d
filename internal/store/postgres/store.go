package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"yardops/yard-service/internal/models"
	"yardops/yard-service/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

type Options struct {
	// Location is the yard wall-clock zone used for calendar-date math
	// in the daily-km estimator. Defaults to UTC when nil.
	Location *time.Location
}

func NewStore(pool *pgxpool.Pool, options Options) *Store {
	loc := options.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Store{pool: pool, loc: loc}
}

// Area-partitioned request tables. The map doubles as the only allowed
// source of table names interpolated into queries.
var requestTables = map[string]string{
	"tire":  "service_requests_tire",
	"align": "service_requests_align",
	"maint": "service_requests_maint",
}

var areaOrder = models.Areas()

func requestTable(area string) (string, error) {
	table, ok := requestTables[area]
	if !ok {
		return "", store.ErrAreaInvalid
	}
	return table, nil
}

// AreaOf consults the three catalog sets; first match wins in tire,
// align, maint order. It implements catalog.Source.
func (s *Store) AreaOf(ctx context.Context, name string) (string, error) {
	var area string
	row := s.pool.QueryRow(ctx, `
		SELECT area FROM (
			SELECT 'tire' AS area, 1 AS ord FROM service_catalog_tire WHERE name = $1
			UNION ALL
			SELECT 'align' AS area, 2 AS ord FROM service_catalog_align WHERE name = $1
			UNION ALL
			SELECT 'maint' AS area, 3 AS ord FROM service_catalog_maint WHERE name = $1
		) matches
		ORDER BY ord
		LIMIT 1
	`, name)
	if err := row.Scan(&area); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", store.ErrServiceTypeUnknown
		}
		return "", err
	}
	return area, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (store.Session, error) {
	var session store.Session
	row := s.pool.QueryRow(ctx, `
		SELECT session_id, user_id, name, expires_at
		FROM sessions
		WHERE session_id = $1
	`, sessionID)
	if err := row.Scan(&session.SessionID, &session.UserID, &session.Name, &session.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Session{}, store.ErrSessionNotFound
		}
		return store.Session{}, err
	}
	if time.Now().After(session.ExpiresAt) {
		return store.Session{}, store.ErrSessionNotFound
	}
	return session, nil
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}

func nullIntPtr(value sql.NullInt64) *int64 {
	if !value.Valid {
		return nil
	}
	v := value.Int64
	return &v
}

func nullBayPtr(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	v := int(value.Int64)
	return &v
}

func nullQtyPtr(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	v := int(value.Int64)
	return &v
}

func nullString(value sql.NullString) string {
	if !value.Valid {
		return ""
	}
	return value.String
}
