// Package store implements the dispatch persistence boundary on Postgres.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"samu/dispatch/internal/dispatch"
)

// Postgres persists dispatch records, telemetry and feedback with pgx.
// Status writes carry an optimistic compare on the prior state so a losing
// concurrent writer fails with dispatch.ErrStaleState instead of silently
// overwriting.
type Postgres struct {
	pool *pgxpool.Pool
}

// New wraps the connection pool.
func New(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const dispatchColumns = `id, request_id, ambulance_id, state, incident_type, priority, notes,
	origin_lat, origin_lng, origin_address, dest_lat, dest_lng, dest_address,
	distance_km, estimated_minutes, actual_minutes,
	requested_at, assigned_at, arrived_at, completed_at, extra`

func scanDispatch(row pgx.Row) (dispatch.Dispatch, error) {
	var d dispatch.Dispatch
	err := row.Scan(
		&d.ID, &d.RequestID, &d.AmbulanceID, &d.State, &d.IncidentType, &d.Priority, &d.Notes,
		&d.Origin.Latitude, &d.Origin.Longitude, &d.Origin.Address,
		&d.Destination.Latitude, &d.Destination.Longitude, &d.Destination.Address,
		&d.DistanceKM, &d.EstimatedMinutes, &d.ActualMinutes,
		&d.RequestedAt, &d.AssignedAt, &d.ArrivedAt, &d.CompletedAt, &d.Extra,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return dispatch.Dispatch{}, dispatch.ErrNotFound
	}
	return d, err
}

// GetDispatch fetches one record by id.
func (s *Postgres) GetDispatch(ctx context.Context, id int64) (dispatch.Dispatch, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+dispatchColumns+` FROM dispatches WHERE id = $1`, id)
	return scanDispatch(row)
}

// ListDispatches returns records matching the filter, newest first.
func (s *Postgres) ListDispatches(ctx context.Context, filter dispatch.ListFilter) ([]dispatch.Dispatch, error) {
	query := `SELECT ` + dispatchColumns + ` FROM dispatches WHERE 1=1`
	var args []any
	if filter.State != "" {
		args = append(args, filter.State)
		query += fmt.Sprintf(" AND state = $%d", len(args))
	}
	if filter.Priority != "" {
		args = append(args, filter.Priority)
		query += fmt.Sprintf(" AND priority = $%d", len(args))
	}
	if filter.ActiveOnly {
		query += ` AND state NOT IN ('completed', 'cancelled')`
	}
	query += ` ORDER BY requested_at DESC`
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	return s.queryDispatches(ctx, query, args...)
}

// ListRecentDispatches returns records requested at or after since.
func (s *Postgres) ListRecentDispatches(ctx context.Context, since time.Time, limit int32) ([]dispatch.Dispatch, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.queryDispatches(ctx,
		`SELECT `+dispatchColumns+` FROM dispatches WHERE requested_at >= $1 ORDER BY requested_at DESC LIMIT $2`,
		since, limit)
}

func (s *Postgres) queryDispatches(ctx context.Context, query string, args ...any) ([]dispatch.Dispatch, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []dispatch.Dispatch
	for rows.Next() {
		d, err := scanDispatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CreateDispatch inserts a new record and returns it with its id.
func (s *Postgres) CreateDispatch(ctx context.Context, d dispatch.Dispatch) (dispatch.Dispatch, error) {
	extra := d.Extra
	if len(extra) == 0 {
		extra = []byte("{}")
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO dispatches (
			request_id, ambulance_id, state, incident_type, priority, notes,
			origin_lat, origin_lng, origin_address, dest_lat, dest_lng, dest_address,
			distance_km, estimated_minutes, requested_at, extra
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING `+dispatchColumns,
		d.RequestID, d.AmbulanceID, d.State, d.IncidentType, d.Priority, d.Notes,
		d.Origin.Latitude, d.Origin.Longitude, d.Origin.Address,
		d.Destination.Latitude, d.Destination.Longitude, d.Destination.Address,
		d.DistanceKM, d.EstimatedMinutes, d.RequestedAt, extra,
	)
	return scanDispatch(row)
}

// ApplyStatusChange persists a planned transition. The UPDATE only matches
// while the stored state equals change.From; zero rows against an existing
// record means a concurrent writer won.
func (s *Postgres) ApplyStatusChange(ctx context.Context, id int64, change dispatch.StatusChange) (dispatch.Dispatch, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE dispatches SET
			state          = $3,
			ambulance_id   = COALESCE($4, ambulance_id),
			assigned_at    = COALESCE($5, assigned_at),
			arrived_at     = COALESCE($6, arrived_at),
			completed_at   = COALESCE($7, completed_at),
			actual_minutes = COALESCE($8, actual_minutes),
			notes          = COALESCE($9, notes)
		WHERE id = $1 AND state = $2
		RETURNING `+dispatchColumns,
		id, change.From, change.To,
		change.AmbulanceID, change.AssignedAt, change.ArrivedAt, change.CompletedAt,
		change.ActualMinutes, change.Notes,
	)
	d, err := scanDispatch(row)
	if errors.Is(err, dispatch.ErrNotFound) {
		return dispatch.Dispatch{}, s.staleOrMissing(ctx, id)
	}
	return d, err
}

// UpdateAssignment swaps the ambulance while the state is unchanged.
func (s *Postgres) UpdateAssignment(ctx context.Context, id int64, expected dispatch.State, ambulanceID int64) (dispatch.Dispatch, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE dispatches SET ambulance_id = $3
		WHERE id = $1 AND state = $2
		RETURNING `+dispatchColumns,
		id, expected, ambulanceID,
	)
	d, err := scanDispatch(row)
	if errors.Is(err, dispatch.ErrNotFound) {
		return dispatch.Dispatch{}, s.staleOrMissing(ctx, id)
	}
	return d, err
}

func (s *Postgres) staleOrMissing(ctx context.Context, id int64) error {
	var state dispatch.State
	err := s.pool.QueryRow(ctx, `SELECT state FROM dispatches WHERE id = $1`, id).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return dispatch.ErrNotFound
	}
	if err != nil {
		return err
	}
	return dispatch.ErrStaleState
}

// InsertPing appends a telemetry event.
func (s *Postgres) InsertPing(ctx context.Context, p dispatch.GpsPing) (dispatch.GpsPing, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO gps_pings (dispatch_id, latitude, longitude, speed_kmh, altitude_m, accuracy_m, client_ref, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)
		RETURNING id, recorded_at`,
		p.DispatchID, p.Latitude, p.Longitude, p.SpeedKMH, p.AltitudeM, p.AccuracyM, p.ClientRef, p.RecordedAt,
	)
	if err := row.Scan(&p.ID, &p.RecordedAt); err != nil {
		return dispatch.GpsPing{}, err
	}
	return p, nil
}

// ListPings returns the breadcrumbs for a dispatch in recorded order.
func (s *Postgres) ListPings(ctx context.Context, dispatchID int64) ([]dispatch.GpsPing, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, dispatch_id, latitude, longitude, speed_kmh, altitude_m, accuracy_m, COALESCE(client_ref, ''), recorded_at
		FROM gps_pings WHERE dispatch_id = $1 ORDER BY id`,
		dispatchID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []dispatch.GpsPing
	for rows.Next() {
		var p dispatch.GpsPing
		if err := rows.Scan(&p.ID, &p.DispatchID, &p.Latitude, &p.Longitude,
			&p.SpeedKMH, &p.AltitudeM, &p.AccuracyM, &p.ClientRef, &p.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// InsertFeedback appends an operator rating.
func (s *Postgres) InsertFeedback(ctx context.Context, fb dispatch.Feedback) (dispatch.Feedback, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO feedback (dispatch_id, rating, comment, patient_condition, client_ref, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		RETURNING id, created_at`,
		fb.DispatchID, fb.Rating, fb.Comment, fb.PatientCondition, fb.ClientRef, fb.CreatedAt,
	)
	if err := row.Scan(&fb.ID, &fb.CreatedAt); err != nil {
		return dispatch.Feedback{}, err
	}
	return fb, nil
}

// GetAmbulance fetches one registry entry.
func (s *Postgres) GetAmbulance(ctx context.Context, id int64) (dispatch.Ambulance, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, call_sign, class, status, latitude, longitude, last_contact_at
		FROM ambulances WHERE id = $1`, id)
	var a dispatch.Ambulance
	err := row.Scan(&a.ID, &a.CallSign, &a.Class, &a.Status, &a.Latitude, &a.Longitude, &a.LastContact)
	if errors.Is(err, pgx.ErrNoRows) {
		return dispatch.Ambulance{}, dispatch.ErrNotFound
	}
	return a, err
}

// ListAmbulances returns the full registry ordered by call sign.
func (s *Postgres) ListAmbulances(ctx context.Context) ([]dispatch.Ambulance, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, call_sign, class, status, latitude, longitude, last_contact_at
		FROM ambulances ORDER BY call_sign`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []dispatch.Ambulance
	for rows.Next() {
		var a dispatch.Ambulance
		if err := rows.Scan(&a.ID, &a.CallSign, &a.Class, &a.Status, &a.Latitude, &a.Longitude, &a.LastContact); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
