package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	stations "naturepark-cloud/internal/stations/domain"
)

const defaultMeasurementsTable = "measurements"

// MeasurementRepository is a Postgres implementation of the
// append-only measurement log.
type MeasurementRepository struct {
	db    *sql.DB
	table string
}

// NewMeasurementRepository constructs a repository with default table name.
func NewMeasurementRepository(db *sql.DB, opts ...MeasurementOption) *MeasurementRepository {
	repo := &MeasurementRepository{db: db, table: defaultMeasurementsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// MeasurementOption configures the repository.
type MeasurementOption func(*MeasurementRepository)

// WithMeasurementTable overrides the default table name.
func WithMeasurementTable(table string) MeasurementOption {
	return func(repo *MeasurementRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// InsertBatch appends measurements in a single transaction. Duplicate
// readings produce duplicate rows; the log carries no uniqueness
// constraint beyond the synthetic id.
func (r *MeasurementRepository) InsertBatch(ctx context.Context, measurements []stations.Measurement) error {
	if r == nil || r.db == nil {
		return errors.New("measurement repo: nil db")
	}
	if len(measurements) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	station_id,
	measurement_type,
	value,
	recorded_at
) VALUES (
	$1, $2, $3, $4
)`, r.table)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, m := range measurements {
		if err := m.Validate(); err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := stmt.ExecContext(
			ctx,
			m.StationID,
			m.Type,
			m.Value,
			m.RecordedAt,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// Query returns measurements for a station with recorded_at in
// [start, end], newest first.
func (r *MeasurementRepository) Query(ctx context.Context, stationID string, start, end time.Time) ([]stations.Measurement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("measurement repo: nil db")
	}
	if stationID == "" || start.IsZero() || end.IsZero() {
		return nil, errors.New("measurement repo: invalid arguments")
	}

	query := fmt.Sprintf(`
SELECT id, station_id, measurement_type, value, recorded_at
FROM %s
WHERE station_id = $1
	AND recorded_at >= $2
	AND recorded_at <= $3
ORDER BY recorded_at DESC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, stationID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]stations.Measurement, 0)
	for rows.Next() {
		var m stations.Measurement
		if err := rows.Scan(&m.ID, &m.StationID, &m.Type, &m.Value, &m.RecordedAt); err != nil {
			return nil, err
		}
		m.RecordedAt = m.RecordedAt.UTC()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Availability computes the min/max recorded_at for a station in a
// single aggregate. Returns ErrNoData when no measurements exist.
func (r *MeasurementRepository) Availability(ctx context.Context, stationID string) (*stations.Availability, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("measurement repo: nil db")
	}
	if stationID == "" {
		return nil, errors.New("measurement repo: empty station id")
	}

	query := fmt.Sprintf(`
SELECT MIN(recorded_at), MAX(recorded_at)
FROM %s
WHERE station_id = $1`, r.table)

	var minDate, maxDate sql.NullTime
	if err := r.db.QueryRowContext(ctx, query, stationID).Scan(&minDate, &maxDate); err != nil {
		return nil, err
	}
	if !minDate.Valid || !maxDate.Valid {
		return nil, stations.ErrNoData
	}
	return &stations.Availability{
		StationID: stationID,
		MinDate:   minDate.Time.UTC(),
		MaxDate:   maxDate.Time.UTC(),
	}, nil
}
