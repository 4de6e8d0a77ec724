package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	stations "naturepark-cloud/internal/stations/domain"
)

const defaultStationsTable = "stations"

// StationRepository is a Postgres implementation for stations.
type StationRepository struct {
	db    DBTX
	table string
}

// NewStationRepository constructs a repository.
func NewStationRepository(db DBTX, opts ...StationOption) *StationRepository {
	repo := &StationRepository{db: db, table: defaultStationsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// StationOption configures the repository.
type StationOption func(*StationRepository)

// WithStationTable overrides the default table name.
func WithStationTable(table string) StationOption {
	return func(repo *StationRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads a station by id.
func (r *StationRepository) Get(ctx context.Context, id string) (*stations.Station, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("station repo: nil db")
	}
	if id == "" {
		return nil, errors.New("station repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, name, location, is_active, created_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	var station stations.Station
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&station.ID,
		&station.Name,
		&station.Location,
		&station.IsActive,
		&station.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	station.CreatedAt = station.CreatedAt.UTC()
	return &station, nil
}

// GetOrCreate inserts a station if missing and returns the stored row.
// Existing rows keep their name and location. Concurrent calls for the
// same id race on the insert; ON CONFLICT DO NOTHING plus the re-read
// resolves the race without surfacing a uniqueness violation.
func (r *StationRepository) GetOrCreate(ctx context.Context, id, name, location string) (*stations.Station, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("station repo: nil db")
	}
	if id == "" {
		return nil, errors.New("station repo: empty id")
	}
	if name == "" {
		name = stations.DefaultName(id)
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	name,
	location,
	is_active
) VALUES (
	$1, $2, $3, TRUE
)
ON CONFLICT (id)
DO NOTHING`, r.table)

	if _, err := r.db.ExecContext(ctx, query, id, name, location); err != nil {
		return nil, err
	}
	station, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if station == nil {
		return nil, fmt.Errorf("station repo: %s missing after upsert", id)
	}
	return station, nil
}

// List returns stations ordered by id.
func (r *StationRepository) List(ctx context.Context, activeOnly bool) ([]stations.Station, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("station repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT id, name, location, is_active, created_at
FROM %s`, r.table)
	if activeOnly {
		query += `
WHERE is_active = TRUE`
	}
	query += `
ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]stations.Station, 0)
	for rows.Next() {
		var station stations.Station
		if err := rows.Scan(
			&station.ID,
			&station.Name,
			&station.Location,
			&station.IsActive,
			&station.CreatedAt,
		); err != nil {
			return nil, err
		}
		station.CreatedAt = station.CreatedAt.UTC()
		out = append(out, station)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Save upserts a station, overwriting name, location and active flag.
func (r *StationRepository) Save(ctx context.Context, station *stations.Station) error {
	if r == nil || r.db == nil {
		return errors.New("station repo: nil db")
	}
	if station == nil {
		return errors.New("station repo: nil station")
	}
	if err := station.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	name,
	location,
	is_active
) VALUES (
	$1, $2, $3, $4
)
ON CONFLICT (id)
DO UPDATE SET
	name = EXCLUDED.name,
	location = EXCLUDED.location,
	is_active = EXCLUDED.is_active`, r.table)

	_, err := r.db.ExecContext(
		ctx,
		query,
		station.ID,
		station.Name,
		station.Location,
		station.IsActive,
	)
	if err != nil {
		return err
	}
	if station.CreatedAt.IsZero() {
		station.CreatedAt = time.Now().UTC()
	}
	return nil
}

// Delete removes a station. Measurements cascade with the row.
func (r *StationRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("station repo: nil db")
	}
	if id == "" {
		return errors.New("station repo: empty id")
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table)
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}
