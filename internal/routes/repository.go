package routes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	defaultRoutesTable = "routes"
	defaultPOIsTable   = "route_pois"
)

// PostgresRepository is a Postgres implementation for routes.
type PostgresRepository struct {
	db        *sql.DB
	table     string
	poisTable string
}

// NewPostgresRepository constructs a repository.
func NewPostgresRepository(db *sql.DB, opts ...RepositoryOption) *PostgresRepository {
	repo := &PostgresRepository{db: db, table: defaultRoutesTable, poisTable: defaultPOIsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RepositoryOption configures the repository.
type RepositoryOption func(*PostgresRepository)

// WithTables overrides the default table names.
func WithTables(routesTable, poisTable string) RepositoryOption {
	return func(repo *PostgresRepository) {
		if routesTable != "" {
			repo.table = routesTable
		}
		if poisTable != "" {
			repo.poisTable = poisTable
		}
	}
}

const routeColumns = "id, name, distance_km, duration, route_type, difficulty, altitude_min_m, altitude_max_m, accumulated_climb_m, start_point_gps, description, created_at, updated_at"

// Create inserts a route and its points of interest in one transaction.
func (r *PostgresRepository) Create(ctx context.Context, route *Route) error {
	if r == nil || r.db == nil {
		return errors.New("route repo: nil db")
	}
	if route == nil {
		return errors.New("route repo: nil route")
	}
	if err := route.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, name, distance_km, duration, route_type, difficulty,
	altitude_min_m, altitude_max_m, accumulated_climb_m,
	start_point_gps, description
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)`, r.table)

	if _, err := tx.ExecContext(
		ctx,
		query,
		route.ID,
		route.Name,
		route.DistanceKM,
		route.Duration,
		route.RouteType,
		route.Difficulty,
		route.AltitudeMinM,
		route.AltitudeMaxM,
		route.AccumulatedClimbM,
		route.StartPointGPS,
		route.Description,
	); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := insertPOIs(ctx, tx, r.poisTable, route.ID, route.POIs); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Get loads a route with its points of interest.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Route, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("route repo: nil db")
	}
	if id == "" {
		return nil, ErrNotFound
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1
LIMIT 1`, routeColumns, r.table)

	var route Route
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&route.ID,
		&route.Name,
		&route.DistanceKM,
		&route.Duration,
		&route.RouteType,
		&route.Difficulty,
		&route.AltitudeMinM,
		&route.AltitudeMaxM,
		&route.AccumulatedClimbM,
		&route.StartPointGPS,
		&route.Description,
		&route.CreatedAt,
		&route.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	route.CreatedAt = route.CreatedAt.UTC()
	route.UpdatedAt = route.UpdatedAt.UTC()

	pois, err := r.loadPOIs(ctx, id)
	if err != nil {
		return nil, err
	}
	route.POIs = pois
	return &route, nil
}

// List returns all routes ordered by name, without POIs.
func (r *PostgresRepository) List(ctx context.Context) ([]Route, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("route repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
ORDER BY name ASC`, routeColumns, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Route, 0)
	for rows.Next() {
		var route Route
		if err := rows.Scan(
			&route.ID,
			&route.Name,
			&route.DistanceKM,
			&route.Duration,
			&route.RouteType,
			&route.Difficulty,
			&route.AltitudeMinM,
			&route.AltitudeMaxM,
			&route.AccumulatedClimbM,
			&route.StartPointGPS,
			&route.Description,
			&route.CreatedAt,
			&route.UpdatedAt,
		); err != nil {
			return nil, err
		}
		route.CreatedAt = route.CreatedAt.UTC()
		route.UpdatedAt = route.UpdatedAt.UTC()
		out = append(out, route)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update overwrites a route and replaces its points of interest.
func (r *PostgresRepository) Update(ctx context.Context, route *Route) error {
	if r == nil || r.db == nil {
		return errors.New("route repo: nil db")
	}
	if route == nil {
		return errors.New("route repo: nil route")
	}
	if err := route.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
UPDATE %s SET
	name = $2,
	distance_km = $3,
	duration = $4,
	route_type = $5,
	difficulty = $6,
	altitude_min_m = $7,
	altitude_max_m = $8,
	accumulated_climb_m = $9,
	start_point_gps = $10,
	description = $11,
	updated_at = NOW()
WHERE id = $1`, r.table)

	result, err := tx.ExecContext(
		ctx,
		query,
		route.ID,
		route.Name,
		route.DistanceKM,
		route.Duration,
		route.RouteType,
		route.Difficulty,
		route.AltitudeMinM,
		route.AltitudeMaxM,
		route.AccumulatedClimbM,
		route.StartPointGPS,
		route.Description,
	)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if affected == 0 {
		_ = tx.Rollback()
		return ErrNotFound
	}

	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE route_id = $1`, r.poisTable)
	if _, err := tx.ExecContext(ctx, deleteQuery, route.ID); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := insertPOIs(ctx, tx, r.poisTable, route.ID, route.POIs); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Delete removes a route. POIs cascade with the row.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("route repo: nil db")
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table)
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) loadPOIs(ctx context.Context, routeID string) ([]PointOfInterest, error) {
	query := fmt.Sprintf(`
SELECT id, route_id, name, description, latitude, longitude
FROM %s
WHERE route_id = $1
ORDER BY name ASC`, r.poisTable)

	rows, err := r.db.QueryContext(ctx, query, routeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]PointOfInterest, 0)
	for rows.Next() {
		var poi PointOfInterest
		if err := rows.Scan(&poi.ID, &poi.RouteID, &poi.Name, &poi.Description, &poi.Latitude, &poi.Longitude); err != nil {
			return nil, err
		}
		out = append(out, poi)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func insertPOIs(ctx context.Context, tx *sql.Tx, table, routeID string, pois []PointOfInterest) error {
	if len(pois) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id, route_id, name, description, latitude, longitude
) VALUES (
	$1,$2,$3,$4,$5,$6
)`, table)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, poi := range pois {
		if poi.Name == "" {
			return errors.New("route repo: empty poi name")
		}
		if _, err := stmt.ExecContext(ctx, poi.ID, routeID, poi.Name, poi.Description, poi.Latitude, poi.Longitude); err != nil {
			return err
		}
	}
	return nil
}
