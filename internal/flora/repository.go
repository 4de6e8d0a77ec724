package flora

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const defaultPlantsTable = "plants"

// PostgresRepository is a Postgres implementation for the flora
// catalog. UsesFlags is stored as jsonb.
type PostgresRepository struct {
	db    *sql.DB
	table string
}

// NewPostgresRepository constructs a repository.
func NewPostgresRepository(db *sql.DB, opts ...RepositoryOption) *PostgresRepository {
	repo := &PostgresRepository{db: db, table: defaultPlantsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RepositoryOption configures the repository.
type RepositoryOption func(*PostgresRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *PostgresRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

const plantColumns = "id, scientific_name, common_names, interaction_fauna, food_uses, medicinal_uses, ornamental_uses, traditional_uses, aromatic_uses, uses_flags, created_at, updated_at"

// Create inserts a plant.
func (r *PostgresRepository) Create(ctx context.Context, plant *Plant) error {
	if r == nil || r.db == nil {
		return errors.New("flora repo: nil db")
	}
	if plant == nil {
		return errors.New("flora repo: nil plant")
	}
	if err := plant.Validate(); err != nil {
		return err
	}
	flags, err := marshalFlags(plant.UsesFlags)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, scientific_name, common_names, interaction_fauna,
	food_uses, medicinal_uses, ornamental_uses, traditional_uses,
	aromatic_uses, uses_flags
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)`, r.table)

	if _, err := r.db.ExecContext(
		ctx,
		query,
		plant.ID,
		plant.ScientificName,
		plant.CommonNames,
		plant.InteractionFauna,
		plant.FoodUses,
		plant.MedicinalUses,
		plant.OrnamentalUses,
		plant.TraditionalUses,
		plant.AromaticUses,
		flags,
	); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateName
		}
		return err
	}
	return nil
}

// Get loads a plant by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Plant, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("flora repo: nil db")
	}
	if id == "" {
		return nil, ErrNotFound
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1
LIMIT 1`, plantColumns, r.table)

	plant, err := scanPlant(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return plant, nil
}

// List returns plants ordered by scientific name. A non-empty use
// filters on the corresponding UsesFlags key.
func (r *PostgresRepository) List(ctx context.Context, use string) ([]Plant, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("flora repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE ($1 = '' OR (uses_flags ->> $1)::boolean IS TRUE)
ORDER BY scientific_name ASC`, plantColumns, r.table)

	rows, err := r.db.QueryContext(ctx, query, use)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Plant, 0)
	for rows.Next() {
		plant, err := scanPlant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *plant)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update overwrites a plant.
func (r *PostgresRepository) Update(ctx context.Context, plant *Plant) error {
	if r == nil || r.db == nil {
		return errors.New("flora repo: nil db")
	}
	if plant == nil {
		return errors.New("flora repo: nil plant")
	}
	if err := plant.Validate(); err != nil {
		return err
	}
	flags, err := marshalFlags(plant.UsesFlags)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
UPDATE %s SET
	scientific_name = $2,
	common_names = $3,
	interaction_fauna = $4,
	food_uses = $5,
	medicinal_uses = $6,
	ornamental_uses = $7,
	traditional_uses = $8,
	aromatic_uses = $9,
	uses_flags = $10,
	updated_at = NOW()
WHERE id = $1`, r.table)

	result, err := r.db.ExecContext(
		ctx,
		query,
		plant.ID,
		plant.ScientificName,
		plant.CommonNames,
		plant.InteractionFauna,
		plant.FoodUses,
		plant.MedicinalUses,
		plant.OrnamentalUses,
		plant.TraditionalUses,
		plant.AromaticUses,
		flags,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateName
		}
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

// Delete removes a plant.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("flora repo: nil db")
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlant(row rowScanner) (*Plant, error) {
	var plant Plant
	var flags []byte
	if err := row.Scan(
		&plant.ID,
		&plant.ScientificName,
		&plant.CommonNames,
		&plant.InteractionFauna,
		&plant.FoodUses,
		&plant.MedicinalUses,
		&plant.OrnamentalUses,
		&plant.TraditionalUses,
		&plant.AromaticUses,
		&flags,
		&plant.CreatedAt,
		&plant.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(flags) > 0 {
		if err := json.Unmarshal(flags, &plant.UsesFlags); err != nil {
			return nil, err
		}
	}
	plant.CreatedAt = plant.CreatedAt.UTC()
	plant.UpdatedAt = plant.UpdatedAt.UTC()
	return &plant, nil
}

func marshalFlags(flags map[string]bool) ([]byte, error) {
	if flags == nil {
		flags = map[string]bool{}
	}
	return json.Marshal(flags)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
