package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"naturepark-cloud/internal/auth"
)

const defaultUsersTable = "users"

// PostgresRepository is a Postgres implementation for users.
type PostgresRepository struct {
	db    *sql.DB
	table string
}

// NewPostgresRepository constructs a repository.
func NewPostgresRepository(db *sql.DB, opts ...RepositoryOption) *PostgresRepository {
	repo := &PostgresRepository{db: db, table: defaultUsersTable}
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

// Create inserts a new user.
func (r *PostgresRepository) Create(ctx context.Context, user *User) error {
	if r == nil || r.db == nil {
		return errors.New("user repo: nil db")
	}
	if user == nil {
		return errors.New("user repo: nil user")
	}
	if err := user.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	email,
	name,
	password_hash,
	role
) VALUES (
	$1, $2, $3, $4, $5
)`, r.table)

	_, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Email,
		user.Name,
		user.PasswordHash,
		string(user.Role),
	)
	return err
}

// GetByID loads a user by id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getBy(ctx, "id", id)
}

// GetByEmail loads a user by email.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getBy(ctx, "email", NormalizeEmail(email))
}

func (r *PostgresRepository) getBy(ctx context.Context, column, value string) (*User, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("user repo: nil db")
	}
	if value == "" {
		return nil, ErrNotFound
	}

	query := fmt.Sprintf(`
SELECT id, email, name, password_hash, role, created_at
FROM %s
WHERE %s = $1
LIMIT 1`, r.table, column)

	var user User
	var role string
	if err := r.db.QueryRowContext(ctx, query, value).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&role,
		&user.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	user.Role = resolveRole(role)
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func resolveRole(value string) auth.Role {
	if role, ok := auth.NormalizeRole(value); ok {
		return role
	}
	return auth.RoleUser
}

// UpdatePassword replaces the stored password hash.
func (r *PostgresRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if r == nil || r.db == nil {
		return errors.New("user repo: nil db")
	}
	if id == "" || passwordHash == "" {
		return errors.New("user repo: invalid arguments")
	}
	query := fmt.Sprintf(`UPDATE %s SET password_hash = $2 WHERE id = $1`, r.table)
	result, err := r.db.ExecContext(ctx, query, id, passwordHash)
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

// UpdateName replaces the display name.
func (r *PostgresRepository) UpdateName(ctx context.Context, id, name string) error {
	if r == nil || r.db == nil {
		return errors.New("user repo: nil db")
	}
	if id == "" {
		return errors.New("user repo: invalid arguments")
	}
	query := fmt.Sprintf(`UPDATE %s SET name = $2 WHERE id = $1`, r.table)
	result, err := r.db.ExecContext(ctx, query, id, name)
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

// List returns all users ordered by creation time.
func (r *PostgresRepository) List(ctx context.Context) ([]User, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("user repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT id, email, name, password_hash, role, created_at
FROM %s
ORDER BY created_at ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]User, 0)
	for rows.Next() {
		var user User
		var role string
		if err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.Name,
			&user.PasswordHash,
			&role,
			&user.CreatedAt,
		); err != nil {
			return nil, err
		}
		user.Role = resolveRole(role)
		user.CreatedAt = user.CreatedAt.UTC()
		out = append(out, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
