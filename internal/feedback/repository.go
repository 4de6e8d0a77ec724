package feedback

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const defaultFeedbackTable = "feedback"

// PostgresRepository is a Postgres implementation for feedback.
type PostgresRepository struct {
	db    *sql.DB
	table string
}

// NewPostgresRepository constructs a repository.
func NewPostgresRepository(db *sql.DB, opts ...RepositoryOption) *PostgresRepository {
	repo := &PostgresRepository{db: db, table: defaultFeedbackTable}
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

const feedbackColumns = "id, user_id, name, surname, email, subject, message, category, status, created_at, updated_at"

// Create inserts a feedback entry.
func (r *PostgresRepository) Create(ctx context.Context, entry *Feedback) error {
	if r == nil || r.db == nil {
		return errors.New("feedback repo: nil db")
	}
	if entry == nil {
		return errors.New("feedback repo: nil entry")
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, user_id, name, surname, email, subject, message, category, status
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9
)`, r.table)

	_, err := r.db.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.UserID,
		entry.Name,
		entry.Surname,
		entry.Email,
		entry.Subject,
		entry.Message,
		entry.Category,
		entry.Status,
	)
	return err
}

// Get loads a feedback entry by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Feedback, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("feedback repo: nil db")
	}
	if id == "" {
		return nil, ErrNotFound
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1
LIMIT 1`, feedbackColumns, r.table)

	entry, err := scanFeedback(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return entry, nil
}

// ListByUser returns a user's own entries, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]Feedback, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("feedback repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE user_id = $1
ORDER BY created_at DESC`, feedbackColumns, r.table)
	return r.queryList(ctx, query, userID)
}

// List returns entries matching the filter, newest first. Search
// matches name, surname or email.
func (r *PostgresRepository) List(ctx context.Context, filter Filter) ([]Feedback, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("feedback repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE ($1 = '' OR status = $1)
	AND ($2 = '' OR name ILIKE '%%' || $2 || '%%'
		OR surname ILIKE '%%' || $2 || '%%'
		OR email ILIKE '%%' || $2 || '%%')
ORDER BY created_at DESC`, feedbackColumns, r.table)
	return r.queryList(ctx, query, filter.Status, filter.Search)
}

// Update overwrites a feedback entry.
func (r *PostgresRepository) Update(ctx context.Context, entry *Feedback) error {
	if r == nil || r.db == nil {
		return errors.New("feedback repo: nil db")
	}
	if entry == nil {
		return errors.New("feedback repo: nil entry")
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
UPDATE %s SET
	subject = $2,
	message = $3,
	category = $4,
	status = $5,
	updated_at = NOW()
WHERE id = $1`, r.table)

	result, err := r.db.ExecContext(ctx, query, entry.ID, entry.Subject, entry.Message, entry.Category, entry.Status)
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

// Delete removes a feedback entry.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("feedback repo: nil db")
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

func (r *PostgresRepository) queryList(ctx context.Context, query string, args ...any) ([]Feedback, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Feedback, 0)
	for rows.Next() {
		entry, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeedback(row rowScanner) (*Feedback, error) {
	var entry Feedback
	if err := row.Scan(
		&entry.ID,
		&entry.UserID,
		&entry.Name,
		&entry.Surname,
		&entry.Email,
		&entry.Subject,
		&entry.Message,
		&entry.Category,
		&entry.Status,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	); err != nil {
		return nil, err
	}
	entry.CreatedAt = entry.CreatedAt.UTC()
	entry.UpdatedAt = entry.UpdatedAt.UTC()
	return &entry, nil
}
