package rewards

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const (
	defaultQRCodesTable = "qr_codes"
	defaultScansTable   = "qr_scans"
	defaultCouponsTable = "coupons"
)

// PostgresRepository is a Postgres implementation for rewards.
type PostgresRepository struct {
	db           *sql.DB
	qrTable      string
	scansTable   string
	couponsTable string
}

// NewPostgresRepository constructs a repository.
func NewPostgresRepository(db *sql.DB, opts ...RepositoryOption) *PostgresRepository {
	repo := &PostgresRepository{
		db:           db,
		qrTable:      defaultQRCodesTable,
		scansTable:   defaultScansTable,
		couponsTable: defaultCouponsTable,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RepositoryOption configures the repository.
type RepositoryOption func(*PostgresRepository)

// WithTables overrides the default table names.
func WithTables(qrTable, scansTable, couponsTable string) RepositoryOption {
	return func(repo *PostgresRepository) {
		if qrTable != "" {
			repo.qrTable = qrTable
		}
		if scansTable != "" {
			repo.scansTable = scansTable
		}
		if couponsTable != "" {
			repo.couponsTable = couponsTable
		}
	}
}

const qrColumns = "id, name, text_content, points, png, created_at"

// CreateQRCode inserts a QR code with its rendered PNG.
func (r *PostgresRepository) CreateQRCode(ctx context.Context, code *QRCode) error {
	if r == nil || r.db == nil {
		return errors.New("rewards repo: nil db")
	}
	if code == nil {
		return errors.New("rewards repo: nil qr code")
	}
	if err := code.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, name, text_content, points, png
) VALUES (
	$1,$2,$3,$4,$5
)`, r.qrTable)

	if _, err := r.db.ExecContext(ctx, query, code.ID, code.Name, code.TextContent, code.Points, code.PNG); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateContent
		}
		return err
	}
	return nil
}

// GetQRCode loads a QR code by id.
func (r *PostgresRepository) GetQRCode(ctx context.Context, id string) (*QRCode, error) {
	return r.getQRBy(ctx, "id", id)
}

// GetQRCodeByContent loads a QR code by its encoded payload.
func (r *PostgresRepository) GetQRCodeByContent(ctx context.Context, content string) (*QRCode, error) {
	return r.getQRBy(ctx, "text_content", content)
}

func (r *PostgresRepository) getQRBy(ctx context.Context, column, value string) (*QRCode, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("rewards repo: nil db")
	}
	if value == "" {
		return nil, ErrNotFound
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE %s = $1
LIMIT 1`, qrColumns, r.qrTable, column)

	var code QRCode
	if err := r.db.QueryRowContext(ctx, query, value).Scan(
		&code.ID,
		&code.Name,
		&code.TextContent,
		&code.Points,
		&code.PNG,
		&code.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	code.CreatedAt = code.CreatedAt.UTC()
	return &code, nil
}

// ListQRCodes returns all codes ordered by name.
func (r *PostgresRepository) ListQRCodes(ctx context.Context) ([]QRCode, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("rewards repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
ORDER BY name ASC`, qrColumns, r.qrTable)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]QRCode, 0)
	for rows.Next() {
		var code QRCode
		if err := rows.Scan(&code.ID, &code.Name, &code.TextContent, &code.Points, &code.PNG, &code.CreatedAt); err != nil {
			return nil, err
		}
		code.CreatedAt = code.CreatedAt.UTC()
		out = append(out, code)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateQRCode overwrites a code.
func (r *PostgresRepository) UpdateQRCode(ctx context.Context, code *QRCode) error {
	if r == nil || r.db == nil {
		return errors.New("rewards repo: nil db")
	}
	if code == nil {
		return errors.New("rewards repo: nil qr code")
	}
	if err := code.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
UPDATE %s SET
	name = $2,
	text_content = $3,
	points = $4,
	png = $5
WHERE id = $1`, r.qrTable)

	result, err := r.db.ExecContext(ctx, query, code.ID, code.Name, code.TextContent, code.Points, code.PNG)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateContent
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

// DeleteQRCode removes a code. Scans cascade with the row.
func (r *PostgresRepository) DeleteQRCode(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("rewards repo: nil db")
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.qrTable)
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

// RecordScan stores a scan. The (user_id, qr_code_id) unique constraint
// rejects repeat scans.
func (r *PostgresRepository) RecordScan(ctx context.Context, scan *Scan) error {
	if r == nil || r.db == nil {
		return errors.New("rewards repo: nil db")
	}
	if scan == nil {
		return errors.New("rewards repo: nil scan")
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, user_id, qr_code_id, points
) VALUES (
	$1,$2,$3,$4
)`, r.scansTable)

	if _, err := r.db.ExecContext(ctx, query, scan.ID, scan.UserID, scan.QRCodeID, scan.Points); err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyScanned
		}
		return err
	}
	return nil
}

// ListScans returns a user's scans, newest first.
func (r *PostgresRepository) ListScans(ctx context.Context, userID string) ([]Scan, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("rewards repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT id, user_id, qr_code_id, points, scanned_at
FROM %s
WHERE user_id = $1
ORDER BY scanned_at DESC`, r.scansTable)

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Scan, 0)
	for rows.Next() {
		var scan Scan
		if err := rows.Scan(&scan.ID, &scan.UserID, &scan.QRCodeID, &scan.Points, &scan.ScannedAt); err != nil {
			return nil, err
		}
		scan.ScannedAt = scan.ScannedAt.UTC()
		out = append(out, scan)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateCoupon checks the balance and inserts the coupon in one
// transaction.
func (r *PostgresRepository) CreateCoupon(ctx context.Context, coupon *Coupon) error {
	if r == nil || r.db == nil {
		return errors.New("rewards repo: nil db")
	}
	if coupon == nil {
		return errors.New("rewards repo: nil coupon")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	balance, err := r.balance(ctx, tx, coupon.UserID)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if balance < coupon.PointsSpent {
		_ = tx.Rollback()
		return ErrInsufficientPoints
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, user_id, code, points_spent, is_used, expires_at
) VALUES (
	$1,$2,$3,$4,FALSE,$5
)`, r.couponsTable)

	if _, err := tx.ExecContext(ctx, query, coupon.ID, coupon.UserID, coupon.Code, coupon.PointsSpent, coupon.ExpiresAt); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ListCoupons returns a user's coupons, newest first.
func (r *PostgresRepository) ListCoupons(ctx context.Context, userID string) ([]Coupon, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("rewards repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT id, user_id, code, points_spent, is_used, created_at, expires_at
FROM %s
WHERE user_id = $1
ORDER BY created_at DESC`, r.couponsTable)

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Coupon, 0)
	for rows.Next() {
		var coupon Coupon
		if err := rows.Scan(&coupon.ID, &coupon.UserID, &coupon.Code, &coupon.PointsSpent, &coupon.IsUsed, &coupon.CreatedAt, &coupon.ExpiresAt); err != nil {
			return nil, err
		}
		coupon.CreatedAt = coupon.CreatedAt.UTC()
		coupon.ExpiresAt = coupon.ExpiresAt.UTC()
		out = append(out, coupon)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// PointsBalance is the sum of scanned points minus spent points.
func (r *PostgresRepository) PointsBalance(ctx context.Context, userID string) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("rewards repo: nil db")
	}
	return r.balance(ctx, r.db, userID)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *PostgresRepository) balance(ctx context.Context, q querier, userID string) (int, error) {
	query := fmt.Sprintf(`
SELECT
	COALESCE((SELECT SUM(points) FROM %s WHERE user_id = $1), 0)
	- COALESCE((SELECT SUM(points_spent) FROM %s WHERE user_id = $1), 0)`,
		r.scansTable, r.couponsTable)

	var balance int
	if err := q.QueryRowContext(ctx, query, userID).Scan(&balance); err != nil {
		return 0, err
	}
	return balance, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
