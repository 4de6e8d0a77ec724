package rewards

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// QRCode is a scannable park marker worth a fixed number of points.
// TextContent is the encoded payload and is unique across codes.
type QRCode struct {
	ID          string
	Name        string
	TextContent string
	Points      int
	PNG         []byte
	CreatedAt   time.Time
}

// Validate checks QR code invariants.
func (q QRCode) Validate() error {
	if q.ID == "" {
		return errors.New("qr code: empty id")
	}
	if q.TextContent == "" {
		return errors.New("qr code: empty text content")
	}
	if q.Points < 0 {
		return errors.New("qr code: negative points")
	}
	return nil
}

// Scan records one user scanning one QR code. Points snapshots the
// code's value at scan time so later edits do not rewrite history.
type Scan struct {
	ID        string
	UserID    string
	QRCodeID  string
	Points    int
	ScannedAt time.Time
}

// CouponCost is the fixed point price of a discount coupon.
const CouponCost = 100

// couponValidity is how long a freshly issued coupon stays redeemable.
const couponValidity = 30 * 24 * time.Hour

// Coupon is a discount voucher bought with accumulated points.
type Coupon struct {
	ID          string
	UserID      string
	Code        string
	PointsSpent int
	IsUsed      bool
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// NewCoupon issues a coupon for a user at the fixed cost.
func NewCoupon(userID string, now time.Time) *Coupon {
	return &Coupon{
		ID:          uuid.NewString(),
		UserID:      userID,
		Code:        newCouponCode(),
		PointsSpent: CouponCost,
		CreatedAt:   now,
		ExpiresAt:   now.Add(couponValidity),
	}
}

func newCouponCode() string {
	fragment := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return "DISCOUNT-" + strings.ToUpper(fragment)
}

// ErrNotFound reports a missing QR code.
var ErrNotFound = errors.New("qr code not found")

// ErrAlreadyScanned reports a repeat scan by the same user.
var ErrAlreadyScanned = errors.New("qr code already scanned")

// ErrDuplicateContent reports a text content collision between codes.
var ErrDuplicateContent = errors.New("qr code content already exists")

// ErrInsufficientPoints reports a coupon purchase the balance cannot cover.
var ErrInsufficientPoints = errors.New("insufficient points")

// Repository manages rewards persistence.
type Repository interface {
	CreateQRCode(ctx context.Context, code *QRCode) error
	GetQRCode(ctx context.Context, id string) (*QRCode, error)
	GetQRCodeByContent(ctx context.Context, content string) (*QRCode, error)
	ListQRCodes(ctx context.Context) ([]QRCode, error)
	UpdateQRCode(ctx context.Context, code *QRCode) error
	DeleteQRCode(ctx context.Context, id string) error

	// RecordScan stores a scan and returns ErrAlreadyScanned when the
	// user already scanned that code.
	RecordScan(ctx context.Context, scan *Scan) error
	ListScans(ctx context.Context, userID string) ([]Scan, error)

	// CreateCoupon deducts the coupon cost from the balance and returns
	// ErrInsufficientPoints when the balance cannot cover it.
	CreateCoupon(ctx context.Context, coupon *Coupon) error
	ListCoupons(ctx context.Context, userID string) ([]Coupon, error)

	// PointsBalance is the sum of scanned points minus spent points.
	PointsBalance(ctx context.Context, userID string) (int, error)
}
