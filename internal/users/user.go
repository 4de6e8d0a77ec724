package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"naturepark-cloud/internal/auth"
)

// User is a registered account.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         auth.Role
	CreatedAt    time.Time
}

// Validate checks user invariants.
func (u User) Validate() error {
	if u.ID == "" {
		return errors.New("user: empty id")
	}
	if u.Email == "" {
		return errors.New("user: empty email")
	}
	if u.PasswordHash == "" {
		return errors.New("user: empty password hash")
	}
	return nil
}

// ErrNotFound reports a missing user.
var ErrNotFound = errors.New("user not found")

// Repository manages user persistence.
type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateName(ctx context.Context, id, name string) error
	List(ctx context.Context) ([]User, error)
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", errors.New("user: password too short")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
