package feedback

import (
	"context"
	"errors"
	"time"
)

// Feedback is a visitor-submitted report or suggestion.
type Feedback struct {
	ID        string
	UserID    string
	Name      string
	Surname   string
	Email     string
	Subject   string
	Message   string
	Category  string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Known categories and statuses.
const (
	CategoryGeneral = "general"
	CategoryBug     = "bug"
	CategoryFeature = "feature"
	CategoryOther   = "other"

	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusClosed     = "closed"
)

// ValidCategory reports whether the category is known.
func ValidCategory(category string) bool {
	switch category {
	case CategoryGeneral, CategoryBug, CategoryFeature, CategoryOther:
		return true
	default:
		return false
	}
}

// ValidStatus reports whether the status is known.
func ValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusInProgress, StatusResolved, StatusClosed:
		return true
	default:
		return false
	}
}

// Validate checks feedback invariants.
func (f Feedback) Validate() error {
	if f.ID == "" {
		return errors.New("feedback: empty id")
	}
	if f.Subject == "" {
		return errors.New("feedback: empty subject")
	}
	if f.Message == "" {
		return errors.New("feedback: empty message")
	}
	if !ValidCategory(f.Category) {
		return errors.New("feedback: invalid category")
	}
	if !ValidStatus(f.Status) {
		return errors.New("feedback: invalid status")
	}
	return nil
}

// ErrNotFound reports a missing feedback entry.
var ErrNotFound = errors.New("feedback not found")

// Filter narrows admin listings.
type Filter struct {
	Status string
	Search string
}

// Repository manages feedback persistence.
type Repository interface {
	Create(ctx context.Context, entry *Feedback) error
	Get(ctx context.Context, id string) (*Feedback, error)
	ListByUser(ctx context.Context, userID string) ([]Feedback, error)
	List(ctx context.Context, filter Filter) ([]Feedback, error)
	Update(ctx context.Context, entry *Feedback) error
	Delete(ctx context.Context, id string) error
}
