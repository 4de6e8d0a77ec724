package flora

import (
	"context"
	"errors"
	"time"
)

// Plant is a flora catalog entry.
type Plant struct {
	ID               string
	ScientificName   string
	CommonNames      string
	InteractionFauna string
	FoodUses         string
	MedicinalUses    string
	OrnamentalUses   string
	TraditionalUses  string
	AromaticUses     string
	UsesFlags        map[string]bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Validate checks plant invariants.
func (p Plant) Validate() error {
	if p.ID == "" {
		return errors.New("plant: empty id")
	}
	if p.ScientificName == "" {
		return errors.New("plant: empty scientific name")
	}
	return nil
}

// ErrNotFound reports a missing plant.
var ErrNotFound = errors.New("plant not found")

// ErrDuplicateName reports a scientific-name collision.
var ErrDuplicateName = errors.New("scientific name already cataloged")

// Repository manages flora persistence.
type Repository interface {
	Create(ctx context.Context, plant *Plant) error
	Get(ctx context.Context, id string) (*Plant, error)
	// List returns plants ordered by scientific name; use filters on
	// a UsesFlags key when non-empty.
	List(ctx context.Context, use string) ([]Plant, error)
	Update(ctx context.Context, plant *Plant) error
	Delete(ctx context.Context, id string) error
}
