package stations

import (
	"context"
	"errors"
	"time"
)

// Station represents a physical sensor device in the park.
type Station struct {
	ID        string
	Name      string
	Location  string
	IsActive  bool
	CreatedAt time.Time
}

// Validate checks station invariants.
func (s Station) Validate() error {
	if s.ID == "" {
		return errors.New("station: empty id")
	}
	if s.Name == "" {
		return errors.New("station: empty name")
	}
	return nil
}

// DefaultName derives the display label for a station created lazily
// on first data arrival.
func DefaultName(id string) string {
	return "Station " + id
}

// StationRepository manages station persistence.
type StationRepository interface {
	// GetOrCreate returns the station with the given id, creating it
	// with the provided defaults if missing. Existing rows are never
	// overwritten. Safe to call concurrently for the same id.
	GetOrCreate(ctx context.Context, id, name, location string) (*Station, error)
	Get(ctx context.Context, id string) (*Station, error)
	List(ctx context.Context, activeOnly bool) ([]Station, error)
	Save(ctx context.Context, station *Station) error
	Delete(ctx context.Context, id string) error
}
