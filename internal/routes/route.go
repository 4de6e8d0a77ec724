package routes

import (
	"context"
	"errors"
	"time"
)

// Route is a marked hiking trail.
type Route struct {
	ID                string
	Name              string
	DistanceKM        float64
	Duration          string
	RouteType         string
	Difficulty        string
	AltitudeMinM      int
	AltitudeMaxM      int
	AccumulatedClimbM int
	StartPointGPS     string
	Description       string
	POIs              []PointOfInterest
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PointOfInterest is a waypoint along a route.
type PointOfInterest struct {
	ID          string
	RouteID     string
	Name        string
	Description string
	Latitude    float64
	Longitude   float64
}

// Known route types and difficulties.
const (
	TypeCircular = "circular"
	TypeLinear   = "linear"

	DifficultyEasy   = "Easy"
	DifficultyMedium = "Medium"
	DifficultyHard   = "Hard"
)

// Validate checks route invariants.
func (r Route) Validate() error {
	if r.ID == "" {
		return errors.New("route: empty id")
	}
	if r.Name == "" {
		return errors.New("route: empty name")
	}
	switch r.RouteType {
	case TypeCircular, TypeLinear:
	default:
		return errors.New("route: invalid route type")
	}
	switch r.Difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
	default:
		return errors.New("route: invalid difficulty")
	}
	if r.DistanceKM < 0 {
		return errors.New("route: negative distance")
	}
	return nil
}

// ErrNotFound reports a missing route.
var ErrNotFound = errors.New("route not found")

// Repository manages route persistence. POIs cascade with the route.
type Repository interface {
	Create(ctx context.Context, route *Route) error
	Get(ctx context.Context, id string) (*Route, error)
	List(ctx context.Context) ([]Route, error)
	Update(ctx context.Context, route *Route) error
	Delete(ctx context.Context, id string) error
}
