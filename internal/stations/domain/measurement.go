package stations

import (
	"context"
	"errors"
	"math"
	"time"
)

// Measurement is a single typed sensor reading. Measurements are
// append-only: once written they are never updated.
type Measurement struct {
	ID         int64
	StationID  string
	Type       string
	Value      float64
	RecordedAt time.Time
}

// Validate checks measurement invariants.
func (m Measurement) Validate() error {
	if m.StationID == "" {
		return errors.New("measurement: empty station id")
	}
	if m.Type == "" {
		return errors.New("measurement: empty type")
	}
	if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		return errors.New("measurement: value not finite")
	}
	if m.RecordedAt.IsZero() {
		return errors.New("measurement: zero recorded_at")
	}
	return nil
}

// Availability is the recorded-at range a station has data for.
type Availability struct {
	StationID string
	MinDate   time.Time
	MaxDate   time.Time
}

// ErrNoData reports a station without any stored measurements.
var ErrNoData = errors.New("no data available for this station")

// MeasurementRepository manages the append-only measurement log.
type MeasurementRepository interface {
	// InsertBatch appends measurements in a single transaction.
	InsertBatch(ctx context.Context, measurements []Measurement) error
	// Query returns measurements for a station with recorded_at in the
	// closed interval [start, end], newest first.
	Query(ctx context.Context, stationID string, start, end time.Time) ([]Measurement, error)
	// Availability returns the min/max recorded_at for a station, or
	// ErrNoData when the station has no measurements.
	Availability(ctx context.Context, stationID string) (*Availability, error)
}
