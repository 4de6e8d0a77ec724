package http

import (
	"context"
	"sort"
	"time"

	stations "naturepark-cloud/internal/stations/domain"
)

type fakeStationRepo struct {
	stations map[string]*stations.Station
	saves    int
}

func newFakeStationRepo() *fakeStationRepo {
	return &fakeStationRepo{stations: make(map[string]*stations.Station)}
}

func (r *fakeStationRepo) GetOrCreate(_ context.Context, id, name, location string) (*stations.Station, error) {
	if existing, ok := r.stations[id]; ok {
		return existing, nil
	}
	if name == "" {
		name = stations.DefaultName(id)
	}
	station := &stations.Station{
		ID:        id,
		Name:      name,
		Location:  location,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	r.stations[id] = station
	return station, nil
}

func (r *fakeStationRepo) Get(_ context.Context, id string) (*stations.Station, error) {
	return r.stations[id], nil
}

func (r *fakeStationRepo) List(_ context.Context, activeOnly bool) ([]stations.Station, error) {
	out := make([]stations.Station, 0, len(r.stations))
	for _, s := range r.stations {
		if activeOnly && !s.IsActive {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeStationRepo) Save(_ context.Context, station *stations.Station) error {
	copied := *station
	r.stations[station.ID] = &copied
	r.saves++
	return nil
}

func (r *fakeStationRepo) Delete(_ context.Context, id string) error {
	delete(r.stations, id)
	return nil
}

type fakeMeasurementRepo struct {
	measurements []stations.Measurement
	insertErr    error
}

func (r *fakeMeasurementRepo) InsertBatch(_ context.Context, batch []stations.Measurement) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	r.measurements = append(r.measurements, batch...)
	return nil
}

func (r *fakeMeasurementRepo) Query(_ context.Context, stationID string, start, end time.Time) ([]stations.Measurement, error) {
	out := make([]stations.Measurement, 0)
	for _, m := range r.measurements {
		if m.StationID != stationID {
			continue
		}
		if m.RecordedAt.Before(start) || m.RecordedAt.After(end) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	return out, nil
}

func (r *fakeMeasurementRepo) Availability(_ context.Context, stationID string) (*stations.Availability, error) {
	var minDate, maxDate time.Time
	found := false
	for _, m := range r.measurements {
		if m.StationID != stationID {
			continue
		}
		if !found || m.RecordedAt.Before(minDate) {
			minDate = m.RecordedAt
		}
		if !found || m.RecordedAt.After(maxDate) {
			maxDate = m.RecordedAt
		}
		found = true
	}
	if !found {
		return nil, stations.ErrNoData
	}
	return &stations.Availability{StationID: stationID, MinDate: minDate, MaxDate: maxDate}, nil
}
