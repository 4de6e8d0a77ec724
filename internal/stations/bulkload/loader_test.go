package bulkload

import (
	"context"
	"strings"
	"testing"
	"time"

	stations "naturepark-cloud/internal/stations/domain"
)

type fakeStationRepo struct {
	created map[string]*stations.Station
	calls   int
}

func newFakeStationRepo() *fakeStationRepo {
	return &fakeStationRepo{created: make(map[string]*stations.Station)}
}

func (r *fakeStationRepo) GetOrCreate(_ context.Context, id, name, location string) (*stations.Station, error) {
	r.calls++
	if existing, ok := r.created[id]; ok {
		return existing, nil
	}
	station := &stations.Station{ID: id, Name: name, Location: location, IsActive: true}
	r.created[id] = station
	return station, nil
}

func (r *fakeStationRepo) Get(context.Context, string) (*stations.Station, error) { return nil, nil }
func (r *fakeStationRepo) List(context.Context, bool) ([]stations.Station, error) {
	return nil, nil
}
func (r *fakeStationRepo) Save(context.Context, *stations.Station) error { return nil }
func (r *fakeStationRepo) Delete(context.Context, string) error          { return nil }

type fakeMeasurementRepo struct {
	batches [][]stations.Measurement
}

func (r *fakeMeasurementRepo) InsertBatch(_ context.Context, batch []stations.Measurement) error {
	copied := make([]stations.Measurement, len(batch))
	copy(copied, batch)
	r.batches = append(r.batches, copied)
	return nil
}

func (r *fakeMeasurementRepo) Query(context.Context, string, time.Time, time.Time) ([]stations.Measurement, error) {
	return nil, nil
}

func (r *fakeMeasurementRepo) Availability(context.Context, string) (*stations.Availability, error) {
	return nil, stations.ErrNoData
}

func (r *fakeMeasurementRepo) all() []stations.Measurement {
	var out []stations.Measurement
	for _, b := range r.batches {
		out = append(out, b...)
	}
	return out
}

func TestLoad_ParsesRowsAndChannels(t *testing.T) {
	stationRepo := newFakeStationRepo()
	measurementRepo := &fakeMeasurementRepo{}
	loader, err := NewLoader(stationRepo, measurementRepo, Config{}, nil)
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}

	csvData := strings.Join([]string{
		"DeviceID,Timestamp,temperature,humidity,pluviometer",
		"dev-1,1700000000,21.5,55,0.0",
		"dev-2,1700000060,19.0,,1.2",
	}, "\n")

	summary, err := loader.Load(context.Background(), strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if summary.Rows != 2 || summary.SkippedRows != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Measurements != 5 {
		t.Fatalf("expected 5 measurements, got %d", summary.Measurements)
	}
	if len(stationRepo.created) != 2 {
		t.Fatalf("expected 2 stations, got %d", len(stationRepo.created))
	}
	if stationRepo.created["dev-1"].Name != "Station dev-1" {
		t.Fatalf("unexpected station name: %q", stationRepo.created["dev-1"].Name)
	}

	for _, m := range measurementRepo.all() {
		if m.RecordedAt.IsZero() {
			t.Fatalf("zero recorded_at: %+v", m)
		}
	}
}

func TestLoad_SkipsRowWithEmptyDeviceID(t *testing.T) {
	stationRepo := newFakeStationRepo()
	measurementRepo := &fakeMeasurementRepo{}
	loader, err := NewLoader(stationRepo, measurementRepo, Config{}, nil)
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}

	csvData := strings.Join([]string{
		"DeviceID,Timestamp,temperature",
		",1700000000,21.5",
		"dev-1,1700000060,19.0",
	}, "\n")

	summary, err := loader.Load(context.Background(), strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if summary.SkippedRows != 1 {
		t.Fatalf("expected 1 skipped row, got %d", summary.SkippedRows)
	}
	if summary.Measurements != 1 {
		t.Fatalf("expected 1 measurement, got %d", summary.Measurements)
	}
}

func TestLoad_SkipsRowWithBadTimestamp(t *testing.T) {
	loader, err := NewLoader(newFakeStationRepo(), &fakeMeasurementRepo{}, Config{}, nil)
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}

	csvData := strings.Join([]string{
		"DeviceID,Timestamp,temperature",
		"dev-1,not-a-number,21.5",
		"dev-1,1700000060,19.0",
	}, "\n")

	summary, err := loader.Load(context.Background(), strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if summary.SkippedRows != 1 || summary.Measurements != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestLoad_SkipsBadCellOnly(t *testing.T) {
	measurementRepo := &fakeMeasurementRepo{}
	loader, err := NewLoader(newFakeStationRepo(), measurementRepo, Config{}, nil)
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}

	csvData := strings.Join([]string{
		"DeviceID,Timestamp,temperature,humidity",
		"dev-1,1700000000,not-a-float,55",
	}, "\n")

	summary, err := loader.Load(context.Background(), strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if summary.SkippedCells != 1 {
		t.Fatalf("expected 1 skipped cell, got %d", summary.SkippedCells)
	}
	all := measurementRepo.all()
	if len(all) != 1 || all[0].Type != "humidity" || all[0].Value != 55 {
		t.Fatalf("unexpected measurements: %+v", all)
	}
}

func TestLoad_FlushesInBatches(t *testing.T) {
	measurementRepo := &fakeMeasurementRepo{}
	loader, err := NewLoader(newFakeStationRepo(), measurementRepo, Config{BatchSize: 3}, nil)
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}

	rows := []string{"DeviceID,Timestamp,temperature,humidity"}
	for i := 0; i < 4; i++ {
		rows = append(rows, "dev-1,1700000000,20.0,50")
	}
	summary, err := loader.Load(context.Background(), strings.NewReader(strings.Join(rows, "\n")))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if summary.Measurements != 8 {
		t.Fatalf("expected 8 measurements, got %d", summary.Measurements)
	}
	if len(measurementRepo.batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(measurementRepo.batches))
	}
	if len(measurementRepo.batches[0]) != 3 || len(measurementRepo.batches[2]) != 2 {
		t.Fatalf("unexpected batch sizes: %d, %d, %d",
			len(measurementRepo.batches[0]), len(measurementRepo.batches[1]), len(measurementRepo.batches[2]))
	}
}

func TestLoad_CachesStationLookups(t *testing.T) {
	stationRepo := newFakeStationRepo()
	loader, err := NewLoader(stationRepo, &fakeMeasurementRepo{}, Config{}, nil)
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}

	rows := []string{"DeviceID,Timestamp,temperature"}
	for i := 0; i < 10; i++ {
		rows = append(rows, "dev-1,1700000000,20.0")
	}
	if _, err := loader.Load(context.Background(), strings.NewReader(strings.Join(rows, "\n"))); err != nil {
		t.Fatalf("load: %v", err)
	}
	if stationRepo.calls != 1 {
		t.Fatalf("expected 1 repo call, got %d", stationRepo.calls)
	}
}
