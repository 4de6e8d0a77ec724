package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"naturepark-cloud/internal/auth"
	stations "naturepark-cloud/internal/stations/domain"
)

func newStationsHandler(t *testing.T, stationRepo *fakeStationRepo, measurementRepo *fakeMeasurementRepo) *StationsHandler {
	t.Helper()
	handler, err := NewStationsHandler(stationRepo, measurementRepo, nil, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler
}

func TestStations_CreateIsIdempotent(t *testing.T) {
	stationRepo := newFakeStationRepo()
	handler := newStationsHandler(t, stationRepo, &fakeMeasurementRepo{})

	body := `{"station_id": "dev-1", "name": "Summit", "location": "south slope"}`
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/stations", strings.NewReader(body))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusCreated {
			t.Fatalf("attempt %d: expected 201, got %d", i, resp.Code)
		}
	}
	if len(stationRepo.stations) != 1 {
		t.Fatalf("expected 1 station, got %d", len(stationRepo.stations))
	}

	// Second create with different fields keeps the first row.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stations",
		strings.NewReader(`{"station_id": "dev-1", "name": "Other"}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
	if stationRepo.stations["dev-1"].Name != "Summit" {
		t.Fatalf("existing station overwritten: %+v", stationRepo.stations["dev-1"])
	}
}

func TestStations_GetUpdateDelete(t *testing.T) {
	stationRepo := newFakeStationRepo()
	if _, err := stationRepo.GetOrCreate(nil, "dev-1", "Summit", ""); err != nil {
		t.Fatalf("seed station: %v", err)
	}
	handler := newStationsHandler(t, stationRepo, &fakeMeasurementRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stations/dev-1", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.Code)
	}
	var view stationView
	if err := json.Unmarshal(resp.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode station: %v", err)
	}
	if view.StationID != "dev-1" || view.Name != "Summit" || !view.IsActive {
		t.Fatalf("unexpected station: %+v", view)
	}

	req = httptest.NewRequest(http.MethodPut, "/api/v1/stations/dev-1",
		strings.NewReader(`{"name": "Summit East", "is_active": false}`))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", resp.Code)
	}
	updated := stationRepo.stations["dev-1"]
	if updated.Name != "Summit East" || updated.IsActive {
		t.Fatalf("update not applied: %+v", updated)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/stations/dev-1", nil)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.Code)
	}
	if _, ok := stationRepo.stations["dev-1"]; ok {
		t.Fatal("station not deleted")
	}
}

func TestStations_GetUnknownReturns404(t *testing.T) {
	handler := newStationsHandler(t, newFakeStationRepo(), &fakeMeasurementRepo{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stations/ghost", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestStations_ListActiveOnly(t *testing.T) {
	stationRepo := newFakeStationRepo()
	_, _ = stationRepo.GetOrCreate(nil, "dev-1", "", "")
	_, _ = stationRepo.GetOrCreate(nil, "dev-2", "", "")
	stationRepo.stations["dev-2"].IsActive = false
	handler := newStationsHandler(t, stationRepo, &fakeMeasurementRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stations?active=true", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var list []stationView
	if err := json.Unmarshal(resp.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].StationID != "dev-1" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestStations_ListHidesInactiveFromUsers(t *testing.T) {
	stationRepo := newFakeStationRepo()
	_, _ = stationRepo.GetOrCreate(nil, "dev-1", "Summit", "")
	_, _ = stationRepo.GetOrCreate(nil, "dev-2", "Retired", "")
	stationRepo.stations["dev-2"].IsActive = false
	handler := newStationsHandler(t, stationRepo, &fakeMeasurementRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stations", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), "user-1", auth.RoleUser, "hiker@example.com"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var list []stationView
	if err := json.Unmarshal(resp.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].StationID != "dev-1" {
		t.Fatalf("expected only the active station, got %+v", list)
	}
}

func TestStations_ListShowsAllToAdmins(t *testing.T) {
	stationRepo := newFakeStationRepo()
	_, _ = stationRepo.GetOrCreate(nil, "dev-1", "Summit", "")
	_, _ = stationRepo.GetOrCreate(nil, "dev-2", "Retired", "")
	stationRepo.stations["dev-2"].IsActive = false
	handler := newStationsHandler(t, stationRepo, &fakeMeasurementRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stations", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), "admin-1", auth.RoleAdmin, "warden@example.com"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var list []stationView
	if err := json.Unmarshal(resp.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected both stations, got %+v", list)
	}
}

func TestStations_Availability(t *testing.T) {
	measurementRepo := &fakeMeasurementRepo{}
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	measurementRepo.measurements = []stations.Measurement{
		{StationID: "dev-1", Type: "temperature", Value: 1, RecordedAt: base},
		{StationID: "dev-1", Type: "temperature", Value: 2, RecordedAt: base.Add(72 * time.Hour)},
	}
	handler := newStationsHandler(t, newFakeStationRepo(), measurementRepo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stations/dev-1/availability", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var out map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out["station_id"] != "dev-1" {
		t.Fatalf("unexpected station id: %q", out["station_id"])
	}
	if out["min_date"] != "2024-05-01T12:00:00Z" || out["max_date"] != "2024-05-04T12:00:00Z" {
		t.Fatalf("unexpected range: %+v", out)
	}
}

func TestStations_AvailabilityNoData(t *testing.T) {
	handler := newStationsHandler(t, newFakeStationRepo(), &fakeMeasurementRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stations/dev-1/availability", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	var out map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out["error"] != "No data available for this station." {
		t.Fatalf("unexpected error message: %q", out["error"])
	}
}

func TestStations_ReportPDF(t *testing.T) {
	stationRepo := newFakeStationRepo()
	_, _ = stationRepo.GetOrCreate(nil, "dev-1", "Summit", "")
	measurementRepo := &fakeMeasurementRepo{}
	measurementRepo.measurements = []stations.Measurement{
		{StationID: "dev-1", Type: "temperature", Value: 1, RecordedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
	}
	handler := newStationsHandler(t, stationRepo, measurementRepo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stations/dev-1/report.pdf", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("expected pdf content type, got %q", ct)
	}
	if !strings.HasPrefix(resp.Body.String(), "%PDF") {
		t.Fatal("expected PDF payload")
	}
}
