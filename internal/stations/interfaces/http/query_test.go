package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	stations "naturepark-cloud/internal/stations/domain"
)

func seedMeasurements(repo *fakeMeasurementRepo) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo.measurements = []stations.Measurement{
		{StationID: "dev-1", Type: "temperature", Value: 18.25, RecordedAt: base},
		{StationID: "dev-1", Type: "humidity", Value: 60, RecordedAt: base.Add(time.Hour)},
		{StationID: "dev-1", Type: "temperature", Value: 19.5, RecordedAt: base.Add(2 * time.Hour)},
		{StationID: "dev-2", Type: "temperature", Value: 30, RecordedAt: base.Add(time.Hour)},
		{StationID: "dev-1", Type: "temperature", Value: 10, RecordedAt: base.Add(-48 * time.Hour)},
	}
}

func TestQuery_FiltersAndOrders(t *testing.T) {
	repo := &fakeMeasurementRepo{}
	seedMeasurements(repo)
	handler, err := NewQueryHandler(repo, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	url := "/api/v1/measurements?station_id=dev-1" +
		"&start=2024-05-01T12:00:00Z&end=2024-05-01T14:00:00Z"
	req := httptest.NewRequest(http.MethodGet, url, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var rows []measurementRow
	if err := json.Unmarshal(resp.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	// Newest first.
	if rows[0].MeasurementType != "temperature" || rows[0].Value != 19.5 {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if rows[2].RecordedAt != "2024-05-01T12:00:00Z" {
		t.Fatalf("unexpected last row: %+v", rows[2])
	}
}

func TestQuery_MissingParamsReturnsEmptyList(t *testing.T) {
	repo := &fakeMeasurementRepo{}
	seedMeasurements(repo)
	handler, err := NewQueryHandler(repo, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	for _, url := range []string{
		"/api/v1/measurements",
		"/api/v1/measurements?station_id=dev-1",
		"/api/v1/measurements?station_id=dev-1&start=2024-05-01T12:00:00Z",
		"/api/v1/measurements?station_id=dev-1&start=not-a-time&end=2024-05-01T14:00:00Z",
	} {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", url, resp.Code)
		}
		if got := strings.TrimSpace(resp.Body.String()); got != "[]" {
			t.Fatalf("%s: expected empty list, got %s", url, got)
		}
	}
}

func TestQuery_CSV(t *testing.T) {
	repo := &fakeMeasurementRepo{}
	seedMeasurements(repo)
	handler, err := NewQueryHandler(repo, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	url := "/api/v1/measurements?station_id=dev-1" +
		"&start=2024-05-01T12:00:00Z&end=2024-05-01T12:30:00Z"
	req := httptest.NewRequest(http.MethodGet, url, nil)
	req.Header.Set("Accept", "text/csv")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected csv content type, got %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(resp.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus one row, got %d lines", len(lines))
	}
	if lines[0] != "measurement_type,value,recorded_at" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	// Float values reproduce verbatim, no truncation.
	if lines[1] != "temperature,18.25,2024-05-01T12:00:00Z" {
		t.Fatalf("unexpected row: %q", lines[1])
	}
}

func TestQuery_XLSX(t *testing.T) {
	repo := &fakeMeasurementRepo{}
	seedMeasurements(repo)
	handler, err := NewQueryHandler(repo, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	url := "/api/v1/measurements?station_id=dev-1&format=xlsx" +
		"&start=2024-05-01T12:00:00Z&end=2024-05-01T14:00:00Z"
	req := httptest.NewRequest(http.MethodGet, url, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if resp.Body.Len() == 0 {
		t.Fatal("expected non-empty workbook")
	}
}
