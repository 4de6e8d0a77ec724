package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"math"
	"net/http"
	"time"

	"naturepark-cloud/internal/observability/metrics"
	stations "naturepark-cloud/internal/stations/domain"
)

// IngestHandler handles telemetry ingestion from field devices.
type IngestHandler struct {
	stationRepo     stations.StationRepository
	measurementRepo stations.MeasurementRepository
	logger          *log.Logger
}

// NewIngestHandler constructs an ingest handler.
func NewIngestHandler(stationRepo stations.StationRepository, measurementRepo stations.MeasurementRepository, logger *log.Logger) (*IngestHandler, error) {
	if stationRepo == nil {
		return nil, errors.New("ingest handler: nil station repository")
	}
	if measurementRepo == nil {
		return nil, errors.New("ingest handler: nil measurement repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &IngestHandler{stationRepo: stationRepo, measurementRepo: measurementRepo, logger: logger}, nil
}

// ServeHTTP handles POST /api/v1/iot-data.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveIngest(result, time.Since(start))
	}()

	if r.Method != http.MethodPost {
		result = metrics.ResultError
		metrics.IncIngestError("method_not_allowed")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Printf("iot ingest: read body error: %v", err)
		result = metrics.ResultError
		metrics.IncIngestError("read_body")
		respondError(w, http.StatusBadRequest, "read body error")
		return
	}
	defer r.Body.Close()

	var req ingestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Printf("iot ingest: decode error: %v", err)
		result = metrics.ResultError
		metrics.IncIngestError("invalid_json")
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if req.StationID == "" || len(req.Measurements) == 0 {
		result = metrics.ResultError
		metrics.IncIngestError("missing_fields")
		respondError(w, http.StatusBadRequest, "station_id and measurements are required")
		return
	}

	station, err := h.stationRepo.GetOrCreate(r.Context(), req.StationID, stations.DefaultName(req.StationID), req.Location)
	if err != nil {
		h.logger.Printf("iot ingest: station upsert error: %v", err)
		result = metrics.ResultError
		metrics.IncIngestError("station_upsert")
		respondError(w, http.StatusInternalServerError, "station upsert error")
		return
	}

	measurements := make([]stations.Measurement, 0, len(req.Measurements))
	for _, item := range req.Measurements {
		m, reason := item.toMeasurement(station.ID)
		if reason != "" {
			h.logger.Printf("iot ingest: station %s: skipping measurement (%s): type=%q value=%v recorded_at=%d",
				station.ID, reason, item.Type, item.Value, item.RecordedAt)
			metrics.IncIngestSkipped(reason)
			continue
		}
		measurements = append(measurements, m)
	}

	if err := h.measurementRepo.InsertBatch(r.Context(), measurements); err != nil {
		h.logger.Printf("iot ingest: insert error: %v", err)
		result = metrics.ResultError
		metrics.IncIngestError("insert_error")
		respondError(w, http.StatusInternalServerError, "insert error")
		return
	}
	metrics.AddIngestStored(len(measurements))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "success"})
}

type ingestRequest struct {
	StationID    string              `json:"station_id"`
	Location     string              `json:"location"`
	Measurements []ingestMeasurement `json:"measurements"`
}

type ingestMeasurement struct {
	Type       string   `json:"type"`
	Value      *float64 `json:"value"`
	RecordedAt int64    `json:"recorded_at"`
}

// toMeasurement converts one payload item, returning a skip reason for
// malformed items. Bad items are dropped, never fatal to the request.
func (i ingestMeasurement) toMeasurement(stationID string) (stations.Measurement, string) {
	if i.Type == "" {
		return stations.Measurement{}, "empty_type"
	}
	if i.Value == nil || math.IsNaN(*i.Value) || math.IsInf(*i.Value, 0) {
		return stations.Measurement{}, "invalid_value"
	}
	ts, err := parseTimestamp(i.RecordedAt)
	if err != nil {
		return stations.Measurement{}, "invalid_timestamp"
	}
	return stations.Measurement{
		StationID:  stationID,
		Type:       i.Type,
		Value:      *i.Value,
		RecordedAt: ts,
	}, ""
}

func parseTimestamp(value int64) (time.Time, error) {
	if value <= 0 {
		return time.Time{}, errors.New("invalid recorded_at")
	}
	// Accept milliseconds or seconds.
	if value > 1_000_000_000_000 {
		return time.UnixMilli(value).UTC(), nil
	}
	return time.Unix(value, 0).UTC(), nil
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
