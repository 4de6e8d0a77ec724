package http

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"naturepark-cloud/internal/observability/metrics"
	stations "naturepark-cloud/internal/stations/domain"
)

const timeLayout = time.RFC3339

// QueryHandler serves measurement range queries.
type QueryHandler struct {
	measurementRepo stations.MeasurementRepository
	logger          *log.Logger
}

// NewQueryHandler constructs a query handler.
func NewQueryHandler(measurementRepo stations.MeasurementRepository, logger *log.Logger) (*QueryHandler, error) {
	if measurementRepo == nil {
		return nil, errors.New("query handler: nil measurement repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &QueryHandler{measurementRepo: measurementRepo, logger: logger}, nil
}

// ServeHTTP handles GET /api/v1/measurements.
//
// station_id, start and end are all required; if any is missing or
// unparseable the response is an empty list with 200, not an error.
// Dashboards poll this endpoint before their filters are filled in.
func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	began := time.Now()
	format := resolveFormat(r)
	defer func() {
		metrics.ObserveQuery(format, time.Since(began))
	}()

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rows := []stations.Measurement{}
	stationID := r.URL.Query().Get("station_id")
	start, startErr := parseOptionalTime(r, "start")
	end, endErr := parseOptionalTime(r, "end")
	if stationID != "" && startErr == nil && endErr == nil {
		queried, err := h.measurementRepo.Query(r.Context(), stationID, start, end)
		if err != nil {
			h.logger.Printf("measurement query: station %s: %v", stationID, err)
			respondError(w, http.StatusInternalServerError, "query error")
			return
		}
		rows = queried
	}

	switch format {
	case "csv":
		writeMeasurementsCSV(w, rows)
	case "xlsx":
		h.writeMeasurementsXLSX(w, rows)
	default:
		w.Header().Set("Content-Type", "application/json")
		out := make([]measurementRow, 0, len(rows))
		for _, m := range rows {
			out = append(out, measurementRow{
				MeasurementType: m.Type,
				Value:           m.Value,
				RecordedAt:      m.RecordedAt.UTC().Format(timeLayout),
			})
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

type measurementRow struct {
	MeasurementType string  `json:"measurement_type"`
	Value           float64 `json:"value"`
	RecordedAt      string  `json:"recorded_at"`
}

func resolveFormat(r *http.Request) string {
	switch r.URL.Query().Get("format") {
	case "csv":
		return "csv"
	case "xlsx":
		return "xlsx"
	case "json":
		return "json"
	}
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "text/csv") {
		return "csv"
	}
	return "json"
}

func parseOptionalTime(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, errors.New(key + " is required")
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be RFC3339")
	}
	return parsed.UTC(), nil
}

func writeMeasurementsCSV(w http.ResponseWriter, rows []stations.Measurement) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"measurement_type", "value", "recorded_at"})
	for _, m := range rows {
		_ = writer.Write([]string{
			m.Type,
			formatFloat(m.Value),
			m.RecordedAt.UTC().Format(timeLayout),
		})
	}
	writer.Flush()
}

func (h *QueryHandler) writeMeasurementsXLSX(w http.ResponseWriter, rows []stations.Measurement) {
	data, err := BuildMeasurementsXLSX(rows)
	if err != nil {
		h.logger.Printf("measurement query: xlsx render: %v", err)
		respondError(w, http.StatusInternalServerError, "export error")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="measurements.xlsx"`)
	_, _ = w.Write(data)
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
