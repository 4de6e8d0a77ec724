package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"naturepark-cloud/internal/audit"
	"naturepark-cloud/internal/auth"
	stations "naturepark-cloud/internal/stations/domain"
)

// StationsHandler provides station CRUD, availability and report
// endpoints under /api/v1/stations.
type StationsHandler struct {
	stationRepo     stations.StationRepository
	measurementRepo stations.MeasurementRepository
	auditor         audit.Logger
	logger          *log.Logger
}

// NewStationsHandler constructs a stations handler.
func NewStationsHandler(stationRepo stations.StationRepository, measurementRepo stations.MeasurementRepository, auditor audit.Logger, logger *log.Logger) (*StationsHandler, error) {
	if stationRepo == nil {
		return nil, errors.New("stations handler: nil station repository")
	}
	if measurementRepo == nil {
		return nil, errors.New("stations handler: nil measurement repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &StationsHandler{
		stationRepo:     stationRepo,
		measurementRepo: measurementRepo,
		auditor:         auditor,
		logger:          logger,
	}, nil
}

// ServeHTTP handles /api/v1/stations and subroutes.
func (h *StationsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/stations" || r.URL.Path == "/api/v1/stations/":
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleCreate(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case strings.HasPrefix(r.URL.Path, "/api/v1/stations/"):
		h.handleStation(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *StationsHandler) handleStation(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/stations/")
	parts := strings.Split(path, "/")
	id := parts[0]
	if id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			h.handleGet(w, r, id)
		case http.MethodPut:
			h.handleUpdate(w, r, id)
		case http.MethodDelete:
			h.handleDelete(w, r, id)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case len(parts) == 2 && parts[1] == "availability":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleAvailability(w, r, id)
	case len(parts) == 2 && parts[1] == "report.pdf":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleReport(w, r, id)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *StationsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	// Only admins see deactivated stations; the query parameter can
	// narrow an admin's view but never widen a user's.
	activeOnly := !auth.IsAdmin(r.Context())
	if r.URL.Query().Get("active") == "true" {
		activeOnly = true
	}
	list, err := h.stationRepo.List(r.Context(), activeOnly)
	if err != nil {
		h.logger.Printf("stations list: %v", err)
		respondError(w, http.StatusInternalServerError, "list error")
		return
	}
	out := make([]stationView, 0, len(list))
	for _, s := range list {
		out = append(out, toStationView(s))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (h *StationsHandler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	station, err := h.stationRepo.Get(r.Context(), id)
	if err != nil {
		h.logger.Printf("stations get %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "get error")
		return
	}
	if station == nil {
		respondError(w, http.StatusNotFound, "station not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toStationView(*station))
}

func (h *StationsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req stationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.StationID == "" {
		respondError(w, http.StatusBadRequest, "station_id is required")
		return
	}
	name := req.Name
	if name == "" {
		name = stations.DefaultName(req.StationID)
	}
	station, err := h.stationRepo.GetOrCreate(r.Context(), req.StationID, name, req.Location)
	if err != nil {
		h.logger.Printf("stations create %s: %v", req.StationID, err)
		respondError(w, http.StatusInternalServerError, "create error")
		return
	}
	h.auditAction(r, "station.create", station.ID, req)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toStationView(*station))
}

func (h *StationsHandler) handleUpdate(w http.ResponseWriter, r *http.Request, id string) {
	station, err := h.stationRepo.Get(r.Context(), id)
	if err != nil {
		h.logger.Printf("stations update %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "update error")
		return
	}
	if station == nil {
		respondError(w, http.StatusNotFound, "station not found")
		return
	}

	var req stationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Name != "" {
		station.Name = req.Name
	}
	if req.Location != "" {
		station.Location = req.Location
	}
	if req.IsActive != nil {
		station.IsActive = *req.IsActive
	}
	if err := h.stationRepo.Save(r.Context(), station); err != nil {
		h.logger.Printf("stations update %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "update error")
		return
	}
	h.auditAction(r, "station.update", id, req)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toStationView(*station))
}

func (h *StationsHandler) handleDelete(w http.ResponseWriter, r *http.Request, id string) {
	station, err := h.stationRepo.Get(r.Context(), id)
	if err != nil {
		h.logger.Printf("stations delete %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "delete error")
		return
	}
	if station == nil {
		respondError(w, http.StatusNotFound, "station not found")
		return
	}
	if err := h.stationRepo.Delete(r.Context(), id); err != nil {
		h.logger.Printf("stations delete %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "delete error")
		return
	}
	h.auditAction(r, "station.delete", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *StationsHandler) handleAvailability(w http.ResponseWriter, r *http.Request, id string) {
	availability, err := h.measurementRepo.Availability(r.Context(), id)
	if err != nil {
		if errors.Is(err, stations.ErrNoData) {
			respondError(w, http.StatusNotFound, "No data available for this station.")
			return
		}
		h.logger.Printf("stations availability %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "availability error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"station_id": availability.StationID,
		"min_date":   availability.MinDate.Format(timeLayout),
		"max_date":   availability.MaxDate.Format(timeLayout),
	})
}

func (h *StationsHandler) handleReport(w http.ResponseWriter, r *http.Request, id string) {
	station, err := h.stationRepo.Get(r.Context(), id)
	if err != nil {
		h.logger.Printf("stations report %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "report error")
		return
	}
	if station == nil {
		respondError(w, http.StatusNotFound, "station not found")
		return
	}

	availability, err := h.measurementRepo.Availability(r.Context(), id)
	if err != nil && !errors.Is(err, stations.ErrNoData) {
		h.logger.Printf("stations report %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "report error")
		return
	}

	var recent []stations.Measurement
	if availability != nil {
		recent, err = h.measurementRepo.Query(r.Context(), id, availability.MaxDate.Add(-24*time.Hour), availability.MaxDate)
		if err != nil {
			h.logger.Printf("stations report %s: %v", id, err)
			respondError(w, http.StatusInternalServerError, "report error")
			return
		}
	}

	data, err := BuildStationReportPDF(station, availability, recent)
	if err != nil {
		h.logger.Printf("stations report %s: pdf render: %v", id, err)
		respondError(w, http.StatusInternalServerError, "report error")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="station-report.pdf"`)
	_, _ = w.Write(data)
}

func (h *StationsHandler) auditAction(r *http.Request, action, stationID string, payload any) {
	if h.auditor == nil {
		return
	}
	var metadata json.RawMessage
	if payload != nil {
		metadata, _ = json.Marshal(payload)
	}
	entry := audit.Entry{
		Actor:        auth.UserIDFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "station",
		ResourceID:   stationID,
		Metadata:     metadata,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	}
	if err := h.auditor.Log(r.Context(), entry); err != nil {
		h.logger.Printf("audit %s: %v", action, err)
	}
}

type stationRequest struct {
	StationID string `json:"station_id"`
	Name      string `json:"name"`
	Location  string `json:"location"`
	IsActive  *bool  `json:"is_active"`
}

type stationView struct {
	StationID string `json:"station_id"`
	Name      string `json:"name"`
	Location  string `json:"location"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

func toStationView(s stations.Station) stationView {
	return stationView{
		StationID: s.ID,
		Name:      s.Name,
		Location:  s.Location,
		IsActive:  s.IsActive,
		CreatedAt: s.CreatedAt.UTC().Format(timeLayout),
	}
}
