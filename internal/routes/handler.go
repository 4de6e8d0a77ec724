package routes

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"naturepark-cloud/internal/audit"
	"naturepark-cloud/internal/auth"
)

// Handler provides route endpoints under /api/v1/routes.
type Handler struct {
	repo    Repository
	auditor audit.Logger
	logger  *log.Logger
}

// NewHandler constructs a routes handler.
func NewHandler(repo Repository, auditor audit.Logger, logger *log.Logger) (*Handler, error) {
	if repo == nil {
		return nil, errors.New("routes handler: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{repo: repo, auditor: auditor, logger: logger}, nil
}

// ServeHTTP handles /api/v1/routes and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/routes":
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleCreate(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case strings.HasPrefix(r.URL.Path, "/api/v1/routes/"):
		id := strings.TrimPrefix(r.URL.Path, "/api/v1/routes/")
		if id == "" || strings.Contains(id, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
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
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Printf("routes list: %v", err)
		respondError(w, http.StatusInternalServerError, "list error")
		return
	}
	out := make([]routeView, 0, len(list))
	for _, route := range list {
		out = append(out, toRouteView(route))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	route, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respondError(w, http.StatusNotFound, "route not found")
			return
		}
		h.logger.Printf("routes get %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "get error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toRouteView(*route))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}
	route := req.toRoute(uuid.NewString())
	if err := route.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.repo.Create(r.Context(), route); err != nil {
		h.logger.Printf("routes create: %v", err)
		respondError(w, http.StatusInternalServerError, "create error")
		return
	}
	h.auditAction(r, "route.create", route.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toRouteView(*route))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request, id string) {
	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}
	route := req.toRoute(id)
	if err := route.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.repo.Update(r.Context(), route); err != nil {
		if errors.Is(err, ErrNotFound) {
			respondError(w, http.StatusNotFound, "route not found")
			return
		}
		h.logger.Printf("routes update %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "update error")
		return
	}
	h.auditAction(r, "route.update", id)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toRouteView(*route))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			respondError(w, http.StatusNotFound, "route not found")
			return
		}
		h.logger.Printf("routes delete %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "delete error")
		return
	}
	h.auditAction(r, "route.delete", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) auditAction(r *http.Request, action, id string) {
	if h.auditor == nil {
		return
	}
	entry := audit.Entry{
		Actor:        auth.UserIDFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "route",
		ResourceID:   id,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	}
	if err := h.auditor.Log(r.Context(), entry); err != nil {
		h.logger.Printf("audit %s: %v", action, err)
	}
}

type routeRequest struct {
	Name              string    `json:"name"`
	DistanceKM        float64   `json:"distance_km"`
	Duration          string    `json:"duration"`
	RouteType         string    `json:"route_type"`
	Difficulty        string    `json:"difficulty"`
	AltitudeMinM      int       `json:"altitude_min_m"`
	AltitudeMaxM      int       `json:"altitude_max_m"`
	AccumulatedClimbM int       `json:"accumulated_climb_m"`
	StartPointGPS     string    `json:"start_point_gps"`
	Description       string    `json:"description"`
	POIs              []poiView `json:"points_of_interest"`
}

func (req routeRequest) toRoute(id string) *Route {
	pois := make([]PointOfInterest, 0, len(req.POIs))
	for _, p := range req.POIs {
		poiID := p.ID
		if poiID == "" {
			poiID = uuid.NewString()
		}
		pois = append(pois, PointOfInterest{
			ID:          poiID,
			RouteID:     id,
			Name:        p.Name,
			Description: p.Description,
			Latitude:    p.Latitude,
			Longitude:   p.Longitude,
		})
	}
	return &Route{
		ID:                id,
		Name:              req.Name,
		DistanceKM:        req.DistanceKM,
		Duration:          req.Duration,
		RouteType:         req.RouteType,
		Difficulty:        req.Difficulty,
		AltitudeMinM:      req.AltitudeMinM,
		AltitudeMaxM:      req.AltitudeMaxM,
		AccumulatedClimbM: req.AccumulatedClimbM,
		StartPointGPS:     req.StartPointGPS,
		Description:       req.Description,
		POIs:              pois,
	}
}

type routeView struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	DistanceKM        float64   `json:"distance_km"`
	Duration          string    `json:"duration"`
	RouteType         string    `json:"route_type"`
	Difficulty        string    `json:"difficulty"`
	AltitudeMinM      int       `json:"altitude_min_m"`
	AltitudeMaxM      int       `json:"altitude_max_m"`
	AccumulatedClimbM int       `json:"accumulated_climb_m"`
	StartPointGPS     string    `json:"start_point_gps"`
	Description       string    `json:"description"`
	POIs              []poiView `json:"points_of_interest"`
	CreatedAt         string    `json:"created_at"`
	UpdatedAt         string    `json:"updated_at"`
}

type poiView struct {
	ID          string  `json:"id,omitempty"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

func toRouteView(route Route) routeView {
	pois := make([]poiView, 0, len(route.POIs))
	for _, p := range route.POIs {
		pois = append(pois, poiView{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Latitude:    p.Latitude,
			Longitude:   p.Longitude,
		})
	}
	return routeView{
		ID:                route.ID,
		Name:              route.Name,
		DistanceKM:        route.DistanceKM,
		Duration:          route.Duration,
		RouteType:         route.RouteType,
		Difficulty:        route.Difficulty,
		AltitudeMinM:      route.AltitudeMinM,
		AltitudeMaxM:      route.AltitudeMaxM,
		AccumulatedClimbM: route.AccumulatedClimbM,
		StartPointGPS:     route.StartPointGPS,
		Description:       route.Description,
		POIs:              pois,
		CreatedAt:         route.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         route.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
