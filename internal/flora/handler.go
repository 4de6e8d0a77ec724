package flora

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

// Handler provides flora catalog endpoints under /api/v1/flora.
type Handler struct {
	repo    Repository
	auditor audit.Logger
	logger  *log.Logger
}

// NewHandler constructs a flora handler.
func NewHandler(repo Repository, auditor audit.Logger, logger *log.Logger) (*Handler, error) {
	if repo == nil {
		return nil, errors.New("flora handler: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{repo: repo, auditor: auditor, logger: logger}, nil
}

// ServeHTTP handles /api/v1/flora and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/flora":
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleCreate(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case strings.HasPrefix(r.URL.Path, "/api/v1/flora/"):
		id := strings.TrimPrefix(r.URL.Path, "/api/v1/flora/")
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
	use := strings.TrimSpace(r.URL.Query().Get("use"))
	list, err := h.repo.List(r.Context(), use)
	if err != nil {
		h.logger.Printf("flora list: %v", err)
		respondError(w, http.StatusInternalServerError, "list error")
		return
	}
	out := make([]plantView, 0, len(list))
	for _, plant := range list {
		out = append(out, toPlantView(plant))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	plant, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respondError(w, http.StatusNotFound, "plant not found")
			return
		}
		h.logger.Printf("flora get %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "get error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toPlantView(*plant))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req plantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}
	plant := req.toPlant(uuid.NewString())
	if err := plant.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.repo.Create(r.Context(), plant); err != nil {
		if errors.Is(err, ErrDuplicateName) {
			respondError(w, http.StatusConflict, "scientific name already cataloged")
			return
		}
		h.logger.Printf("flora create: %v", err)
		respondError(w, http.StatusInternalServerError, "create error")
		return
	}
	h.auditAction(r, "plant.create", plant.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toPlantView(*plant))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request, id string) {
	var req plantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}
	plant := req.toPlant(id)
	if err := plant.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.repo.Update(r.Context(), plant); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respondError(w, http.StatusNotFound, "plant not found")
		case errors.Is(err, ErrDuplicateName):
			respondError(w, http.StatusConflict, "scientific name already cataloged")
		default:
			h.logger.Printf("flora update %s: %v", id, err)
			respondError(w, http.StatusInternalServerError, "update error")
		}
		return
	}
	h.auditAction(r, "plant.update", id)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toPlantView(*plant))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			respondError(w, http.StatusNotFound, "plant not found")
			return
		}
		h.logger.Printf("flora delete %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "delete error")
		return
	}
	h.auditAction(r, "plant.delete", id)
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
		ResourceType: "plant",
		ResourceID:   id,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	}
	if err := h.auditor.Log(r.Context(), entry); err != nil {
		h.logger.Printf("audit %s: %v", action, err)
	}
}

type plantRequest struct {
	ScientificName   string          `json:"scientific_name"`
	CommonNames      string          `json:"common_names"`
	InteractionFauna string          `json:"interaction_fauna"`
	FoodUses         string          `json:"food_uses"`
	MedicinalUses    string          `json:"medicinal_uses"`
	OrnamentalUses   string          `json:"ornamental_uses"`
	TraditionalUses  string          `json:"traditional_uses"`
	AromaticUses     string          `json:"aromatic_uses"`
	UsesFlags        map[string]bool `json:"uses_flags"`
}

func (req plantRequest) toPlant(id string) *Plant {
	return &Plant{
		ID:               id,
		ScientificName:   strings.TrimSpace(req.ScientificName),
		CommonNames:      req.CommonNames,
		InteractionFauna: req.InteractionFauna,
		FoodUses:         req.FoodUses,
		MedicinalUses:    req.MedicinalUses,
		OrnamentalUses:   req.OrnamentalUses,
		TraditionalUses:  req.TraditionalUses,
		AromaticUses:     req.AromaticUses,
		UsesFlags:        req.UsesFlags,
	}
}

type plantView struct {
	ID               string          `json:"id"`
	ScientificName   string          `json:"scientific_name"`
	CommonNames      string          `json:"common_names"`
	InteractionFauna string          `json:"interaction_fauna"`
	FoodUses         string          `json:"food_uses"`
	MedicinalUses    string          `json:"medicinal_uses"`
	OrnamentalUses   string          `json:"ornamental_uses"`
	TraditionalUses  string          `json:"traditional_uses"`
	AromaticUses     string          `json:"aromatic_uses"`
	UsesFlags        map[string]bool `json:"uses_flags"`
	CreatedAt        string          `json:"created_at"`
	UpdatedAt        string          `json:"updated_at"`
}

func toPlantView(plant Plant) plantView {
	flags := plant.UsesFlags
	if flags == nil {
		flags = map[string]bool{}
	}
	return plantView{
		ID:               plant.ID,
		ScientificName:   plant.ScientificName,
		CommonNames:      plant.CommonNames,
		InteractionFauna: plant.InteractionFauna,
		FoodUses:         plant.FoodUses,
		MedicinalUses:    plant.MedicinalUses,
		OrnamentalUses:   plant.OrnamentalUses,
		TraditionalUses:  plant.TraditionalUses,
		AromaticUses:     plant.AromaticUses,
		UsesFlags:        flags,
		CreatedAt:        plant.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        plant.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
