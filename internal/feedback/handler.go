package feedback

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

// Handler provides feedback endpoints.
type Handler struct {
	repo    Repository
	auditor audit.Logger
	logger  *log.Logger
}

// NewHandler constructs a feedback handler.
func NewHandler(repo Repository, auditor audit.Logger, logger *log.Logger) (*Handler, error) {
	if repo == nil {
		return nil, errors.New("feedback handler: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{repo: repo, auditor: auditor, logger: logger}, nil
}

// ServeHTTP handles /api/v1/feedback and /api/v1/admin/feedback.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/feedback":
		switch r.Method {
		case http.MethodGet:
			h.handleOwnList(w, r)
		case http.MethodPost:
			h.handleCreate(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case r.URL.Path == "/api/v1/admin/feedback":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleAdminList(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/admin/feedback/"):
		id := strings.TrimPrefix(r.URL.Path, "/api/v1/admin/feedback/")
		if id == "" || strings.Contains(id, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.handleAdminGet(w, r, id)
		case http.MethodPatch:
			h.handleAdminUpdate(w, r, id)
		case http.MethodDelete:
			h.handleAdminDelete(w, r, id)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleOwnList(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	list, err := h.repo.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Printf("feedback list: %v", err)
		respondError(w, http.StatusInternalServerError, "list error")
		return
	}
	writeFeedbackList(w, list)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		Name     string `json:"name"`
		Surname  string `json:"surname"`
		Email    string `json:"email"`
		Subject  string `json:"subject"`
		Message  string `json:"message"`
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Category == "" {
		req.Category = CategoryGeneral
	}
	entry := &Feedback{
		ID:       uuid.NewString(),
		UserID:   userID,
		Name:     req.Name,
		Surname:  req.Surname,
		Email:    req.Email,
		Subject:  req.Subject,
		Message:  req.Message,
		Category: req.Category,
		Status:   StatusPending,
	}
	if err := entry.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.repo.Create(r.Context(), entry); err != nil {
		h.logger.Printf("feedback create: %v", err)
		respondError(w, http.StatusInternalServerError, "create error")
		return
	}
	h.auditAction(r, "feedback.create", entry.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toFeedbackView(*entry))
}

func (h *Handler) handleAdminList(w http.ResponseWriter, r *http.Request) {
	filter := Filter{
		Status: r.URL.Query().Get("status"),
		Search: r.URL.Query().Get("search"),
	}
	if filter.Status != "" && !ValidStatus(filter.Status) {
		respondError(w, http.StatusBadRequest, "invalid status")
		return
	}
	list, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Printf("feedback admin list: %v", err)
		respondError(w, http.StatusInternalServerError, "list error")
		return
	}
	writeFeedbackList(w, list)
}

func (h *Handler) handleAdminGet(w http.ResponseWriter, r *http.Request, id string) {
	entry, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respondError(w, http.StatusNotFound, "feedback not found")
			return
		}
		h.logger.Printf("feedback get %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "get error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toFeedbackView(*entry))
}

func (h *Handler) handleAdminUpdate(w http.ResponseWriter, r *http.Request, id string) {
	entry, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respondError(w, http.StatusNotFound, "feedback not found")
			return
		}
		h.logger.Printf("feedback update %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "update error")
		return
	}

	var req struct {
		Subject  string `json:"subject"`
		Message  string `json:"message"`
		Category string `json:"category"`
		Status   string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Subject != "" {
		entry.Subject = req.Subject
	}
	if req.Message != "" {
		entry.Message = req.Message
	}
	if req.Category != "" {
		entry.Category = req.Category
	}
	if req.Status != "" {
		entry.Status = req.Status
	}
	if err := entry.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.repo.Update(r.Context(), entry); err != nil {
		h.logger.Printf("feedback update %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "update error")
		return
	}
	h.auditAction(r, "feedback.update", id)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toFeedbackView(*entry))
}

func (h *Handler) handleAdminDelete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			respondError(w, http.StatusNotFound, "feedback not found")
			return
		}
		h.logger.Printf("feedback delete %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "delete error")
		return
	}
	h.auditAction(r, "feedback.delete", id)
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
		ResourceType: "feedback",
		ResourceID:   id,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	}
	if err := h.auditor.Log(r.Context(), entry); err != nil {
		h.logger.Printf("audit %s: %v", action, err)
	}
}

type feedbackView struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Surname   string `json:"surname"`
	Email     string `json:"email"`
	Subject   string `json:"subject"`
	Message   string `json:"message"`
	Category  string `json:"category"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toFeedbackView(f Feedback) feedbackView {
	return feedbackView{
		ID:        f.ID,
		UserID:    f.UserID,
		Name:      f.Name,
		Surname:   f.Surname,
		Email:     f.Email,
		Subject:   f.Subject,
		Message:   f.Message,
		Category:  f.Category,
		Status:    f.Status,
		CreatedAt: f.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: f.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func writeFeedbackList(w http.ResponseWriter, list []Feedback) {
	out := make([]feedbackView, 0, len(list))
	for _, f := range list {
		out = append(out, toFeedbackView(f))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
