package users

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"naturepark-cloud/internal/audit"
	"naturepark-cloud/internal/auth"
)

const tokenTTL = 24 * time.Hour

// Handler provides account endpoints under /api/v1/users.
type Handler struct {
	repo    Repository
	secret  []byte
	auditor audit.Logger
	logger  *log.Logger
}

// NewHandler constructs a users handler.
func NewHandler(repo Repository, secret []byte, auditor audit.Logger, logger *log.Logger) (*Handler, error) {
	if repo == nil {
		return nil, errors.New("users handler: nil repository")
	}
	if len(secret) == 0 {
		return nil, errors.New("users handler: empty secret")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{repo: repo, secret: secret, auditor: auditor, logger: logger}, nil
}

// ServeHTTP handles /api/v1/users and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v1/users/register":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleRegister(w, r)
	case "/api/v1/users/login":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleLogin(w, r)
	case "/api/v1/users/me":
		switch r.Method {
		case http.MethodGet:
			h.handleMe(w, r)
		case http.MethodPut:
			h.handleUpdateMe(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case "/api/v1/users/change-password":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleChangePassword(w, r)
	case "/api/v1/admin/users":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleList(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}
	email := NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	if existing, err := h.repo.GetByEmail(r.Context(), email); err == nil && existing != nil {
		respondError(w, http.StatusConflict, "email already registered")
		return
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		h.logger.Printf("users register: lookup %s: %v", email, err)
		respondError(w, http.StatusInternalServerError, "register error")
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         req.Name,
		PasswordHash: hash,
		Role:         auth.RoleUser,
	}
	if err := h.repo.Create(r.Context(), user); err != nil {
		h.logger.Printf("users register: create %s: %v", email, err)
		respondError(w, http.StatusInternalServerError, "register error")
		return
	}
	h.auditAction(r, "user.register", user.ID)

	token, err := auth.IssueJWT(h.secret, user.ID, user.Email, user.Role, tokenTTL)
	if err != nil {
		h.logger.Printf("users register: issue token: %v", err)
		respondError(w, http.StatusInternalServerError, "register error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(loginResponse{Token: token, User: toUserView(user)})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}
	email := NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.repo.GetByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.Printf("users login: lookup %s: %v", email, err)
		respondError(w, http.StatusInternalServerError, "login error")
		return
	}
	if !CheckPassword(user.PasswordHash, req.Password) {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := auth.IssueJWT(h.secret, user.ID, user.Email, user.Role, tokenTTL)
	if err != nil {
		h.logger.Printf("users login: issue token: %v", err)
		respondError(w, http.StatusInternalServerError, "login error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(loginResponse{Token: token, User: toUserView(user)})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	user, err := h.repo.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Printf("users me: %v", err)
		respondError(w, http.StatusInternalServerError, "lookup error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toUserView(user))
}

func (h *Handler) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.repo.UpdateName(r.Context(), userID, req.Name); err != nil {
		if errors.Is(err, ErrNotFound) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Printf("users update me: %v", err)
		respondError(w, http.StatusInternalServerError, "update error")
		return
	}
	h.auditAction(r, "user.update_profile", userID)

	user, err := h.repo.GetByID(r.Context(), userID)
	if err != nil {
		h.logger.Printf("users update me: reload: %v", err)
		respondError(w, http.StatusInternalServerError, "update error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toUserView(user))
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}

	user, err := h.repo.GetByID(r.Context(), userID)
	if err != nil {
		h.logger.Printf("users change-password: %v", err)
		respondError(w, http.StatusInternalServerError, "change password error")
		return
	}
	if !CheckPassword(user.PasswordHash, req.CurrentPassword) {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.repo.UpdatePassword(r.Context(), userID, hash); err != nil {
		h.logger.Printf("users change-password: update: %v", err)
		respondError(w, http.StatusInternalServerError, "change password error")
		return
	}
	h.auditAction(r, "user.change_password", userID)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "success"})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Printf("users list: %v", err)
		respondError(w, http.StatusInternalServerError, "list error")
		return
	}
	out := make([]userView, 0, len(list))
	for i := range list {
		out = append(out, toUserView(&list[i]))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (h *Handler) auditAction(r *http.Request, action, userID string) {
	if h.auditor == nil {
		return
	}
	entry := audit.Entry{
		Actor:        userID,
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "user",
		ResourceID:   userID,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	}
	if err := h.auditor.Log(r.Context(), entry); err != nil {
		h.logger.Printf("audit %s: %v", action, err)
	}
}

type loginResponse struct {
	Token string   `json:"token"`
	User  userView `json:"user"`
}

type userView struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

func toUserView(u *User) userView {
	return userView{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
