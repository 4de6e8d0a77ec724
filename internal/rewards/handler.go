package rewards

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"naturepark-cloud/internal/audit"
	"naturepark-cloud/internal/auth"
	"naturepark-cloud/internal/observability/metrics"
)

// qrImageSize is the edge length in pixels of rendered QR PNGs.
const qrImageSize = 256

// Handler provides the rewards endpoints: QR management under
// /api/v1/qr and the user-facing scan and coupon flow under
// /api/v1/rewards.
type Handler struct {
	repo    Repository
	auditor audit.Logger
	logger  *log.Logger
	now     func() time.Time
}

// NewHandler constructs a rewards handler.
func NewHandler(repo Repository, auditor audit.Logger, logger *log.Logger) (*Handler, error) {
	if repo == nil {
		return nil, errors.New("rewards handler: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{repo: repo, auditor: auditor, logger: logger, now: time.Now}, nil
}

// ServeHTTP handles /api/v1/qr and /api/v1/rewards subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/qr/scan":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleScan(w, r)
	case r.URL.Path == "/api/v1/rewards":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleRewards(w, r)
	case r.URL.Path == "/api/v1/rewards/coupons":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleCreateCoupon(w, r)
	case r.URL.Path == "/api/v1/qr":
		switch r.Method {
		case http.MethodGet:
			h.handleListQR(w, r)
		case http.MethodPost:
			h.handleCreateQR(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case strings.HasPrefix(r.URL.Path, "/api/v1/qr/"):
		rest := strings.TrimPrefix(r.URL.Path, "/api/v1/qr/")
		parts := strings.Split(rest, "/")
		switch {
		case len(parts) == 1 && parts[0] != "":
			h.dispatchQR(w, r, parts[0])
		case len(parts) == 2 && parts[1] == "image":
			if r.Method != http.MethodGet {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			h.handleQRImage(w, r, parts[0])
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) dispatchQR(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		h.handleGetQR(w, r, id)
	case http.MethodPut:
		h.handleUpdateQR(w, r, id)
	case http.MethodDelete:
		h.handleDeleteQR(w, r, id)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		respondError(w, http.StatusBadRequest, "content is required")
		return
	}

	code, err := h.repo.GetQRCodeByContent(r.Context(), strings.TrimSpace(req.Content))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.IncQRScan("unknown")
			respondError(w, http.StatusNotFound, "qr code not found")
			return
		}
		h.logger.Printf("qr scan lookup: %v", err)
		metrics.IncQRScan("error")
		respondError(w, http.StatusInternalServerError, "scan error")
		return
	}

	scan := &Scan{
		ID:       uuid.NewString(),
		UserID:   userID,
		QRCodeID: code.ID,
		Points:   code.Points,
	}
	status := "scanned"
	awarded := code.Points
	if err := h.repo.RecordScan(r.Context(), scan); err != nil {
		if errors.Is(err, ErrAlreadyScanned) {
			status = "already_scanned"
			awarded = 0
		} else {
			h.logger.Printf("qr scan record: %v", err)
			metrics.IncQRScan("error")
			respondError(w, http.StatusInternalServerError, "scan error")
			return
		}
	}
	metrics.IncQRScan(status)
	if status == "scanned" {
		h.auditAction(r, "qr.scan", code.ID)
	}

	balance, err := h.repo.PointsBalance(r.Context(), userID)
	if err != nil {
		h.logger.Printf("qr scan balance: %v", err)
		respondError(w, http.StatusInternalServerError, "scan error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(scanResponse{
		Status:        status,
		QRCodeID:      code.ID,
		Name:          code.Name,
		PointsAwarded: awarded,
		Balance:       balance,
	})
}

func (h *Handler) handleRewards(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	balance, err := h.repo.PointsBalance(r.Context(), userID)
	if err != nil {
		h.logger.Printf("rewards balance: %v", err)
		respondError(w, http.StatusInternalServerError, "rewards error")
		return
	}
	scans, err := h.repo.ListScans(r.Context(), userID)
	if err != nil {
		h.logger.Printf("rewards scans: %v", err)
		respondError(w, http.StatusInternalServerError, "rewards error")
		return
	}
	coupons, err := h.repo.ListCoupons(r.Context(), userID)
	if err != nil {
		h.logger.Printf("rewards coupons: %v", err)
		respondError(w, http.StatusInternalServerError, "rewards error")
		return
	}

	scanViews := make([]scanView, 0, len(scans))
	for _, scan := range scans {
		scanViews = append(scanViews, toScanView(scan))
	}
	couponViews := make([]couponView, 0, len(coupons))
	for _, coupon := range coupons {
		couponViews = append(couponViews, toCouponView(coupon))
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rewardsView{
		Points:  balance,
		Scans:   scanViews,
		Coupons: couponViews,
	})
}

func (h *Handler) handleCreateCoupon(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	coupon := NewCoupon(userID, h.now().UTC())
	if err := h.repo.CreateCoupon(r.Context(), coupon); err != nil {
		if errors.Is(err, ErrInsufficientPoints) {
			respondError(w, http.StatusBadRequest, "insufficient points")
			return
		}
		h.logger.Printf("coupon create: %v", err)
		respondError(w, http.StatusInternalServerError, "coupon error")
		return
	}
	h.auditAction(r, "coupon.create", coupon.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toCouponView(*coupon))
}

func (h *Handler) handleListQR(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.ListQRCodes(r.Context())
	if err != nil {
		h.logger.Printf("qr list: %v", err)
		respondError(w, http.StatusInternalServerError, "list error")
		return
	}
	out := make([]qrView, 0, len(list))
	for _, code := range list {
		out = append(out, toQRView(code))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (h *Handler) handleGetQR(w http.ResponseWriter, r *http.Request, id string) {
	code, err := h.repo.GetQRCode(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respondError(w, http.StatusNotFound, "qr code not found")
			return
		}
		h.logger.Printf("qr get %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "get error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toQRView(*code))
}

func (h *Handler) handleCreateQR(w http.ResponseWriter, r *http.Request) {
	var req qrRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}
	code, err := req.toQRCode(uuid.NewString())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.repo.CreateQRCode(r.Context(), code); err != nil {
		if errors.Is(err, ErrDuplicateContent) {
			respondError(w, http.StatusConflict, "qr code content already exists")
			return
		}
		h.logger.Printf("qr create: %v", err)
		respondError(w, http.StatusInternalServerError, "create error")
		return
	}
	h.auditAction(r, "qr.create", code.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toQRView(*code))
}

func (h *Handler) handleUpdateQR(w http.ResponseWriter, r *http.Request, id string) {
	var req qrRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}
	code, err := req.toQRCode(id)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.repo.UpdateQRCode(r.Context(), code); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respondError(w, http.StatusNotFound, "qr code not found")
		case errors.Is(err, ErrDuplicateContent):
			respondError(w, http.StatusConflict, "qr code content already exists")
		default:
			h.logger.Printf("qr update %s: %v", id, err)
			respondError(w, http.StatusInternalServerError, "update error")
		}
		return
	}
	h.auditAction(r, "qr.update", id)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toQRView(*code))
}

func (h *Handler) handleDeleteQR(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.repo.DeleteQRCode(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			respondError(w, http.StatusNotFound, "qr code not found")
			return
		}
		h.logger.Printf("qr delete %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "delete error")
		return
	}
	h.auditAction(r, "qr.delete", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleQRImage(w http.ResponseWriter, r *http.Request, id string) {
	code, err := h.repo.GetQRCode(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respondError(w, http.StatusNotFound, "qr code not found")
			return
		}
		h.logger.Printf("qr image %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "image error")
		return
	}

	png := code.PNG
	if len(png) == 0 {
		png, err = qrcode.Encode(code.TextContent, qrcode.Medium, qrImageSize)
		if err != nil {
			h.logger.Printf("qr image encode %s: %v", id, err)
			respondError(w, http.StatusInternalServerError, "image error")
			return
		}
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func (h *Handler) auditAction(r *http.Request, action, id string) {
	if h.auditor == nil {
		return
	}
	entry := audit.Entry{
		Actor:        auth.UserIDFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "qr_code",
		ResourceID:   id,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	}
	if err := h.auditor.Log(r.Context(), entry); err != nil {
		h.logger.Printf("audit %s: %v", action, err)
	}
}

type qrRequest struct {
	Name        string `json:"name"`
	TextContent string `json:"text_content"`
	Points      int    `json:"points"`
}

func (req qrRequest) toQRCode(id string) (*QRCode, error) {
	code := &QRCode{
		ID:          id,
		Name:        strings.TrimSpace(req.Name),
		TextContent: strings.TrimSpace(req.TextContent),
		Points:      req.Points,
	}
	if err := code.Validate(); err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(code.TextContent, qrcode.Medium, qrImageSize)
	if err != nil {
		return nil, err
	}
	code.PNG = png
	return code, nil
}

type qrView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	TextContent string `json:"text_content"`
	Points      int    `json:"points"`
	CreatedAt   string `json:"created_at"`
}

func toQRView(code QRCode) qrView {
	return qrView{
		ID:          code.ID,
		Name:        code.Name,
		TextContent: code.TextContent,
		Points:      code.Points,
		CreatedAt:   code.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type scanResponse struct {
	Status        string `json:"status"`
	QRCodeID      string `json:"qr_code_id"`
	Name          string `json:"name"`
	PointsAwarded int    `json:"points_awarded"`
	Balance       int    `json:"balance"`
}

type scanView struct {
	QRCodeID  string `json:"qr_code_id"`
	Points    int    `json:"points"`
	ScannedAt string `json:"scanned_at"`
}

func toScanView(scan Scan) scanView {
	return scanView{
		QRCodeID:  scan.QRCodeID,
		Points:    scan.Points,
		ScannedAt: scan.ScannedAt.UTC().Format(time.RFC3339),
	}
}

type couponView struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	PointsSpent int    `json:"points_spent"`
	IsUsed      bool   `json:"is_used"`
	CreatedAt   string `json:"created_at"`
	ExpiresAt   string `json:"expires_at"`
}

func toCouponView(coupon Coupon) couponView {
	return couponView{
		ID:          coupon.ID,
		Code:        coupon.Code,
		PointsSpent: coupon.PointsSpent,
		IsUsed:      coupon.IsUsed,
		CreatedAt:   coupon.CreatedAt.UTC().Format(time.RFC3339),
		ExpiresAt:   coupon.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

type rewardsView struct {
	Points  int          `json:"points"`
	Scans   []scanView   `json:"scans"`
	Coupons []couponView `json:"coupons"`
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
