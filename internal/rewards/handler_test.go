package rewards

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"naturepark-cloud/internal/auth"
)

type fakeRepo struct {
	codes   map[string]*QRCode
	scans   []Scan
	coupons []Coupon
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{codes: make(map[string]*QRCode)}
}

func (r *fakeRepo) CreateQRCode(_ context.Context, code *QRCode) error {
	for _, existing := range r.codes {
		if existing.TextContent == code.TextContent {
			return ErrDuplicateContent
		}
	}
	copied := *code
	r.codes[code.ID] = &copied
	return nil
}

func (r *fakeRepo) GetQRCode(_ context.Context, id string) (*QRCode, error) {
	if code, ok := r.codes[id]; ok {
		return code, nil
	}
	return nil, ErrNotFound
}

func (r *fakeRepo) GetQRCodeByContent(_ context.Context, content string) (*QRCode, error) {
	for _, code := range r.codes {
		if code.TextContent == content {
			return code, nil
		}
	}
	return nil, ErrNotFound
}

func (r *fakeRepo) ListQRCodes(context.Context) ([]QRCode, error) {
	out := make([]QRCode, 0, len(r.codes))
	for _, code := range r.codes {
		out = append(out, *code)
	}
	return out, nil
}

func (r *fakeRepo) UpdateQRCode(_ context.Context, code *QRCode) error {
	if _, ok := r.codes[code.ID]; !ok {
		return ErrNotFound
	}
	copied := *code
	r.codes[code.ID] = &copied
	return nil
}

func (r *fakeRepo) DeleteQRCode(_ context.Context, id string) error {
	if _, ok := r.codes[id]; !ok {
		return ErrNotFound
	}
	delete(r.codes, id)
	return nil
}

func (r *fakeRepo) RecordScan(_ context.Context, scan *Scan) error {
	for _, existing := range r.scans {
		if existing.UserID == scan.UserID && existing.QRCodeID == scan.QRCodeID {
			return ErrAlreadyScanned
		}
	}
	copied := *scan
	copied.ScannedAt = time.Now().UTC()
	r.scans = append(r.scans, copied)
	return nil
}

func (r *fakeRepo) ListScans(_ context.Context, userID string) ([]Scan, error) {
	out := make([]Scan, 0)
	for _, scan := range r.scans {
		if scan.UserID == userID {
			out = append(out, scan)
		}
	}
	return out, nil
}

func (r *fakeRepo) CreateCoupon(ctx context.Context, coupon *Coupon) error {
	balance, _ := r.PointsBalance(ctx, coupon.UserID)
	if balance < coupon.PointsSpent {
		return ErrInsufficientPoints
	}
	r.coupons = append(r.coupons, *coupon)
	return nil
}

func (r *fakeRepo) ListCoupons(_ context.Context, userID string) ([]Coupon, error) {
	out := make([]Coupon, 0)
	for _, coupon := range r.coupons {
		if coupon.UserID == userID {
			out = append(out, coupon)
		}
	}
	return out, nil
}

func (r *fakeRepo) PointsBalance(_ context.Context, userID string) (int, error) {
	balance := 0
	for _, scan := range r.scans {
		if scan.UserID == userID {
			balance += scan.Points
		}
	}
	for _, coupon := range r.coupons {
		if coupon.UserID == userID {
			balance -= coupon.PointsSpent
		}
	}
	return balance, nil
}

func asUser(req *http.Request, userID string) *http.Request {
	ctx := auth.WithIdentity(req.Context(), userID, auth.RoleUser, userID+"@example.com")
	return req.WithContext(ctx)
}

func seedCode(t *testing.T, repo *fakeRepo, id, content string, points int) {
	t.Helper()
	err := repo.CreateQRCode(context.Background(), &QRCode{
		ID:          id,
		Name:        "Marker " + id,
		TextContent: content,
		Points:      points,
	})
	if err != nil {
		t.Fatalf("seed qr code: %v", err)
	}
}

func TestScan_AwardsPointsOnce(t *testing.T) {
	repo := newFakeRepo()
	seedCode(t, repo, "q1", "naturepark:marker:q1", 50)
	handler, err := NewHandler(repo, nil, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	body := `{"content": "naturepark:marker:q1"}`
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/qr/scan", strings.NewReader(body)), "u1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var first scanResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode first scan: %v", err)
	}
	if first.Status != "scanned" || first.PointsAwarded != 50 || first.Balance != 50 {
		t.Fatalf("unexpected first scan: %+v", first)
	}

	req = asUser(httptest.NewRequest(http.MethodPost, "/api/v1/qr/scan", strings.NewReader(body)), "u1")
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 on repeat, got %d", resp.Code)
	}
	var second scanResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &second); err != nil {
		t.Fatalf("decode second scan: %v", err)
	}
	if second.Status != "already_scanned" || second.PointsAwarded != 0 || second.Balance != 50 {
		t.Fatalf("unexpected repeat scan: %+v", second)
	}
}

func TestScan_UnknownContent(t *testing.T) {
	handler, err := NewHandler(newFakeRepo(), nil, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	body := `{"content": "naturepark:marker:ghost"}`
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/qr/scan", strings.NewReader(body)), "u1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestScan_RequiresAuthentication(t *testing.T) {
	handler, err := NewHandler(newFakeRepo(), nil, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	body := `{"content": "naturepark:marker:q1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/qr/scan", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestCoupon_PurchaseAndBalance(t *testing.T) {
	repo := newFakeRepo()
	seedCode(t, repo, "q1", "naturepark:marker:q1", 60)
	seedCode(t, repo, "q2", "naturepark:marker:q2", 60)
	handler, err := NewHandler(repo, nil, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	for _, content := range []string{"naturepark:marker:q1", "naturepark:marker:q2"} {
		body := `{"content": "` + content + `"}`
		req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/qr/scan", strings.NewReader(body)), "u1")
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("scan %s: got %d", content, resp.Code)
		}
	}

	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/rewards/coupons", nil), "u1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var coupon couponView
	if err := json.Unmarshal(resp.Body.Bytes(), &coupon); err != nil {
		t.Fatalf("decode coupon: %v", err)
	}
	if !strings.HasPrefix(coupon.Code, "DISCOUNT-") {
		t.Fatalf("unexpected coupon code: %s", coupon.Code)
	}
	if coupon.PointsSpent != CouponCost {
		t.Fatalf("expected %d points spent, got %d", CouponCost, coupon.PointsSpent)
	}

	summaryReq := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/rewards", nil), "u1")
	summaryResp := httptest.NewRecorder()
	handler.ServeHTTP(summaryResp, summaryReq)
	var summary rewardsView
	if err := json.Unmarshal(summaryResp.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Points != 20 {
		t.Fatalf("expected balance 20, got %d", summary.Points)
	}
	if len(summary.Scans) != 2 || len(summary.Coupons) != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestCoupon_InsufficientPoints(t *testing.T) {
	repo := newFakeRepo()
	seedCode(t, repo, "q1", "naturepark:marker:q1", 40)
	handler, err := NewHandler(repo, nil, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	body := `{"content": "naturepark:marker:q1"}`
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/qr/scan", strings.NewReader(body)), "u1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	couponReq := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/rewards/coupons", nil), "u1")
	couponResp := httptest.NewRecorder()
	handler.ServeHTTP(couponResp, couponReq)
	if couponResp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", couponResp.Code)
	}
	if !strings.Contains(couponResp.Body.String(), "insufficient points") {
		t.Fatalf("unexpected body: %s", couponResp.Body.String())
	}
}

func TestQR_CreateRendersPNG(t *testing.T) {
	repo := newFakeRepo()
	handler, err := NewHandler(repo, nil, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	body := `{"name": "Viewpoint", "text_content": "naturepark:marker:vp1", "points": 25}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/qr", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var view qrView
	if err := json.Unmarshal(resp.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode qr: %v", err)
	}

	imgReq := httptest.NewRequest(http.MethodGet, "/api/v1/qr/"+view.ID+"/image", nil)
	imgResp := httptest.NewRecorder()
	handler.ServeHTTP(imgResp, imgReq)
	if imgResp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", imgResp.Code)
	}
	if ct := imgResp.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("unexpected content type %q", ct)
	}
	pngMagic := []byte{0x89, 'P', 'N', 'G'}
	if !bytes.HasPrefix(imgResp.Body.Bytes(), pngMagic) {
		t.Fatal("expected png payload")
	}
}

func TestQR_DuplicateContent(t *testing.T) {
	repo := newFakeRepo()
	handler, err := NewHandler(repo, nil, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	body := `{"name": "Viewpoint", "text_content": "naturepark:marker:vp1", "points": 25}`
	for i, want := range []int{http.StatusCreated, http.StatusConflict} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/qr", strings.NewReader(body))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != want {
			t.Fatalf("request %d: expected %d, got %d", i, want, resp.Code)
		}
	}
}
