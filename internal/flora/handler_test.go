package flora

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
)

type fakeRepo struct {
	plants map[string]*Plant
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{plants: make(map[string]*Plant)}
}

func (r *fakeRepo) Create(_ context.Context, plant *Plant) error {
	for _, existing := range r.plants {
		if existing.ScientificName == plant.ScientificName {
			return ErrDuplicateName
		}
	}
	copied := *plant
	r.plants[plant.ID] = &copied
	return nil
}

func (r *fakeRepo) Get(_ context.Context, id string) (*Plant, error) {
	if plant, ok := r.plants[id]; ok {
		return plant, nil
	}
	return nil, ErrNotFound
}

func (r *fakeRepo) List(_ context.Context, use string) ([]Plant, error) {
	out := make([]Plant, 0, len(r.plants))
	for _, plant := range r.plants {
		if use != "" && !plant.UsesFlags[use] {
			continue
		}
		out = append(out, *plant)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScientificName < out[j].ScientificName })
	return out, nil
}

func (r *fakeRepo) Update(_ context.Context, plant *Plant) error {
	if _, ok := r.plants[plant.ID]; !ok {
		return ErrNotFound
	}
	for id, existing := range r.plants {
		if id != plant.ID && existing.ScientificName == plant.ScientificName {
			return ErrDuplicateName
		}
	}
	copied := *plant
	r.plants[plant.ID] = &copied
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.plants[id]; !ok {
		return ErrNotFound
	}
	delete(r.plants, id)
	return nil
}

func TestFlora_CreateAndGet(t *testing.T) {
	repo := newFakeRepo()
	handler, err := NewHandler(repo, nil, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	body := `{
		"scientific_name": "Quercus pyrenaica",
		"common_names": "Pyrenean oak",
		"uses_flags": {"medicinal": true}
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/flora", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var view plantView
	if err := json.Unmarshal(resp.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if view.ID == "" {
		t.Fatal("expected generated id")
	}
	if !view.UsesFlags["medicinal"] {
		t.Fatalf("unexpected uses flags: %+v", view.UsesFlags)
	}

	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/flora/"+view.ID, nil)
	getResp := httptest.NewRecorder()
	handler.ServeHTTP(getResp, getReq)
	if getResp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", getResp.Code)
	}
}

func TestFlora_DuplicateScientificName(t *testing.T) {
	repo := newFakeRepo()
	handler, err := NewHandler(repo, nil, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	body := `{"scientific_name": "Lavandula stoechas"}`
	for i, want := range []int{http.StatusCreated, http.StatusConflict} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/flora", strings.NewReader(body))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != want {
			t.Fatalf("request %d: expected %d, got %d", i, want, resp.Code)
		}
	}
}

func TestFlora_ListFiltersByUse(t *testing.T) {
	repo := newFakeRepo()
	_ = repo.Create(context.Background(), &Plant{
		ID:             "p1",
		ScientificName: "Thymus mastichina",
		UsesFlags:      map[string]bool{"aromatic": true, "medicinal": true},
	})
	_ = repo.Create(context.Background(), &Plant{
		ID:             "p2",
		ScientificName: "Arbutus unedo",
		UsesFlags:      map[string]bool{"food": true},
	})
	handler, err := NewHandler(repo, nil, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/flora?use=aromatic", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var list []plantView
	if err := json.Unmarshal(resp.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].ScientificName != "Thymus mastichina" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestFlora_ListSortedByScientificName(t *testing.T) {
	repo := newFakeRepo()
	_ = repo.Create(context.Background(), &Plant{ID: "p1", ScientificName: "Thymus mastichina"})
	_ = repo.Create(context.Background(), &Plant{ID: "p2", ScientificName: "Arbutus unedo"})
	handler, err := NewHandler(repo, nil, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/flora", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	var list []plantView
	if err := json.Unmarshal(resp.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 2 || list[0].ScientificName != "Arbutus unedo" {
		t.Fatalf("unexpected order: %+v", list)
	}
}

func TestFlora_UpdateUnknown(t *testing.T) {
	handler, err := NewHandler(newFakeRepo(), nil, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	body := `{"scientific_name": "Cistus ladanifer"}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/flora/ghost", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestFlora_Delete(t *testing.T) {
	repo := newFakeRepo()
	_ = repo.Create(context.Background(), &Plant{ID: "p1", ScientificName: "Cistus ladanifer"})
	handler, err := NewHandler(repo, nil, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/flora/p1", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	if len(repo.plants) != 0 {
		t.Fatal("plant not deleted")
	}
}
