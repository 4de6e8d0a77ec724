package weather

import (
	"encoding/json"
	"testing"
	"time"
)

func TestCache_GetSet(t *testing.T) {
	cache := NewCache()
	if _, ok := cache.Get("missing"); ok {
		t.Fatal("expected miss for unknown key")
	}

	payload := json.RawMessage(`{"x":1}`)
	cache.Set("key", payload, time.Minute)
	got, ok := cache.Get("key")
	if !ok {
		t.Fatal("expected hit")
	}
	if string(got) != `{"x":1}` {
		t.Fatalf("unexpected payload: %s", got)
	}
}

func TestCache_Expiry(t *testing.T) {
	cache := NewCache()
	current := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return current }

	cache.Set("key", json.RawMessage(`1`), 15*time.Minute)
	if _, ok := cache.Get("key"); !ok {
		t.Fatal("expected hit before expiry")
	}

	current = current.Add(14 * time.Minute)
	if _, ok := cache.Get("key"); !ok {
		t.Fatal("expected hit just before expiry")
	}

	current = current.Add(2 * time.Minute)
	if _, ok := cache.Get("key"); ok {
		t.Fatal("expected miss after expiry")
	}
}
