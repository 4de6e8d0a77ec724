package weather

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"naturepark-cloud/internal/observability/metrics"
)

const (
	locationsTTL = 24 * time.Hour
	forecastTTL  = 15 * time.Minute

	locationsCacheKey   = "weather_locations"
	forecastCachePrefix = "weather_forecast_"
)

// Handler proxies IPMA weather data with a TTL cache. Upstream
// failures are surfaced as 503 with the upstream error text; nothing
// is cached on failure and there is no retry.
type Handler struct {
	client *Client
	cache  *Cache
	logger *log.Logger
}

// NewHandler constructs a weather handler.
func NewHandler(client *Client, cache *Cache, logger *log.Logger) (*Handler, error) {
	if client == nil {
		return nil, errors.New("weather handler: nil client")
	}
	if cache == nil {
		cache = NewCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{client: client, cache: cache, logger: logger}, nil
}

// ServeHTTP handles /api/v1/weather and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch {
	case r.URL.Path == "/api/v1/weather/locations":
		h.handleLocations(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/weather/forecast/"):
		id := strings.TrimPrefix(r.URL.Path, "/api/v1/weather/forecast/")
		if id == "" || strings.Contains(id, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.handleForecast(w, r, id)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleLocations(w http.ResponseWriter, r *http.Request) {
	if data, ok := h.cache.Get(locationsCacheKey); ok {
		metrics.IncWeatherCache(true)
		writeJSON(w, data)
		return
	}
	metrics.IncWeatherCache(false)

	data, err := h.client.Locations(r.Context())
	if err != nil {
		h.respondUpstreamError(w, "locations", err)
		return
	}
	metrics.IncWeatherUpstream(metrics.ResultSuccess)
	h.cache.Set(locationsCacheKey, data, locationsTTL)
	writeJSON(w, data)
}

func (h *Handler) handleForecast(w http.ResponseWriter, r *http.Request, id string) {
	key := forecastCachePrefix + id
	if data, ok := h.cache.Get(key); ok {
		metrics.IncWeatherCache(true)
		writeJSON(w, data)
		return
	}
	metrics.IncWeatherCache(false)

	data, err := h.client.Forecast(r.Context(), id)
	if err != nil {
		h.respondUpstreamError(w, "forecast "+id, err)
		return
	}
	metrics.IncWeatherUpstream(metrics.ResultSuccess)
	h.cache.Set(key, data, forecastTTL)
	writeJSON(w, data)
}

func (h *Handler) respondUpstreamError(w http.ResponseWriter, op string, err error) {
	h.logger.Printf("weather %s: %v", op, err)
	metrics.IncWeatherUpstream(metrics.ResultError)

	message := "weather service unavailable"
	var upstream *UpstreamError
	if errors.As(err, &upstream) && upstream.Message != "" {
		message = upstream.Message
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, data json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}
