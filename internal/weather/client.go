package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.ipma.pt"

// Client is a minimal IPMA open-data REST client.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient constructs an IPMA client.
func NewClient(baseURL string) (*Client, error) {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// UpstreamError carries the upstream failure detail for pass-through
// to the caller.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("weather upstream: http %d: %s", e.StatusCode, e.Message)
}

// Locations fetches the district and island list, sorted by locality
// name.
func (c *Client) Locations(ctx context.Context) (json.RawMessage, error) {
	var resp struct {
		Data []map[string]any `json:"data"`
	}
	if err := c.doJSON(ctx, "/open-data/distrits-islands.json", &resp); err != nil {
		return nil, err
	}
	sort.Slice(resp.Data, func(i, j int) bool {
		left, _ := resp.Data[i]["local"].(string)
		right, _ := resp.Data[j]["local"].(string)
		return left < right
	})
	return json.Marshal(resp.Data)
}

// Forecast fetches the daily forecast for a location id, passing the
// upstream payload through unchanged.
func (c *Client) Forecast(ctx context.Context, globalID string) (json.RawMessage, error) {
	if globalID == "" {
		return nil, errors.New("weather: empty location id")
	}
	path := fmt.Sprintf("/open-data/forecast/meteorology/cities/daily/%s.json", globalID)
	var raw json.RawMessage
	if err := c.doJSON(ctx, path, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) doJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &UpstreamError{StatusCode: 0, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &UpstreamError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
