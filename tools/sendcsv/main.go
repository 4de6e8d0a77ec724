package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"naturepark-cloud/internal/stations/bulkload"
)

// sendcsv replays a CSV export against a running API, one ingest
// request per station and timestamp. Useful for smoke tests against a
// deployed instance where direct database access is not available.

type config struct {
	baseURL         string
	file            string
	deviceColumn    string
	timestampColumn string
	maxPerRequest   int
}

type payloadMeasurement struct {
	Type       string  `json:"type"`
	Value      float64 `json:"value"`
	RecordedAt int64   `json:"recorded_at"`
}

type payload struct {
	StationID    string               `json:"station_id"`
	Measurements []payloadMeasurement `json:"measurements"`
}

func main() {
	cfg := parseConfig()
	if cfg.baseURL == "" {
		log.Fatal("BASE_URL is required")
	}
	if cfg.file == "" {
		log.Fatal("file is required")
	}

	f, err := os.Open(cfg.file)
	if err != nil {
		log.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	sent, skipped, err := send(context.Background(), cfg, f)
	if err != nil {
		log.Fatalf("send: %v", err)
	}
	log.Printf("send completed: requests=%d skipped_rows=%d", sent, skipped)
}

func send(ctx context.Context, cfg config, r io.Reader) (int, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	deviceCol, ok := columns[cfg.deviceColumn]
	if !ok {
		return 0, 0, fmt.Errorf("missing %s column", cfg.deviceColumn)
	}
	timestampCol, ok := columns[cfg.timestampColumn]
	if !ok {
		return 0, 0, fmt.Errorf("missing %s column", cfg.timestampColumn)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	endpoint := strings.TrimRight(cfg.baseURL, "/") + "/api/v1/iot-data"

	sent := 0
	skipped := 0
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sent, skipped, fmt.Errorf("read row %d: %w", line+1, err)
		}
		line++

		deviceID := cell(record, deviceCol)
		epoch, parseErr := strconv.ParseInt(cell(record, timestampCol), 10, 64)
		if deviceID == "" || parseErr != nil || epoch <= 0 {
			log.Printf("row %d: malformed, skipping", line)
			skipped++
			continue
		}

		measurements := make([]payloadMeasurement, 0, len(bulkload.DefaultChannels))
		for _, channel := range bulkload.DefaultChannels {
			idx, ok := columns[channel]
			if !ok {
				continue
			}
			raw := cell(record, idx)
			if raw == "" {
				continue
			}
			value, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				continue
			}
			measurements = append(measurements, payloadMeasurement{
				Type:       channel,
				Value:      value,
				RecordedAt: epoch,
			})
			if cfg.maxPerRequest > 0 && len(measurements) >= cfg.maxPerRequest {
				break
			}
		}
		if len(measurements) == 0 {
			skipped++
			continue
		}

		if err := post(ctx, client, endpoint, payload{StationID: deviceID, Measurements: measurements}); err != nil {
			return sent, skipped, fmt.Errorf("row %d: %w", line, err)
		}
		sent++
	}
	return sent, skipped, nil
}

func post(ctx context.Context, client *http.Client, endpoint string, body payload) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("ingest failed for %s: http %d: %s", body.StationID, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.baseURL, "base-url", envOrDefault("BASE_URL", ""), "API base URL")
	flag.StringVar(&cfg.file, "file", envOrDefault("CSV_FILE", ""), "path to the CSV export")
	flag.StringVar(&cfg.deviceColumn, "device-column", envOrDefault("DEVICE_COLUMN", "DeviceID"), "device id column name")
	flag.StringVar(&cfg.timestampColumn, "timestamp-column", envOrDefault("TIMESTAMP_COLUMN", "Timestamp"), "timestamp column name")
	flag.IntVar(&cfg.maxPerRequest, "max-per-request", envOrInt("MAX_PER_REQUEST", 0), "cap measurements per request (0 is unlimited)")
	flag.Parse()
	return cfg
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
