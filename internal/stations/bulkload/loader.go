package bulkload

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	stations "naturepark-cloud/internal/stations/domain"
)

// Loader streams a CSV export into station and measurement records.
// The load is not transactional end-to-end: a failure partway leaves
// prior batches committed.
type Loader struct {
	stationRepo     stations.StationRepository
	measurementRepo stations.MeasurementRepository
	cfg             Config
	logger          *log.Logger
}

// Summary reports the outcome of a load.
type Summary struct {
	Rows            int
	SkippedRows     int
	SkippedCells    int
	Measurements    int
	StationsTouched int
}

// NewLoader constructs a loader.
func NewLoader(stationRepo stations.StationRepository, measurementRepo stations.MeasurementRepository, cfg Config, logger *log.Logger) (*Loader, error) {
	if stationRepo == nil {
		return nil, errors.New("bulkload: nil station repository")
	}
	if measurementRepo == nil {
		return nil, errors.New("bulkload: nil measurement repository")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.DeviceIDColumn == "" {
		cfg.DeviceIDColumn = "DeviceID"
	}
	if cfg.TimestampColumn == "" {
		cfg.TimestampColumn = "Timestamp"
	}
	if len(cfg.Channels) == 0 {
		cfg.Channels = DefaultChannels
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Loader{
		stationRepo:     stationRepo,
		measurementRepo: measurementRepo,
		cfg:             cfg,
		logger:          logger,
	}, nil
}

// Load parses the CSV stream and writes measurements in batches.
// Malformed rows and cells are skipped with a warning; they never
// abort the load.
func (l *Loader) Load(ctx context.Context, r io.Reader) (Summary, error) {
	var summary Summary

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return summary, fmt.Errorf("bulkload: read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	deviceCol, ok := columns[l.cfg.DeviceIDColumn]
	if !ok {
		return summary, fmt.Errorf("bulkload: missing %s column", l.cfg.DeviceIDColumn)
	}
	timestampCol, ok := columns[l.cfg.TimestampColumn]
	if !ok {
		return summary, fmt.Errorf("bulkload: missing %s column", l.cfg.TimestampColumn)
	}

	// Station resolutions are cached for the duration of the load.
	stationCache := make(map[string]*stations.Station)
	buffer := make([]stations.Measurement, 0, l.cfg.BatchSize)

	flush := func() error {
		if len(buffer) == 0 {
			return nil
		}
		if err := l.measurementRepo.InsertBatch(ctx, buffer); err != nil {
			return fmt.Errorf("bulkload: flush batch: %w", err)
		}
		summary.Measurements += len(buffer)
		buffer = buffer[:0]
		return nil
	}

	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return summary, fmt.Errorf("bulkload: read row %d: %w", line+1, err)
		}
		line++
		summary.Rows++

		deviceID := cell(record, deviceCol)
		if deviceID == "" {
			l.logger.Printf("bulkload: row %d: empty device id, skipping row", line)
			summary.SkippedRows++
			continue
		}

		rawTS := cell(record, timestampCol)
		epoch, err := strconv.ParseInt(rawTS, 10, 64)
		if err != nil || epoch <= 0 {
			l.logger.Printf("bulkload: row %d: bad timestamp %q, skipping row", line, rawTS)
			summary.SkippedRows++
			continue
		}
		recordedAt := time.Unix(epoch, 0).UTC()

		station := stationCache[deviceID]
		if station == nil {
			station, err = l.stationRepo.GetOrCreate(ctx, deviceID, stations.DefaultName(deviceID), "")
			if err != nil {
				return summary, fmt.Errorf("bulkload: station %s: %w", deviceID, err)
			}
			stationCache[deviceID] = station
			summary.StationsTouched++
		}

		for _, channel := range l.cfg.Channels {
			idx, ok := columns[channel]
			if !ok {
				continue
			}
			raw := cell(record, idx)
			if raw == "" {
				continue
			}
			value, err := strconv.ParseFloat(raw, 64)
			if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
				l.logger.Printf("bulkload: row %d: bad %s value %q, skipping cell", line, channel, raw)
				summary.SkippedCells++
				continue
			}
			buffer = append(buffer, stations.Measurement{
				StationID:  station.ID,
				Type:       channel,
				Value:      value,
				RecordedAt: recordedAt,
			})
			if len(buffer) >= l.cfg.BatchSize {
				if err := flush(); err != nil {
					return summary, err
				}
			}
		}
	}

	if err := flush(); err != nil {
		return summary, err
	}
	return summary, nil
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
