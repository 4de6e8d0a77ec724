package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib"

	"naturepark-cloud/internal/stations/bulkload"
	"naturepark-cloud/internal/stations/infrastructure/postgres"
)

type config struct {
	dsn              string
	file             string
	batchSize        int
	deviceColumn     string
	timestampColumn  string
	stationTable     string
	measurementTable string
}

func main() {
	cfg := parseConfig()
	if cfg.dsn == "" {
		log.Fatal("PG_DSN or DATABASE_URL is required")
	}
	if cfg.file == "" {
		log.Fatal("file is required")
	}

	db, err := sql.Open("pgx", cfg.dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	f, err := os.Open(cfg.file)
	if err != nil {
		log.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	stationRepo := postgres.NewStationRepository(db, postgres.WithStationTable(cfg.stationTable))
	measurementRepo := postgres.NewMeasurementRepository(db, postgres.WithMeasurementTable(cfg.measurementTable))

	loadCfg, err := bulkload.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.batchSize > 0 {
		loadCfg.BatchSize = cfg.batchSize
	}
	if cfg.deviceColumn != "" {
		loadCfg.DeviceIDColumn = cfg.deviceColumn
	}
	if cfg.timestampColumn != "" {
		loadCfg.TimestampColumn = cfg.timestampColumn
	}

	loader, err := bulkload.NewLoader(stationRepo, measurementRepo, loadCfg, log.Default())
	if err != nil {
		log.Fatalf("new loader: %v", err)
	}

	log.Printf("loading %s: batch=%d device-col=%s timestamp-col=%s", cfg.file, loadCfg.BatchSize, loadCfg.DeviceIDColumn, loadCfg.TimestampColumn)
	summary, err := loader.Load(context.Background(), f)
	if err != nil {
		log.Fatalf("load: %v (rows=%d measurements=%d)", err, summary.Rows, summary.Measurements)
	}
	log.Printf("load completed: rows=%d skipped_rows=%d skipped_cells=%d measurements=%d stations=%d",
		summary.Rows, summary.SkippedRows, summary.SkippedCells, summary.Measurements, summary.StationsTouched)
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.dsn, "pg-dsn", envOrDefault("PG_DSN", envOrDefault("DATABASE_URL", "")), "Postgres DSN")
	flag.StringVar(&cfg.file, "file", envOrDefault("CSV_FILE", ""), "path to the CSV export")
	flag.IntVar(&cfg.batchSize, "batch-size", envOrInt("BATCH_SIZE", 0), "measurements per insert batch (0 keeps the default)")
	flag.StringVar(&cfg.deviceColumn, "device-column", envOrDefault("DEVICE_COLUMN", ""), "device id column name")
	flag.StringVar(&cfg.timestampColumn, "timestamp-column", envOrDefault("TIMESTAMP_COLUMN", ""), "timestamp column name")
	flag.StringVar(&cfg.stationTable, "station-table", envOrDefault("STATION_TABLE", ""), "stations table name")
	flag.StringVar(&cfg.measurementTable, "measurement-table", envOrDefault("MEASUREMENT_TABLE", ""), "measurements table name")
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
