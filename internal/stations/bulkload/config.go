package bulkload

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

const defaultBatchSize = 1000

// Config defines bulk loader behavior.
type Config struct {
	DeviceIDColumn  string   `yaml:"device_id_column"`
	TimestampColumn string   `yaml:"timestamp_column"`
	Channels        []string `yaml:"channels"`
	BatchSize       int      `yaml:"batch_size"`
}

// DefaultChannels are the sensor columns recognized in CSV exports.
var DefaultChannels = []string{
	"max_wind_speed",
	"mean_wind_speed",
	"pluviometer",
	"atmospheric",
	"temperature",
	"humidity",
	"wind_direction",
	"humidity_solo",
}

// LoadConfig loads config from yaml or env.
func LoadConfig() (Config, error) {
	cfg := Config{
		DeviceIDColumn:  getenvDefault("BULKLOAD_DEVICE_COLUMN", "DeviceID"),
		TimestampColumn: getenvDefault("BULKLOAD_TIMESTAMP_COLUMN", "Timestamp"),
		Channels:        DefaultChannels,
		BatchSize:       getenvIntDefault("BULKLOAD_BATCH_SIZE", defaultBatchSize),
	}

	if path := os.Getenv("BULKLOAD_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if len(cfg.Channels) == 0 {
		cfg.Channels = DefaultChannels
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
