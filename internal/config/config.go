package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mr1hm/go-drought-forecast/internal/models"
)

type Config struct {
	Server   ServerConfig
	Worker   WorkerConfig
	Sources  SourcesConfig
	Models   ModelsConfig
	Ingest   IngestConfig
	Kafka    KafkaConfig
	DB       DatabaseConfig
	Logging  LoggingConfig
	Shutdown time.Duration
}

type ServerConfig struct {
	Host         string
	Port         int
	RateLimitRPS int
}

type WorkerConfig struct {
	Count      int
	BufferSize int
}

type SourcesConfig struct {
	WeatherAPIURL      string
	WeatherAPIKey      string
	HistoricalURL      string
	HistoricalColumn   string
	BaselineWindow     int
	HistoricalCacheTTL time.Duration
	Timeout            time.Duration
}

type ModelsConfig struct {
	OccurrenceURL   string
	SeverityURL     string
	SeverityClasses int
	Timeout         time.Duration
}

type IngestConfig struct {
	Enabled         bool
	Locations       []models.Coordinates
	Interval        time.Duration
	RetryMaxElapsed time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Enabled reports whether records should be published to Kafka.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type DatabaseConfig struct {
	Path string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	locations, err := parseLocations(getEnv("INGEST_LOCATIONS", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			RateLimitRPS: getEnvInt("RATE_LIMIT_RPS", 5),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 2),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 20),
		},
		Sources: SourcesConfig{
			WeatherAPIURL:      getEnv("WEATHERAPI_URL", "http://api.weatherapi.com/v1/history.json"),
			WeatherAPIKey:      os.Getenv("WEATHERAPI_KEY"),
			HistoricalURL:      getEnv("HISTORICAL_URL", "https://raw.githubusercontent.com/gumbogail/FarmersGuide/testing123/newnewdataset.csv"),
			HistoricalColumn:   getEnv("HISTORICAL_COLUMN", "totalprecip_mm"),
			BaselineWindow:     getEnvInt("BASELINE_WINDOW", 60),
			HistoricalCacheTTL: getEnvDuration("HISTORICAL_CACHE_TTL", time.Hour),
			Timeout:            getEnvDuration("SOURCE_TIMEOUT", 15*time.Second),
		},
		Models: ModelsConfig{
			OccurrenceURL:   getEnv("OCCURRENCE_MODEL_URL", "http://localhost:8501/v1/models/drought_occurrence:predict"),
			SeverityURL:     getEnv("SEVERITY_MODEL_URL", "http://localhost:8501/v1/models/drought_severity:predict"),
			SeverityClasses: getEnvInt("SEVERITY_CLASSES", 4),
			Timeout:         getEnvDuration("MODEL_TIMEOUT", 10*time.Second),
		},
		Ingest: IngestConfig{
			Enabled:         getEnvBool("INGEST_ENABLED", false),
			Locations:       locations,
			Interval:        getEnvDuration("INGEST_INTERVAL", 24*time.Hour),
			RetryMaxElapsed: getEnvDuration("INGEST_RETRY_MAX_ELAPSED", 2*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "")),
			Topic:   getEnv("KAFKA_TOPIC", "drought-records"),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/drought.db"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Shutdown: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.RateLimitRPS < 1 {
		return fmt.Errorf("rate limit must be at least 1 req/s, got %d", c.Server.RateLimitRPS)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Sources.BaselineWindow < 2 {
		return fmt.Errorf("baseline window must be at least 2 samples, got %d", c.Sources.BaselineWindow)
	}
	if c.Sources.HistoricalCacheTTL < 0 {
		return fmt.Errorf("historical cache TTL must not be negative")
	}
	if c.Sources.Timeout <= 0 || c.Models.Timeout <= 0 {
		return fmt.Errorf("source and model timeouts must be positive")
	}
	if c.Models.SeverityClasses < 2 {
		return fmt.Errorf("severity classes must be at least 2, got %d", c.Models.SeverityClasses)
	}

	if c.Worker.Count < 1 || c.Worker.BufferSize < 1 {
		return fmt.Errorf("worker count and buffer size must be positive")
	}

	if c.Ingest.Enabled {
		if c.Sources.WeatherAPIKey == "" {
			return fmt.Errorf("WEATHERAPI_KEY is required when ingestion is enabled")
		}
		if len(c.Ingest.Locations) == 0 {
			return fmt.Errorf("INGEST_LOCATIONS is required when ingestion is enabled")
		}
		if c.Ingest.Interval < time.Minute {
			return fmt.Errorf("ingest interval must be at least 1 minute")
		}
	}

	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return nil
}

// parseLocations reads "lat,lon;lat,lon".
func parseLocations(s string) ([]models.Coordinates, error) {
	var locations []models.Coordinates
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.Split(pair, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid location %q: want lat,lon", pair)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude in %q: %w", pair, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude in %q: %w", pair, err)
		}
		loc := models.Coordinates{Latitude: lat, Longitude: lon}
		if !loc.Valid() {
			return nil, fmt.Errorf("location %q out of range", pair)
		}
		locations = append(locations, loc)
	}
	return locations, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
