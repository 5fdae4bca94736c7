package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Common contains travel data and bookmark store parameters shared by every service.
type Common struct {
	BooksDir           string
	GPXDir             string
	DefaultLang        string
	GeometryWorkers    int
	ElasticsearchAddr  string
	ElasticsearchIndex string
}

// Worker holds configuration for the Kafka track export worker.
type Worker struct {
	Common
	KafkaBrokers   []string
	KafkaTopic     string
	KafkaConsumer  string
	DedupeCapacity int
	DedupeTTL      time.Duration
	BatchSize      int
	GeometryWait   time.Duration
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	BindAddr        string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	PopularCacheTTL time.Duration
	DefaultPage     int
	MaxPage         int
	KafkaBrokers    []string
	KafkaTopic      string
}

// Retention configures the export cleanup loop.
type Retention struct {
	Common
	Interval time.Duration
	MaxAge   time.Duration
}

func loadCommon() (Common, error) {
	c := Common{
		BooksDir:           getEnv("TRAVEL_BOOKS_DIR", "data/travel"),
		GPXDir:             getEnv("TRAVEL_GPX_DIR", "data/travel/gpx"),
		DefaultLang:        getEnv("TRAVEL_DEFAULT_LANG", "en"),
		GeometryWorkers:    getInt("TRAVEL_GEOMETRY_WORKERS", 4),
		ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "travel_bookmarks"),
	}
	if c.GeometryWorkers <= 0 {
		return c, fmt.Errorf("TRAVEL_GEOMETRY_WORKERS must be positive")
	}
	return c, nil
}

// LoadWorker builds a Worker config from environment variables.
func LoadWorker() (*Worker, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}
	c := &Worker{
		Common:         common,
		KafkaBrokers:   splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "travel_track_exports"),
		KafkaConsumer:  getEnv("KAFKA_CONSUMER_GROUP", "travel-export-worker"),
		DedupeCapacity: getInt("WORKER_DEDUPE_CAPACITY", 5000),
		DedupeTTL:      getDuration("WORKER_DEDUPE_TTL", "10m"),
		BatchSize:      getInt("WORKER_BATCH_SIZE", 10),
		GeometryWait:   getDuration("WORKER_GEOMETRY_WAIT", "30s"),
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("WORKER_BATCH_SIZE must be positive")
	}
	if c.DedupeCapacity <= 0 {
		return nil, fmt.Errorf("WORKER_DEDUPE_CAPACITY must be positive")
	}
	if c.GeometryWait <= 0 {
		return nil, fmt.Errorf("WORKER_GEOMETRY_WAIT must be positive")
	}

	return c, nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}
	c := &API{
		Common:          common,
		BindAddr:        getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		RedisAddr:       strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         getInt("REDIS_DB", 0),
		PopularCacheTTL: getDuration("POPULAR_CACHE_TTL", "10m"),
		DefaultPage:     getInt("API_PAGE_SIZE", 20),
		MaxPage:         getInt("API_MAX_PAGE_SIZE", 100),
		KafkaBrokers:    splitAndTrim(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "travel_track_exports"),
	}

	if c.DefaultPage <= 0 {
		return nil, fmt.Errorf("API_PAGE_SIZE must be positive")
	}
	if c.MaxPage <= 0 {
		return nil, fmt.Errorf("API_MAX_PAGE_SIZE must be positive")
	}
	if c.DefaultPage > c.MaxPage {
		return nil, fmt.Errorf("API_PAGE_SIZE cannot exceed API_MAX_PAGE_SIZE")
	}
	if c.RedisDB < 0 {
		return nil, fmt.Errorf("REDIS_DB cannot be negative")
	}
	if c.PopularCacheTTL <= 0 {
		return nil, fmt.Errorf("POPULAR_CACHE_TTL must be positive")
	}

	return c, nil
}

// LoadRetention builds a Retention config from environment variables.
func LoadRetention() (*Retention, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}
	c := &Retention{
		Common:   common,
		Interval: getDuration("RETENTION_CRON", "24h"),
		MaxAge:   getDuration("RETENTION_MAX_AGE", "168h"),
	}

	if c.MaxAge <= 0 {
		return nil, fmt.Errorf("RETENTION_MAX_AGE must be positive")
	}
	if c.Interval <= 0 {
		return nil, fmt.Errorf("RETENTION_CRON must be positive")
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
