package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Cache backend selectors.
const (
	CacheBackendMemory = "memory"
	CacheBackendFile   = "file"
	CacheBackendS3     = "s3"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Upstream ERDDAP configuration.
	ERDDAPBaseURL string
	ERDDAPTimeout time.Duration

	// Coordinator pacing and retry configuration.
	FetchMinInterval time.Duration
	FetchConcurrency int
	FetchMaxAttempts int
	FetchRetryBase   time.Duration

	// Grid cache configuration.
	CacheBackend    string
	CacheDir        string
	CacheMaxEntries int
	CacheMaxAge     time.Duration

	// S3-compatible cache store (only used when CacheBackend == "s3").
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool

	// Optional Kafka fetch-audit publishing.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parsePositiveDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	erddapTimeout, err := parsePositiveDuration("ERDDAP_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	fetchMinInterval, err := parsePositiveDuration("FETCH_MIN_INTERVAL", "2200ms")
	if err != nil {
		return nil, err
	}
	fetchRetryBase, err := parsePositiveDuration("FETCH_RETRY_BASE", "2s")
	if err != nil {
		return nil, err
	}
	cacheMaxAge, err := parsePositiveDuration("CACHE_MAX_AGE", "24h")
	if err != nil {
		return nil, err
	}

	fetchConcurrency, err := parseBoundedInt("FETCH_CONCURRENCY", 1, 1, 8)
	if err != nil {
		return nil, err
	}
	fetchMaxAttempts, err := parseBoundedInt("FETCH_MAX_ATTEMPTS", 3, 1, 10)
	if err != nil {
		return nil, err
	}
	cacheMaxEntries, err := parseBoundedInt("CACHE_MAX_ENTRIES", 50, 1, 10000)
	if err != nil {
		return nil, err
	}

	kafkaBrokers := parseBrokers(os.Getenv("KAFKA_BROKERS"))
	kafkaEnabled := len(kafkaBrokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		ERDDAPBaseURL: envOrDefault("ERDDAP_BASE_URL", "https://coastwatch.pfeg.noaa.gov/erddap/griddap/jplMURSST41"),
		ERDDAPTimeout: erddapTimeout,

		FetchMinInterval: fetchMinInterval,
		FetchConcurrency: fetchConcurrency,
		FetchMaxAttempts: fetchMaxAttempts,
		FetchRetryBase:   fetchRetryBase,

		CacheBackend:    envOrDefault("CACHE_BACKEND", CacheBackendFile),
		CacheDir:        envOrDefault("CACHE_DIR", "noaa_cache"),
		CacheMaxEntries: cacheMaxEntries,
		CacheMaxAge:     cacheMaxAge,

		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		S3Bucket:    envOrDefault("S3_BUCKET", "oceangrid-cache"),
		S3UseSSL:    os.Getenv("S3_USE_SSL") == "true",

		KafkaEnabled: kafkaEnabled,
		KafkaBrokers: kafkaBrokers,
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "sst-grid-fetches"),
	}

	switch cfg.CacheBackend {
	case CacheBackendMemory, CacheBackendFile, CacheBackendS3:
	default:
		return nil, fmt.Errorf("invalid CACHE_BACKEND %q: want memory, file, or s3", cfg.CacheBackend)
	}
	if cfg.CacheBackend == CacheBackendS3 && cfg.S3Endpoint == "" {
		return nil, fmt.Errorf("CACHE_BACKEND is s3 but S3_ENDPOINT is not set")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	raw := envOrDefault(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return d, nil
}

func parseBoundedInt(key string, def, min, max int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min || n > max {
		return 0, fmt.Errorf("invalid %s: %q (want %d-%d)", key, raw, min, max)
	}
	return n, nil
}

func parseBrokers(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
