package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)

	assert.Equal(t, "https://coastwatch.pfeg.noaa.gov/erddap/griddap/jplMURSST41", cfg.ERDDAPBaseURL)
	assert.Equal(t, 30*time.Second, cfg.ERDDAPTimeout)

	assert.Equal(t, 2200*time.Millisecond, cfg.FetchMinInterval)
	assert.Equal(t, 1, cfg.FetchConcurrency)
	assert.Equal(t, 3, cfg.FetchMaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.FetchRetryBase)

	assert.Equal(t, CacheBackendFile, cfg.CacheBackend)
	assert.Equal(t, "noaa_cache", cfg.CacheDir)
	assert.Equal(t, 50, cfg.CacheMaxEntries)
	assert.Equal(t, 24*time.Hour, cfg.CacheMaxAge)

	assert.False(t, cfg.KafkaEnabled)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "sst-grid-fetches", cfg.KafkaTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("ERDDAP_BASE_URL", "http://localhost:8081/erddap/griddap/test")
	t.Setenv("ERDDAP_TIMEOUT", "5s")
	t.Setenv("FETCH_MIN_INTERVAL", "500ms")
	t.Setenv("FETCH_CONCURRENCY", "2")
	t.Setenv("FETCH_MAX_ATTEMPTS", "5")
	t.Setenv("FETCH_RETRY_BASE", "1s")
	t.Setenv("CACHE_BACKEND", "memory")
	t.Setenv("CACHE_MAX_ENTRIES", "100")
	t.Setenv("CACHE_MAX_AGE", "12h")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "custom-audit")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "http://localhost:8081/erddap/griddap/test", cfg.ERDDAPBaseURL)
	assert.Equal(t, 5*time.Second, cfg.ERDDAPTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.FetchMinInterval)
	assert.Equal(t, 2, cfg.FetchConcurrency)
	assert.Equal(t, 5, cfg.FetchMaxAttempts)
	assert.Equal(t, time.Second, cfg.FetchRetryBase)
	assert.Equal(t, CacheBackendMemory, cfg.CacheBackend)
	assert.Equal(t, 100, cfg.CacheMaxEntries)
	assert.Equal(t, 12*time.Hour, cfg.CacheMaxAge)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-audit", cfg.KafkaTopic)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_NegativeFetchInterval(t *testing.T) {
	t.Setenv("FETCH_MIN_INTERVAL", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FETCH_MIN_INTERVAL")
}

func TestLoad_InvalidConcurrency(t *testing.T) {
	t.Setenv("FETCH_CONCURRENCY", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FETCH_CONCURRENCY")
}

func TestLoad_CacheEntriesTooLarge(t *testing.T) {
	t.Setenv("CACHE_MAX_ENTRIES", "99999")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CACHE_MAX_ENTRIES")
}

func TestLoad_UnknownCacheBackend(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "redis")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CACHE_BACKEND")
}

func TestLoad_S3BackendRequiresEndpoint(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "s3")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3_ENDPOINT")
}

func TestLoad_KafkaEnabledWithoutBrokers(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "true")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}

func TestLoad_KafkaBrokersImplyEnabled(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "localhost:9092")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.KafkaEnabled)
}

func TestLoad_KafkaExplicitlyDisabled(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "localhost:9092")
	t.Setenv("KAFKA_ENABLED", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.KafkaEnabled)
}
