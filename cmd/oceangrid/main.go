package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/saltline/oceangrid/internal/adapter/erddap"
	"github.com/saltline/oceangrid/internal/adapter/httpapi"
	kafkaadapter "github.com/saltline/oceangrid/internal/adapter/kafka"
	"github.com/saltline/oceangrid/internal/cache"
	"github.com/saltline/oceangrid/internal/config"
	"github.com/saltline/oceangrid/internal/coordinator"
	"github.com/saltline/oceangrid/internal/observability"
	"github.com/saltline/oceangrid/internal/service"
)

func main() {
	// Optional .env for local development; real deployments set env directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	store, err := newStore(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize cache store", "backend", cfg.CacheBackend, "error", err)
		os.Exit(1)
	}
	grids := cache.New(store, clock, cfg.CacheMaxEntries, cfg.CacheMaxAge, metrics, logger)

	fetcher := erddap.NewClient(cfg.ERDDAPBaseURL, cfg.ERDDAPTimeout, metrics, logger)
	coord := coordinator.New(fetcher, grids, coordinator.Options{
		Concurrency: cfg.FetchConcurrency,
		MinInterval: cfg.FetchMinInterval,
		MaxAttempts: cfg.FetchMaxAttempts,
		RetryBase:   cfg.FetchRetryBase,
		Clock:       clock,
	}, metrics, logger)

	// Fetch auditing is feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS.
	var auditor service.Auditor
	var publisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		publisher = kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, metrics, logger)
		auditor = publisher
		logger.Info("fetch auditing enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("fetch auditing disabled")
	}

	svc := service.New(coord, auditor, logger)
	srv := httpapi.NewServer(cfg.HTTPAddr, svc, metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// newStore selects the cache persistence backend.
func newStore(cfg *config.Config, logger *slog.Logger) (cache.Store, error) {
	switch cfg.CacheBackend {
	case config.CacheBackendMemory:
		return cache.NewMemoryStore(), nil
	case config.CacheBackendS3:
		logger.Info("using s3 cache store", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)
		return cache.NewMinioStore(context.Background(), cache.MinioConfig{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
	default:
		return cache.NewFileStore(cfg.CacheDir)
	}
}
