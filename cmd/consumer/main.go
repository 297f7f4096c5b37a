// Command consumer drains raw GA4 events from SQS into the ClickHouse event
// store that the sessionizer reads from.
//
// It serves /health (ClickHouse reachability) and /metrics on
// CONSUMER_HEALTH_CHECK_PORT.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Dminor7/ga4bigquery/internal/config"
	"github.com/Dminor7/ga4bigquery/internal/consumer"
	"github.com/Dminor7/ga4bigquery/internal/logger"
	"github.com/Dminor7/ga4bigquery/internal/queue/sqs"
	"github.com/Dminor7/ga4bigquery/internal/repository/clickhouse"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.New(cfg.Service.Environment, cfg.Service.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func(log *zap.Logger) {
		_ = log.Sync()
	}(log)

	if err := run(cfg, log); err != nil {
		log.Fatal("Consumer failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting consumer service",
		zap.String("environment", cfg.Service.Environment),
		zap.Int("batch_size_max", cfg.Consumer.BatchSizeMax),
		zap.Int("batch_timeout_sec", cfg.Consumer.BatchTimeoutSec))

	chClient, err := clickhouse.NewClient(ctx, cfg.ClickHouse, log)
	if err != nil {
		return fmt.Errorf("create clickhouse client: %w", err)
	}
	defer func() {
		if err := chClient.Close(); err != nil {
			log.Error("Failed to close ClickHouse client", zap.Error(err))
		}
	}()

	repo := clickhouse.NewRepository(chClient, log)
	if err := repo.InitSchema(ctx); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	log.Info("Database schema initialized")

	sqsClient, err := sqs.NewClient(ctx, cfg.SQS, log)
	if err != nil {
		return fmt.Errorf("create sqs client: %w", err)
	}

	server := newHealthServer(":"+cfg.Consumer.HealthCheckPort, repo, log)
	go func() {
		log.Info("Health check server starting", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Health check server error", zap.Error(err))
		}
	}()

	c := consumer.NewConsumer(cfg.Consumer, sqsClient, repo, log)

	log.Info("Consumer starting", zap.String("queue_url", sqsClient.QueueURL()))
	consumeErr := c.Start(ctx)
	log.Info("Shutting down consumer gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Health check server shutdown failed", zap.Error(err))
	}

	log.Info("Consumer stopped")
	return consumeErr
}

func newHealthServer(addr string, repo *clickhouse.Repository, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := repo.Ping(r.Context()); err != nil {
			log.Warn("Health check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
