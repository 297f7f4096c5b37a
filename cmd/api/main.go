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

	"go.uber.org/zap"

	"github.com/Dminor7/ga4bigquery/internal/backend"
	"github.com/Dminor7/ga4bigquery/internal/config"
	"github.com/Dminor7/ga4bigquery/internal/handler"
	"github.com/Dminor7/ga4bigquery/internal/logger"
	"github.com/Dminor7/ga4bigquery/internal/queue/sqs"
	"github.com/Dminor7/ga4bigquery/internal/repository/clickhouse"
	"github.com/Dminor7/ga4bigquery/internal/service"
	"github.com/Dminor7/ga4bigquery/internal/sessions"
)

const shutdownTimeout = 15 * time.Second

// Routes:
//
//	POST /events         publish one raw event
//	POST /events/bulk    publish up to 1000 raw events
//	POST /classify       source/medium to source category and channel
//	POST /sessions/run   build and materialize sessions
//	GET  /channels       sessions per channel between two dates
//	GET  /health         dependency checks
//	GET  /metrics        Prometheus metrics
//	GET  /docs/*any      Swagger UI
//
// @title GA4 Sessions API
// @version 1.0
// @description Raw GA4 event collection, session attribution runs and channel reports
// @host localhost:8080
// @BasePath /
// @schemes http https
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log, err := logger.New(cfg.Service.Environment, cfg.Service.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func(log *zap.Logger) {
		_ = log.Sync()
	}(log)

	log.Info("Starting API service",
		zap.String("environment", cfg.Service.Environment),
		zap.String("port", cfg.Service.APIPort))

	ctx := context.Background()

	// Initialize SQS client
	sqsClient, err := sqs.NewClient(ctx, cfg.SQS, log)
	if err != nil {
		log.Fatal("Failed to create SQS client", zap.Error(err))
	}

	// Initialize ClickHouse client
	clickhouseClient, err := clickhouse.NewClient(ctx, cfg.ClickHouse, log)
	if err != nil {
		log.Fatal("Failed to create ClickHouse client", zap.Error(err))
	}
	defer func(clickhouseClient *clickhouse.Client) {
		if err := clickhouseClient.Close(); err != nil {
			log.Error("Failed to close ClickHouse client", zap.Error(err))
		}
	}(clickhouseClient)

	repo := clickhouse.NewRepository(clickhouseClient, log)
	if err := repo.InitSchema(ctx); err != nil {
		log.Fatal("Failed to initialize schema", zap.Error(err))
	}

	// Load the session definition
	session, err := sessions.LoadFile(cfg.Sessions.DefinitionFile, log)
	if err != nil {
		log.Fatal("Failed to load session definition",
			zap.String("file", cfg.Sessions.DefinitionFile), zap.Error(err))
	}

	backends, err := backend.Open(ctx, cfg, backend.Options{
		Source: cfg.Sessions.Source,
		Sink:   cfg.Sessions.Sink,
		Repo:   repo,
	}, log)
	if err != nil {
		log.Fatal("Failed to open session backends", zap.Error(err))
	}
	defer func() {
		if err := backends.Close(); err != nil {
			log.Error("Failed to close session backends", zap.Error(err))
		}
	}()

	eventService := service.NewEventService(sqsClient, log)
	sessionService := service.NewSessionService(session, backends.Source, backends.Sink, repo, cfg.Sessions.Incremental, log)

	h := handler.NewHandler(eventService, sessionService, log)
	h.AddHealthCheck("clickhouse", repo.Ping)

	addr := fmt.Sprintf(":%s", cfg.Service.APIPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("API server starting", zap.String("address", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start API server", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down API server gracefully")
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shut down API server", zap.Error(err))
	}
}
