package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dvloznov/commission-tracker/internal/api"
	"github.com/dvloznov/commission-tracker/internal/commission"
	"github.com/dvloznov/commission-tracker/internal/config"
	"github.com/dvloznov/commission-tracker/internal/gcsuploader"
	"github.com/dvloznov/commission-tracker/internal/infra"
	"github.com/dvloznov/commission-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/commission-tracker/internal/logger"
	"github.com/dvloznov/commission-tracker/internal/pipeline"
	"github.com/dvloznov/commission-tracker/internal/retention"
	"github.com/dvloznov/commission-tracker/internal/telemetry"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	configured, err := logger.NewFromConfig(cfg.Log, os.Stdout)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid logger configuration")
	}
	log = configured

	// Parse command-line flags
	var (
		port     = flag.String("port", cfg.Port, "HTTP server port (or set PORT env)")
		store    = flag.String("store", cfg.Store, "Repository backend: memory or bigquery (or set STORE env)")
		bucket   = flag.String("bucket", cfg.GCSBucket, "GCS bucket for archived exports (or set GCS_BUCKET env)")
		interval = flag.Duration("retention-interval", cfg.RetentionInterval, "Retention sweep interval (or set RETENTION_INTERVAL env)")
	)
	flag.Parse()
	cfg.Store = *store

	if *bucket == "" {
		log.Warn().Msg("No GCS bucket configured - uploaded exports will not be archived")
	}
	if cfg.APIToken == "" {
		log.Warn().Msg("API_TOKEN not set - /api routes are unauthenticated")
	}

	ctx := context.Background()

	repo, err := infra.OpenRepository(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open repository")
	}
	defer repo.Close()

	metrics := telemetry.New(prometheus.DefaultRegisterer)
	svc := commission.NewService(repo, log, commission.WithRecorder(metrics))

	storageSvc := gcsuploader.NewGCSStorageService()
	importPipeline := pipeline.NewImportPipeline(storageSvc, svc)

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.QueueBuffer, jobStore, inmemory.WithWorkers(cfg.QueueWorkers))

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Msg("Starting job worker")
	handler := metrics.InstrumentJobs(pipeline.NewImportHandler(importPipeline, log))
	if err := jobQueue.Start(workerCtx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job worker")
	}

	sweeper := retention.NewScheduler(svc, metrics, *interval, log)
	if err := sweeper.Start(workerCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start retention scheduler")
	}

	router := api.NewRouter(api.Config{
		Service:   svc,
		Pipeline:  importPipeline,
		Storage:   storageSvc,
		Bucket:    *bucket,
		JobStore:  jobStore,
		Publisher: jobQueue,
		Sweeper:   sweeper,
		Metrics:   metrics,
		Gatherer:  prometheus.DefaultGatherer,
		AuthToken: cfg.APIToken,
		Log:       log,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Str("store", cfg.Store).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if err := sweeper.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping retention scheduler")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
