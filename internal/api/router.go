// Package api wires the HTTP handlers and middleware into one http.Handler.
package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/dvloznov/commission-tracker/internal/api/handlers"
	"github.com/dvloznov/commission-tracker/internal/api/middleware"
	"github.com/dvloznov/commission-tracker/internal/commission"
	"github.com/dvloznov/commission-tracker/internal/gcsuploader"
	"github.com/dvloznov/commission-tracker/internal/jobs"
	"github.com/dvloznov/commission-tracker/internal/pipeline"
	"github.com/dvloznov/commission-tracker/internal/telemetry"
)

// Config holds the collaborators of the router. Service and Pipeline are
// required; job, sweep and metrics routes are only mounted when their
// dependencies are set.
type Config struct {
	Service  *commission.Service
	Pipeline *pipeline.Pipeline

	// Storage and Bucket archive direct uploads to GCS.
	Storage gcsuploader.StorageService
	Bucket  string

	JobStore  jobs.JobStore
	Publisher jobs.Publisher
	Sweeper   handlers.SweepTrigger

	Metrics  *telemetry.Metrics
	Gatherer prometheus.Gatherer

	// AuthToken enables bearer authentication on /api/ routes.
	AuthToken string

	Log zerolog.Logger
}

// NewRouter registers every route and applies the middleware chain.
func NewRouter(cfg Config) http.Handler {
	log := cfg.Log

	transactionsHandler := handlers.NewTransactionsHandler(cfg.Service, log)
	devicesHandler := handlers.NewDevicesHandler(cfg.Service, log)
	insightsHandler := handlers.NewInsightsHandler(cfg.Service, log)
	uploadsHandler := handlers.NewUploadsHandler(cfg.Pipeline, cfg.Storage, cfg.Bucket, log)

	mux := http.NewServeMux()

	// Transactions and batches
	mux.HandleFunc("GET /api/transactions", transactionsHandler.ListTransactions)
	mux.HandleFunc("POST /api/transactions", transactionsHandler.CreateTransactions)
	mux.HandleFunc("GET /api/transactions/{id}", transactionsHandler.GetTransaction)
	mux.HandleFunc("PATCH /api/transactions/{id}", transactionsHandler.UpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", transactionsHandler.DeleteTransaction)
	mux.HandleFunc("GET /api/batches", transactionsHandler.ListBatches)
	mux.HandleFunc("DELETE /api/batches/{id}", transactionsHandler.DeleteBatch)
	mux.HandleFunc("POST /api/uploads", uploadsHandler.Upload)

	// Devices and annotations
	mux.HandleFunc("GET /api/devices", devicesHandler.ListDevices)
	mux.HandleFunc("GET /api/devices/{imei}", devicesHandler.GetDevice)
	mux.HandleFunc("POST /api/devices/{imei}/toggle-active", devicesHandler.ToggleActive)
	mux.HandleFunc("POST /api/devices/{imei}/payments", devicesHandler.AddPayment)
	mux.HandleFunc("GET /api/devices/{imei}/annotation", devicesHandler.GetAnnotation)
	mux.HandleFunc("PUT /api/devices/{imei}/annotation", devicesHandler.SetAnnotation)
	mux.HandleFunc("GET /api/annotations", devicesHandler.ListAnnotations)

	// Alerts and dashboard
	mux.HandleFunc("GET /api/alerts", insightsHandler.ListAlerts)
	mux.HandleFunc("GET /api/metrics", insightsHandler.GetMetrics)

	if cfg.JobStore != nil && cfg.Publisher != nil {
		jobsHandler := handlers.NewJobsHandler(cfg.JobStore, cfg.Publisher, log)
		mux.HandleFunc("POST /api/imports", jobsHandler.EnqueueImport)
		mux.HandleFunc("GET /api/jobs", jobsHandler.ListJobs)
		mux.HandleFunc("GET /api/jobs/{id}", jobsHandler.GetJob)
	}

	if cfg.Sweeper != nil {
		mux.HandleFunc("POST /api/retention/sweep", handlers.NewRetentionHandler(cfg.Sweeper).Sweep)
	}

	mux.HandleFunc("GET /health", handlers.Health)
	if cfg.Gatherer != nil {
		mux.Handle("GET /metrics", telemetry.Handler(cfg.Gatherer))
	}

	var handler http.Handler = mux
	if cfg.Metrics != nil {
		handler = cfg.Metrics.Middleware(handler)
	}

	return middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(
					middleware.Auth(cfg.AuthToken)(handler),
				),
			),
		),
	)
}
