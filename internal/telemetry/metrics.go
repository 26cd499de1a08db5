// Package telemetry exposes Prometheus metrics for the commission tracker.
package telemetry

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dvloznov/commission-tracker/internal/jobs"
)

const namespace = "commission_tracker"

// Sweep results.
const (
	SweepResultOK    = "ok"
	SweepResultError = "error"
)

// Metrics groups every collector the service registers.
type Metrics struct {
	transactionsIngested *prometheus.CounterVec
	devicesPurged        prometheus.Counter
	transactionsPurged   prometheus.Counter
	sweepRuns            *prometheus.CounterVec
	sweepDuration        prometheus.Histogram
	jobsProcessed        *prometheus.CounterVec
	httpRequests         *prometheus.CounterVec
	httpDuration         *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg. A nil reg uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		transactionsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_ingested_total",
			Help:      "Rows offered for ingestion by outcome.",
		}, []string{"outcome"}),
		devicesPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "devices_purged_total",
			Help:      "Completed devices removed by the retention sweep.",
		}),
		transactionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_purged_total",
			Help:      "Transactions removed by the retention sweep.",
		}),
		sweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retention_sweep_runs_total",
			Help:      "Retention sweep runs by result.",
		}, []string{"result"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retention_sweep_duration_seconds",
			Help:      "Retention sweep latency.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		jobsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_jobs_processed_total",
			Help:      "Import job attempts by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.transactionsIngested,
		m.devicesPurged,
		m.transactionsPurged,
		m.sweepRuns,
		m.sweepDuration,
		m.jobsProcessed,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// TransactionsIngested records the outcome of one ingest call.
func (m *Metrics) TransactionsIngested(inserted, duplicates, skipped int) {
	m.transactionsIngested.WithLabelValues("inserted").Add(float64(inserted))
	m.transactionsIngested.WithLabelValues("duplicate").Add(float64(duplicates))
	m.transactionsIngested.WithLabelValues("skipped").Add(float64(skipped))
}

// DevicesPurged records what a retention sweep removed.
func (m *Metrics) DevicesPurged(devices, transactions int) {
	m.devicesPurged.Add(float64(devices))
	m.transactionsPurged.Add(float64(transactions))
}

// SweepCompleted records one retention sweep run.
func (m *Metrics) SweepCompleted(d time.Duration, err error) {
	result := SweepResultOK
	if err != nil {
		result = SweepResultError
	}
	m.sweepRuns.WithLabelValues(result).Inc()
	m.sweepDuration.Observe(d.Seconds())
}

// InstrumentJobs wraps a job handler and counts each attempt.
func (m *Metrics) InstrumentJobs(next jobs.JobHandler) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		err := next(ctx, job)
		result := "ok"
		if err != nil {
			result = "error"
		}
		m.jobsProcessed.WithLabelValues(result).Inc()
		return err
	}
}

// Middleware records request counts and latency labelled by the matched
// ServeMux pattern. It must wrap the mux directly so r.Pattern is visible.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the metrics in g in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
