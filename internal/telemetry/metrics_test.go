package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dvloznov/commission-tracker/internal/commission"
	"github.com/dvloznov/commission-tracker/internal/jobs"
)

var _ commission.Recorder = (*Metrics)(nil)

func TestRecorderCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.TransactionsIngested(3, 2, 1)
	m.TransactionsIngested(1, 0, 0)
	m.DevicesPurged(2, 12)

	if got := testutil.ToFloat64(m.transactionsIngested.WithLabelValues("inserted")); got != 4 {
		t.Fatalf("expected 4 inserted, got %v", got)
	}
	if got := testutil.ToFloat64(m.transactionsIngested.WithLabelValues("duplicate")); got != 2 {
		t.Fatalf("expected 2 duplicates, got %v", got)
	}
	if got := testutil.ToFloat64(m.devicesPurged); got != 2 {
		t.Fatalf("expected 2 devices purged, got %v", got)
	}
	if got := testutil.ToFloat64(m.transactionsPurged); got != 12 {
		t.Fatalf("expected 12 transactions purged, got %v", got)
	}
}

func TestSweepCompleted(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SweepCompleted(time.Second, nil)
	m.SweepCompleted(time.Second, errors.New("boom"))
	m.SweepCompleted(time.Second, nil)

	if got := testutil.ToFloat64(m.sweepRuns.WithLabelValues(SweepResultOK)); got != 2 {
		t.Fatalf("expected 2 ok runs, got %v", got)
	}
	if got := testutil.ToFloat64(m.sweepRuns.WithLabelValues(SweepResultError)); got != 1 {
		t.Fatalf("expected 1 failed run, got %v", got)
	}
}

func TestInstrumentJobs(t *testing.T) {
	m := New(prometheus.NewRegistry())
	fail := true
	handler := m.InstrumentJobs(func(ctx context.Context, job jobs.Job) error {
		if fail {
			return errors.New("boom")
		}
		return nil
	})

	if err := handler(context.Background(), &jobs.ImportJob{}); err == nil {
		t.Fatal("expected the wrapped error")
	}
	fail = false
	if err := handler(context.Background(), &jobs.ImportJob{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := testutil.ToFloat64(m.jobsProcessed.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected 1 failed job, got %v", got)
	}
	if got := testutil.ToFloat64(m.jobsProcessed.WithLabelValues("ok")); got != 1 {
		t.Fatalf("expected 1 completed job, got %v", got)
	}
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/devices/{imei}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := m.Middleware(mux)

	for _, path := range []string{"/api/devices/1", "/api/devices/2", "/nope"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET /api/devices/{imei}", "404")); got != 2 {
		t.Fatalf("expected 2 requests on the device route, got %v", got)
	}
	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("unmatched", "404")); got != 1 {
		t.Fatalf("expected 1 unmatched request, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.DevicesPurged(1, 6)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "commission_tracker_devices_purged_total 1") {
		t.Fatalf("metric missing from output:\n%s", rec.Body.String())
	}
}
