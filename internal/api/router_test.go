package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/commission-tracker/internal/commission"
	"github.com/dvloznov/commission-tracker/internal/domain"
	"github.com/dvloznov/commission-tracker/internal/infra/inmemory"
	"github.com/dvloznov/commission-tracker/internal/jobs"
	jobsmem "github.com/dvloznov/commission-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/commission-tracker/internal/logger"
	"github.com/dvloznov/commission-tracker/internal/pipeline"
	"github.com/dvloznov/commission-tracker/internal/retention"
	"github.com/dvloznov/commission-tracker/internal/telemetry"
)

const imei = "356789012345678"

var fixedNow = time.Date(2025, 4, 1, 9, 30, 0, 0, time.UTC)

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeStorage) UploadFile(ctx context.Context, bucket, object, path string) error {
	return nil
}

func (f *fakeStorage) UploadBytes(ctx context.Context, bucket, object, contentType string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects["gs://"+bucket+"/"+object] = data
	return nil
}

func (f *fakeStorage) FetchFromGCS(ctx context.Context, uri string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[uri]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "object", ID: uri}
	}
	return data, nil
}

type testEnv struct {
	handler  http.Handler
	svc      *commission.Service
	storage  *fakeStorage
	registry *prometheus.Registry
}

func newTestEnv(t *testing.T, token string) *testEnv {
	t.Helper()
	log := logger.NewWithWriter(&bytes.Buffer{})
	reg := prometheus.NewRegistry()
	metrics := telemetry.New(reg)

	svc := commission.NewService(inmemory.NewRepository(), log,
		commission.WithClock(func() time.Time { return fixedNow }),
		commission.WithRecorder(metrics),
	)
	storage := &fakeStorage{objects: map[string][]byte{}}
	p := pipeline.NewImportPipeline(storage, svc)

	store := jobsmem.NewStore()
	queue := jobsmem.NewQueue(8, store, jobsmem.WithWorkers(1))
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, queue.Start(ctx, metrics.InstrumentJobs(pipeline.NewImportHandler(p, log))))
	t.Cleanup(func() {
		cancel()
		_ = queue.Stop(context.Background())
	})

	return &testEnv{
		handler: NewRouter(Config{
			Service:   svc,
			Pipeline:  p,
			Storage:   storage,
			Bucket:    "exports",
			JobStore:  store,
			Publisher: queue,
			Sweeper:   retention.NewScheduler(svc, metrics, time.Hour, log),
			Metrics:   metrics,
			Gatherer:  reg,
			AuthToken: token,
			Log:       log,
		}),
		svc:      svc,
		storage:  storage,
		registry: reg,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func payment(month int, amount float64, paid string) domain.Transaction {
	return domain.Transaction{
		DeviceID:       imei,
		PaymentDate:    paid,
		ActivationDate: "2025-01-01",
		PaymentType:    "Bounty",
		Amount:         amount,
		MonthNumber:    domain.IntPtr(month),
		SaleType:       "Upgrade",
		RepUsername:    "jdoe",
		Store:          "Main St",
	}
}

func TestRouter_Transactions(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, http.MethodPost, "/api/transactions", map[string]interface{}{
		"transactions": []domain.Transaction{payment(1, 45, "2025-01-09"), payment(3, 45, "2025-03-22")},
		"batch":        domain.BatchMeta{Filename: "manual.csv"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result domain.IngestResult
	decode(t, rec, &result)
	assert.Equal(t, 2, result.Inserted)
	require.NotEmpty(t, result.BatchID)

	rec = env.do(t, http.MethodGet, "/api/transactions?device="+imei+"&start_date=2025-02-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var txs []domain.Transaction
	decode(t, rec, &txs)
	require.Len(t, txs, 1)
	assert.Equal(t, "2025-03-22", txs[0].PaymentDate)

	rec = env.do(t, http.MethodGet, "/api/transactions?start_date=April", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPatch, "/api/transactions/"+txs[0].ID, map[string]interface{}{"amount": 50})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated domain.Transaction
	decode(t, rec, &updated)
	assert.Equal(t, 50.0, updated.Amount)

	rec = env.do(t, http.MethodPatch, "/api/transactions/"+txs[0].ID, map[string]interface{}{"amount": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/transactions/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/batches", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = env.do(t, http.MethodDelete, "/api/batches/"+result.BatchID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"deleted_transactions":2`)

	rec = env.do(t, http.MethodDelete, "/api/batches/"+result.BatchID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/transactions/"+txs[0].ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "cascade removed the row")
}

func TestRouter_UploadArchivesAndIngests(t *testing.T) {
	env := newTestEnv(t, "")
	csv := "Payment Date,Activation Date,IMEI,Amount,Payment Description\n" +
		"01/09/2025,01/01/2025," + imei + ",45.00,Residual Month 1\n" +
		"03/22/2025,01/01/2025," + imei + ",45.00,Residual Month 3\n"

	rec := env.do(t, http.MethodPost, "/api/uploads?filename=march.csv", csv)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		SourceURI string              `json:"source_uri"`
		Result    domain.IngestResult `json:"result"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, 2, resp.Result.Inserted)
	assert.True(t, strings.HasPrefix(resp.SourceURI, "gs://exports/exports/"), resp.SourceURI)
	assert.Contains(t, env.storage.objects, resp.SourceURI)

	batches, err := env.svc.ListBatches(context.Background())
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, "march.csv", batches[0].Filename)
	assert.Equal(t, resp.SourceURI, batches[0].SourceURI)

	rec = env.do(t, http.MethodPost, "/api/uploads", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/uploads", "foo,bar\n1,2\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "export without an Amount column")
}

func TestRouter_DevicesAlertsAndMetrics(t *testing.T) {
	env := newTestEnv(t, "")
	_, err := env.svc.AddTransactions(context.Background(),
		[]domain.Transaction{payment(1, 45, "2025-01-09"), payment(3, 45, "2025-03-22")}, nil)
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/devices?store=Main%20St", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var devices struct {
		Devices []domain.DeviceSummary `json:"devices"`
	}
	decode(t, rec, &devices)
	require.Len(t, devices.Devices, 1)
	assert.Equal(t, domain.StatusMissing, devices.Devices[0].Months[1].Status)

	rec = env.do(t, http.MethodGet, "/api/devices?category=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/devices/"+imei, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/devices/000000000000000", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/alerts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var alerts struct {
		Alerts []domain.Alert `json:"alerts"`
	}
	decode(t, rec, &alerts)
	require.Len(t, alerts.Alerts, 1)
	assert.Equal(t, domain.AlertSequenceGap, alerts.Alerts[0].Type)

	rec = env.do(t, http.MethodGet, "/api/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var metrics domain.Metrics
	decode(t, rec, &metrics)
	assert.Equal(t, 90.0, metrics.TotalEarned)
	assert.Equal(t, 1, metrics.OverduePayments)
	assert.Equal(t, 1, metrics.MissingMonths)
	assert.Equal(t, "April 2025", metrics.CurrentPeriod)

	rec = env.do(t, http.MethodPut, "/api/devices/"+imei+"/annotation", map[string]bool{"suspended": true, "deactivated": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/devices/"+imei+"/annotation", map[string]interface{}{"notes": "called carrier", "alerts_acknowledged": true})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/annotations?flag=notes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
	rec = env.do(t, http.MethodGet, "/api/annotations?flag=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/alerts?hide_acknowledged=true", nil)
	assert.Contains(t, rec.Body.String(), `"count":0`)

	rec = env.do(t, http.MethodPost, "/api/devices/"+imei+"/payments", map[string]interface{}{"month": 2, "amount": 45, "received": true})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = env.do(t, http.MethodPost, "/api/devices/"+imei+"/payments", map[string]interface{}{"month": 9, "amount": 45})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/devices/unknown/payments", map[string]interface{}{"month": 2, "amount": 45})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"created":false`)

	rec = env.do(t, http.MethodGet, "/api/alerts", nil)
	assert.Contains(t, rec.Body.String(), `"count":0`)

	rec = env.do(t, http.MethodPost, "/api/devices/"+imei+"/toggle-active", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_active":false`)
	rec = env.do(t, http.MethodGet, "/api/devices", nil)
	assert.Contains(t, rec.Body.String(), `"count":0`)
}

func TestRouter_ImportJobs(t *testing.T) {
	env := newTestEnv(t, "")
	env.storage.objects["gs://exports/april.csv"] = []byte("Payment Date,Activation Date,IMEI,Amount\n" +
		"01/09/2025,01/01/2025," + imei + ",45.00\n")

	rec := env.do(t, http.MethodPost, "/api/imports", map[string]string{"gcs_uri": "/tmp/april.csv"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/imports", map[string]string{"gcs_uri": "gs://exports/april.csv"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var accepted map[string]string
	decode(t, rec, &accepted)
	jobID := accepted["job_id"]
	require.NotEmpty(t, jobID)

	require.Eventually(t, func() bool {
		rec := env.do(t, http.MethodGet, "/api/jobs/"+jobID, nil)
		var job jobs.ImportJob
		if rec.Code != http.StatusOK || json.Unmarshal(rec.Body.Bytes(), &job) != nil {
			return false
		}
		return job.Status == jobs.JobStatusCompleted && job.Result != nil && job.Result.Inserted == 1
	}, 2*time.Second, 10*time.Millisecond)

	rec = env.do(t, http.MethodGet, "/api/jobs?status=completed", nil)
	assert.Contains(t, rec.Body.String(), `"count":1`)
	rec = env.do(t, http.MethodGet, "/api/jobs/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_RetentionSweep(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, http.MethodPost, "/api/retention/sweep", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"devices":[],"transactions":0}`, rec.Body.String())
}

func TestRouter_HealthMetricsAndAuth(t *testing.T) {
	env := newTestEnv(t, "s3cret")

	rec := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/devices", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/devices", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	authed := httptest.NewRecorder()
	env.handler.ServeHTTP(authed, req)
	assert.Equal(t, http.StatusOK, authed.Code)

	rec = env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `commission_tracker_http_requests_total{code="200",route="GET /api/devices"} 1`)
}
