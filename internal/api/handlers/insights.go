package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/commission-tracker/internal/api/middleware"
	"github.com/dvloznov/commission-tracker/internal/commission"
	"github.com/dvloznov/commission-tracker/internal/domain"
)

// InsightsHandler serves derived alerts and dashboard metrics.
type InsightsHandler struct {
	svc *commission.Service
	log zerolog.Logger
}

// NewInsightsHandler creates a new insights handler.
func NewInsightsHandler(svc *commission.Service, log zerolog.Logger) *InsightsHandler {
	return &InsightsHandler{
		svc: svc,
		log: log,
	}
}

// ListAlerts handles GET /api/alerts
func (h *InsightsHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	hideAck, err := queryBool(r, "hide_acknowledged")
	if err != nil {
		writeServiceError(w, r, err, "Failed to list alerts")
		return
	}

	alerts, err := h.svc.Alerts(r.Context(), commission.AlertFilter{
		DeviceID:         query.Get("device"),
		Type:             domain.AlertType(query.Get("type")),
		Severity:         domain.Severity(query.Get("severity")),
		HideAcknowledged: hideAck,
	})
	if err != nil {
		writeServiceError(w, r, err, "Failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []domain.Alert{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// GetMetrics handles GET /api/metrics
func (h *InsightsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	paymentRange, err := domain.ParseDateRange(query.Get("start_date"), query.Get("end_date"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to compute metrics")
		return
	}
	category, err := domain.ParseMetricsCategory(query.Get("category"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to compute metrics")
		return
	}

	metrics, err := h.svc.Metrics(r.Context(), domain.MetricsFilter{
		PaymentRange: paymentRange,
		Store:        query.Get("store"),
		Category:     category,
	})
	if err != nil {
		writeServiceError(w, r, err, "Failed to compute metrics")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, metrics)
}
