package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/commission-tracker/internal/api/middleware"
	"github.com/dvloznov/commission-tracker/internal/commission"
	"github.com/dvloznov/commission-tracker/internal/domain"
)

// DevicesHandler handles device lifecycle and annotation endpoints.
type DevicesHandler struct {
	svc *commission.Service
	log zerolog.Logger
}

// NewDevicesHandler creates a new devices handler.
func NewDevicesHandler(svc *commission.Service, log zerolog.Logger) *DevicesHandler {
	return &DevicesHandler{
		svc: svc,
		log: log,
	}
}

// ListDevices handles GET /api/devices
func (h *DevicesHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	activation, err := domain.ParseDateRange(query.Get("activation_start"), query.Get("activation_end"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to list devices")
		return
	}
	category, err := domain.ParseSummaryCategory(query.Get("category"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to list devices")
		return
	}

	summaries, err := h.svc.Summaries(r.Context(), domain.SummaryFilter{
		Store:           query.Get("store"),
		SaleType:        query.Get("sale_type"),
		ActivationRange: activation,
		Category:        category,
	})
	if err != nil {
		writeServiceError(w, r, err, "Failed to list devices")
		return
	}
	if summaries == nil {
		summaries = []domain.DeviceSummary{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"devices": summaries,
		"count":   len(summaries),
	})
}

// GetDevice handles GET /api/devices/{imei}
func (h *DevicesHandler) GetDevice(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.Device(r.Context(), r.PathValue("imei"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to get device")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, detail)
}

// ToggleActive handles POST /api/devices/{imei}/toggle-active
func (h *DevicesHandler) ToggleActive(w http.ResponseWriter, r *http.Request) {
	imei := r.PathValue("imei")
	active, err := h.svc.ToggleDeviceActive(r.Context(), imei)
	if err != nil {
		writeServiceError(w, r, err, "Failed to toggle device")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"device_id": imei,
		"is_active": active,
	})
}

// AddPayment handles POST /api/devices/{imei}/payments
func (h *DevicesHandler) AddPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Month    int     `json:"month"`
		Amount   float64 `json:"amount"`
		Received bool    `json:"received"`
		Date     string  `json:"date,omitempty"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	tx, err := h.svc.AddManualMonthPayment(r.Context(), commission.ManualPayment{
		DeviceID: r.PathValue("imei"),
		Month:    req.Month,
		Amount:   req.Amount,
		Received: req.Received,
		Date:     req.Date,
	})
	if err != nil {
		writeServiceError(w, r, err, "Failed to add payment")
		return
	}
	if tx == nil {
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"created": false})
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"created":     true,
		"transaction": tx,
	})
}

// GetAnnotation handles GET /api/devices/{imei}/annotation
func (h *DevicesHandler) GetAnnotation(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.GetAnnotation(r.Context(), r.PathValue("imei"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to get annotation")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, a)
}

// SetAnnotation handles PUT /api/devices/{imei}/annotation
func (h *DevicesHandler) SetAnnotation(w http.ResponseWriter, r *http.Request) {
	var patch domain.AnnotationPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	a, err := h.svc.SetAnnotation(r.Context(), r.PathValue("imei"), patch)
	if err != nil {
		writeServiceError(w, r, err, "Failed to save annotation")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, a)
}

// ListAnnotations handles GET /api/annotations
func (h *DevicesHandler) ListAnnotations(w http.ResponseWriter, r *http.Request) {
	flag, err := domain.ParseAnnotationFlag(r.URL.Query().Get("flag"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to list annotations")
		return
	}

	annotations, err := h.svc.ListAnnotations(r.Context(), flag)
	if err != nil {
		writeServiceError(w, r, err, "Failed to list annotations")
		return
	}
	if annotations == nil {
		annotations = []domain.DeviceAnnotation{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"annotations": annotations,
		"count":       len(annotations),
	})
}
