package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/dvloznov/commission-tracker/internal/api/middleware"
	"github.com/dvloznov/commission-tracker/internal/commission"
	"github.com/dvloznov/commission-tracker/internal/retention"
)

// SweepTrigger runs a retention sweep on demand.
type SweepTrigger interface {
	Trigger(ctx context.Context) (commission.PurgeResult, error)
}

// RetentionHandler exposes the manual retention sweep.
type RetentionHandler struct {
	sweeper SweepTrigger
}

// NewRetentionHandler creates a new retention handler.
func NewRetentionHandler(sweeper SweepTrigger) *RetentionHandler {
	return &RetentionHandler{sweeper: sweeper}
}

// Sweep handles POST /api/retention/sweep
func (h *RetentionHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.sweeper.Trigger(r.Context())
	if errors.Is(err, retention.ErrAlreadyRunning) {
		middleware.WriteError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeServiceError(w, r, err, "Retention sweep failed")
		return
	}
	if result.Devices == nil {
		result.Devices = []string{}
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}
