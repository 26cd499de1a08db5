// Package handlers implements the JSON HTTP endpoints of the commission tracker.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dvloznov/commission-tracker/internal/api/middleware"
	"github.com/dvloznov/commission-tracker/internal/domain"
	"github.com/dvloznov/commission-tracker/internal/logger"
)

const maxJSONBody = 1 << 20

// writeServiceError maps domain errors onto status codes: validation
// failures are 400, missing records 404 and everything else 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		middleware.WriteError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, domain.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, err.Error())
	default:
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("path", r.URL.Path).Msg(action)
		middleware.WriteError(w, http.StatusInternalServerError, action)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func queryBool(r *http.Request, key string) (bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &domain.ValidationError{Field: key, Reason: "expected true or false"}
	}
	return b, nil
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
