package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/commission-tracker/internal/api/middleware"
	"github.com/dvloznov/commission-tracker/internal/gcsuploader"
	"github.com/dvloznov/commission-tracker/internal/pipeline"
)

const maxUploadBytes = 32 << 20

// UploadsHandler accepts commission exports posted directly to the API.
type UploadsHandler struct {
	pipeline *pipeline.Pipeline
	storage  gcsuploader.StorageService
	bucket   string
	log      zerolog.Logger
}

// NewUploadsHandler creates a new uploads handler. When bucket is empty the
// raw export is not archived.
func NewUploadsHandler(p *pipeline.Pipeline, storage gcsuploader.StorageService, bucket string, log zerolog.Logger) *UploadsHandler {
	return &UploadsHandler{
		pipeline: p,
		storage:  storage,
		bucket:   bucket,
		log:      log,
	}
}

// Upload handles POST /api/uploads
// The body is the raw CSV export; the original name goes in ?filename=.
func (h *UploadsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filename := filepath.Base(strings.TrimSpace(r.URL.Query().Get("filename")))
	if filename == "." || filename == "/" {
		filename = "export.csv"
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	if len(data) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Request body is empty")
		return
	}

	state := &pipeline.PipelineState{Filename: filename, Data: data}

	if h.bucket != "" && h.storage != nil {
		objectName := gcsuploader.ExportObjectName(uuid.New().String(), filename, time.Now())
		if err := h.storage.UploadBytes(ctx, h.bucket, objectName, "text/csv", data); err != nil {
			writeServiceError(w, r, fmt.Errorf("archiving export: %w", err), "Failed to upload file")
			return
		}
		state.SourceURI = fmt.Sprintf("gs://%s/%s", h.bucket, objectName)
		h.log.Info().Str("gcs_uri", state.SourceURI).Int("bytes", len(data)).Msg("Export archived")
	}

	if err := h.pipeline.Execute(ctx, state); err != nil {
		writeServiceError(w, r, err, "Failed to import file")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"filename":   filename,
		"source_uri": state.SourceURI,
		"total_rows": state.Parsed.Total,
		"result":     state.Result,
	})
}
