package handlers

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/commission-tracker/internal/api/middleware"
	"github.com/dvloznov/commission-tracker/internal/jobs"
)

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store     jobs.JobStore
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, publisher jobs.Publisher, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store:     store,
		publisher: publisher,
		log:       log,
	}
}

// EnqueueImport handles POST /api/imports
func (h *JobsHandler) EnqueueImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GCSURI   string `json:"gcs_uri"`
		Filename string `json:"filename,omitempty"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if !strings.HasPrefix(req.GCSURI, "gs://") {
		middleware.WriteError(w, http.StatusBadRequest, "gcs_uri must be a gs:// URI")
		return
	}

	job := &jobs.ImportJob{
		SourceURI: req.GCSURI,
		Filename:  req.Filename,
	}
	if err := h.publisher.PublishImport(r.Context(), job); err != nil {
		writeServiceError(w, r, err, "Failed to enqueue import job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("gcs_uri", req.GCSURI).Msg("Import job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  job.JobID,
		"gcs_uri": req.GCSURI,
		"status":  string(job.Status),
	})
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.store.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to get job")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		SourceURI: query.Get("gcs_uri"),
		Status:    jobs.JobStatus(query.Get("status")),
		Limit:     queryInt(r, "limit"),
		Offset:    queryInt(r, "offset"),
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
