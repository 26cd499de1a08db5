package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/commission-tracker/internal/api/middleware"
	"github.com/dvloznov/commission-tracker/internal/commission"
	"github.com/dvloznov/commission-tracker/internal/domain"
)

// TransactionsHandler handles transaction and batch endpoints.
type TransactionsHandler struct {
	svc *commission.Service
	log zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(svc *commission.Service, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		svc: svc,
		log: log,
	}
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	paymentRange, err := domain.ParseDateRange(query.Get("start_date"), query.Get("end_date"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to list transactions")
		return
	}
	activeOnly, err := queryBool(r, "active")
	if err != nil {
		writeServiceError(w, r, err, "Failed to list transactions")
		return
	}

	filter := domain.TransactionFilter{
		DeviceID:     query.Get("device"),
		Store:        query.Get("store"),
		SourceFileID: query.Get("batch"),
		PaymentRange: paymentRange,
		ActiveOnly:   activeOnly,
	}
	txs, err := h.svc.ListTransactions(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err, "Failed to list transactions")
		return
	}

	// Return array directly for frontend compatibility
	if txs == nil {
		txs = []domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, txs)
}

// CreateTransactions handles POST /api/transactions
func (h *TransactionsHandler) CreateTransactions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Transactions []domain.Transaction `json:"transactions"`
		Batch        *domain.BatchMeta    `json:"batch,omitempty"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Transactions) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "transactions is required")
		return
	}

	result, err := h.svc.AddTransactions(r.Context(), req.Transactions, req.Batch)
	if err != nil {
		writeServiceError(w, r, err, "Failed to add transactions")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// GetTransaction handles GET /api/transactions/{id}
func (h *TransactionsHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.svc.GetTransaction(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to get transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// UpdateTransaction handles PATCH /api/transactions/{id}
func (h *TransactionsHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var patch domain.TransactionPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	tx, err := h.svc.UpdateTransaction(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeServiceError(w, r, err, "Failed to update transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteTransaction(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err, "Failed to delete transaction")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListBatches handles GET /api/batches
func (h *TransactionsHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := h.svc.ListBatches(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "Failed to list batches")
		return
	}
	if batches == nil {
		batches = []domain.UploadBatch{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"batches": batches,
		"count":   len(batches),
	})
}

// DeleteBatch handles DELETE /api/batches/{id}
func (h *TransactionsHandler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	removed, err := h.svc.DeleteBatch(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "Failed to delete batch")
		return
	}

	h.log.Info().Str("batch_id", id).Int("transactions", removed).Msg("Batch deleted via API")
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"batch_id":             id,
		"deleted_transactions": removed,
	})
}
