package commission

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dvloznov/commission-tracker/internal/domain"
)

func newUUID() string {
	return uuid.New().String()
}

// AddTransactions validates and deduplicates rows against the stored set and
// inserts the remainder. Rows without a device id or with a zero amount are
// skipped; rows whose (device, payment date, amount) key already exists are
// dropped as duplicates. When meta is given and at least one row was
// inserted, an upload batch is recorded and the rows point at it.
func (s *Service) AddTransactions(ctx context.Context, rows []domain.Transaction, meta *domain.BatchMeta) (domain.IngestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result domain.IngestResult

	existing, err := s.repo.ListTransactions(ctx, domain.TransactionFilter{})
	if err != nil {
		return result, fmt.Errorf("AddTransactions: listing existing rows: %w", err)
	}
	seen := make(map[string]struct{}, len(existing))
	for i := range existing {
		seen[existing[i].DedupKey()] = struct{}{}
	}

	var batchID string
	if meta != nil {
		batchID = s.newID()
	}

	now := s.now()
	inserted := make([]domain.Transaction, 0, len(rows))
	var total float64
	for _, row := range rows {
		row.DeviceID = strings.TrimSpace(row.DeviceID)
		if err := validateRow(&row); err != nil {
			s.log.Debug().Err(err).Str("device_id", row.DeviceID).Msg("Skipping invalid row")
			result.Skipped++
			continue
		}
		if _, dup := seen[row.DedupKey()]; dup {
			result.Duplicates++
			continue
		}

		row = row.Clone()
		row.ID = s.newID()
		row.IsActive = true
		row.CreatedAt = now
		if row.MonthNumber != nil && (*row.MonthNumber < 1 || *row.MonthNumber > domain.MonthsInLifecycle) {
			row.MonthNumber = nil
		}
		if batchID != "" {
			row.SourceFileID = batchID
		}
		inserted = append(inserted, row)
		total += row.Amount
	}

	if len(inserted) > 0 {
		if err := s.repo.InsertTransactions(ctx, inserted); err != nil {
			return result, fmt.Errorf("AddTransactions: inserting rows: %w", err)
		}
	}
	result.Inserted = len(inserted)

	if meta != nil && result.Inserted > 0 {
		batch := domain.UploadBatch{
			ID:          batchID,
			Filename:    meta.Filename,
			SourceURI:   meta.SourceURI,
			UploadedAt:  now,
			RecordCount: result.Inserted,
			TotalAmount: total,
		}
		// Rows are already durable; a metadata failure only loses the batch record.
		if err := s.repo.InsertBatch(ctx, batch); err != nil {
			s.log.Error().Err(err).Str("batch_id", batchID).Msg("Failed to record upload batch")
		} else {
			result.BatchID = batchID
		}
	}

	if s.recorder != nil {
		s.recorder.TransactionsIngested(result.Inserted, result.Duplicates, result.Skipped)
	}

	s.log.Info().
		Int("inserted", result.Inserted).
		Int("duplicates", result.Duplicates).
		Int("skipped", result.Skipped).
		Str("batch_id", result.BatchID).
		Msg("Transactions ingested")

	return result, nil
}

func validateRow(tx *domain.Transaction) error {
	if tx.DeviceID == "" {
		return &domain.ValidationError{Field: "device_id", Reason: "must not be empty"}
	}
	if tx.Amount == 0 {
		return &domain.ValidationError{Field: "amount", Reason: "must not be zero"}
	}
	return nil
}

// DeleteBatch removes the batch record and every transaction it imported.
func (s *Service) DeleteBatch(ctx context.Context, batchID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.repo.GetBatch(ctx, batchID); err != nil {
		return 0, fmt.Errorf("DeleteBatch: %w", err)
	}
	removed, err := s.repo.DeleteTransactionsByBatch(ctx, batchID)
	if err != nil {
		return 0, fmt.Errorf("DeleteBatch: deleting transactions: %w", err)
	}
	if err := s.repo.DeleteBatch(ctx, batchID); err != nil {
		return removed, fmt.Errorf("DeleteBatch: deleting batch: %w", err)
	}

	s.log.Info().Str("batch_id", batchID).Int("transactions", removed).Msg("Upload batch deleted")
	return removed, nil
}

// ListBatches returns upload batches, newest first.
func (s *Service) ListBatches(ctx context.Context) ([]domain.UploadBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batches, err := s.repo.ListBatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListBatches: %w", err)
	}
	return batches, nil
}
