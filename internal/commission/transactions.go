package commission

import (
	"context"
	"fmt"

	"github.com/dvloznov/commission-tracker/internal/domain"
)

// UpdateTransaction merges patch into the stored row and returns the result.
func (s *Service) UpdateTransaction(ctx context.Context, id string, patch domain.TransactionPatch) (*domain.Transaction, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("UpdateTransaction: %w", err)
	}
	patch.Apply(tx)
	if err := s.repo.UpdateTransaction(ctx, *tx); err != nil {
		return nil, fmt.Errorf("UpdateTransaction: saving: %w", err)
	}

	s.log.Info().Str("transaction_id", id).Str("device_id", tx.DeviceID).Msg("Transaction updated")
	return tx, nil
}

// DeleteTransaction removes a single row.
func (s *Service) DeleteTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	s.log.Info().Str("transaction_id", id).Msg("Transaction deleted")
	return nil
}

// GetTransaction returns one row.
func (s *Service) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	return tx, nil
}

// ListTransactions returns rows matching filter in insertion order.
func (s *Service) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs, err := s.repo.ListTransactions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	return txs, nil
}

// DeviceTransactions returns every row of a device, active or not.
func (s *Service) DeviceTransactions(ctx context.Context, deviceID string) ([]domain.Transaction, error) {
	return s.ListTransactions(ctx, domain.TransactionFilter{DeviceID: deviceID})
}
