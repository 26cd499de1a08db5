package commission

import (
	"context"
	"fmt"

	"github.com/dvloznov/commission-tracker/internal/domain"
	"github.com/dvloznov/commission-tracker/internal/lifecycle"
)

// PurgeResult reports what a retention sweep removed.
type PurgeResult struct {
	Devices      []string `json:"devices"`
	Transactions int      `json:"transactions"`
}

// PurgeCompletedDevices deletes every transaction of devices whose six
// payouts were all received and whose month 6 payment is older than the
// retention window. Annotations are kept.
func (s *Service) PurgeCompletedDevices(ctx context.Context) (PurgeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result PurgeResult
	txs, err := s.repo.ListTransactions(ctx, domain.TransactionFilter{})
	if err != nil {
		return result, fmt.Errorf("PurgeCompletedDevices: listing rows: %w", err)
	}

	ids := lifecycle.EligibleDevices(txs, s.Today())
	if len(ids) == 0 {
		s.log.Debug().Msg("No devices eligible for retention purge")
		return result, nil
	}

	n, err := s.repo.DeleteTransactionsByDevice(ctx, ids)
	if err != nil {
		return result, fmt.Errorf("PurgeCompletedDevices: deleting rows: %w", err)
	}
	result.Devices = ids
	result.Transactions = n

	if s.recorder != nil {
		s.recorder.DevicesPurged(len(ids), n)
	}
	s.log.Info().Int("devices", len(ids)).Int("transactions", n).Msg("Completed devices purged")
	return result, nil
}
