package commission

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/commission-tracker/internal/domain"
	"github.com/dvloznov/commission-tracker/internal/lifecycle"
)

// ToggleDeviceActive flips is_active on every row of the device to the
// opposite of its first row, so the device switches as one unit. It returns
// the new state.
func (s *Service) ToggleDeviceActive(ctx context.Context, deviceID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txs, err := s.repo.ListTransactions(ctx, domain.TransactionFilter{DeviceID: deviceID})
	if err != nil {
		return false, fmt.Errorf("ToggleDeviceActive: listing rows: %w", err)
	}
	if len(txs) == 0 {
		return false, &domain.NotFoundError{Kind: "device", ID: deviceID}
	}

	active := !txs[0].IsActive
	n, err := s.repo.SetDeviceActive(ctx, deviceID, active)
	if err != nil {
		return false, fmt.Errorf("ToggleDeviceActive: updating rows: %w", err)
	}

	s.log.Info().Str("device_id", deviceID).Bool("active", active).Int("rows", n).Msg("Device active state toggled")
	return active, nil
}

// ManualPayment is an operator-entered monthly payout.
type ManualPayment struct {
	DeviceID string  `json:"device_id"`
	Month    int     `json:"month"`
	Amount   float64 `json:"amount"`
	Received bool    `json:"received"`
	// Date defaults to today when empty.
	Date string `json:"date,omitempty"`
}

// AddManualMonthPayment records an operator-entered payment for one month,
// copying sale type, store, rep and activation date from the device's
// existing rows. It is a no-op returning (nil, nil) when the amount is zero
// or the device has no rows to anchor to.
func (s *Service) AddManualMonthPayment(ctx context.Context, p ManualPayment) (*domain.Transaction, error) {
	if p.Month < 1 || p.Month > domain.MonthsInLifecycle {
		return nil, &domain.ValidationError{Field: "month", Reason: "must be between 1 and 6"}
	}
	if p.Amount == 0 {
		return nil, nil
	}
	if p.Date != "" {
		if _, ok := domain.ParseDate(p.Date); !ok {
			return nil, &domain.ValidationError{Field: "date", Reason: "expected YYYY-MM-DD"}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	txs, err := s.repo.ListTransactions(ctx, domain.TransactionFilter{DeviceID: p.DeviceID})
	if err != nil {
		return nil, fmt.Errorf("AddManualMonthPayment: listing rows: %w", err)
	}
	anchor := lifecycle.Anchor(txs)
	if anchor == nil {
		s.log.Warn().Str("device_id", p.DeviceID).Msg("Manual payment ignored: device has no transactions")
		return nil, nil
	}

	date := p.Date
	if date == "" {
		date = s.Today().String()
	}

	tx := domain.Transaction{
		ID:              s.newID(),
		DeviceID:        p.DeviceID,
		PaymentDate:     date,
		ActivationDate:  anchor.ActivationDate,
		PaymentType:     fmt.Sprintf("%s - Month %d", anchor.SaleType, p.Month),
		Amount:          p.Amount,
		Description:     fmt.Sprintf("Manual Entry - Month %d", p.Month),
		MonthNumber:     domain.IntPtr(p.Month),
		SaleType:        anchor.SaleType,
		RepUsername:     anchor.RepUsername,
		Store:           anchor.Store,
		IsActive:        true,
		ManuallyEntered: true,
		PaymentReceived: domain.BoolPtr(p.Received),
		CreatedAt:       s.now(),
	}
	if err := s.repo.InsertTransactions(ctx, []domain.Transaction{tx}); err != nil {
		return nil, fmt.Errorf("AddManualMonthPayment: inserting: %w", err)
	}

	s.log.Info().
		Str("device_id", p.DeviceID).
		Int("month", p.Month).
		Float64("amount", p.Amount).
		Bool("received", p.Received).
		Msg("Manual month payment added")
	return &tx, nil
}

// SetAnnotation creates or merges the annotation of a device.
func (s *Service) SetAnnotation(ctx context.Context, deviceID string, patch domain.AnnotationPatch) (*domain.DeviceAnnotation, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, &domain.ValidationError{Field: "device_id", Reason: "must not be empty"}
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.repo.GetAnnotation(ctx, deviceID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		current = &domain.DeviceAnnotation{DeviceID: deviceID}
	case err != nil:
		return nil, fmt.Errorf("SetAnnotation: loading: %w", err)
	}

	patch.Apply(current)
	current.UpdatedAt = s.now()
	if err := s.repo.UpsertAnnotation(ctx, *current); err != nil {
		return nil, fmt.Errorf("SetAnnotation: saving: %w", err)
	}

	s.log.Info().Str("device_id", deviceID).Msg("Device annotation saved")
	return current, nil
}

// GetAnnotation returns the device's annotation, or an empty one when none
// has been written yet.
func (s *Service) GetAnnotation(ctx context.Context, deviceID string) (domain.DeviceAnnotation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, err := s.repo.GetAnnotation(ctx, deviceID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return domain.DeviceAnnotation{DeviceID: deviceID}, nil
	case err != nil:
		return domain.DeviceAnnotation{}, fmt.Errorf("GetAnnotation: %w", err)
	}
	return *a, nil
}

// ListAnnotations returns annotations carrying flag, most recently updated first.
func (s *Service) ListAnnotations(ctx context.Context, flag domain.AnnotationFlag) ([]domain.DeviceAnnotation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all, err := s.repo.ListAnnotations(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListAnnotations: %w", err)
	}
	out := make([]domain.DeviceAnnotation, 0, len(all))
	for _, a := range all {
		if a.Has(flag) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].DeviceID < out[j].DeviceID
	})
	return out, nil
}
