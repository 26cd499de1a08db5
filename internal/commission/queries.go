package commission

import (
	"context"
	"fmt"

	"github.com/dvloznov/commission-tracker/internal/domain"
	"github.com/dvloznov/commission-tracker/internal/lifecycle"
)

// Summaries classifies every active device passing filter, newest activation first.
func (s *Service) Summaries(ctx context.Context, filter domain.SummaryFilter) ([]domain.DeviceSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs, err := s.repo.ListTransactions(ctx, domain.TransactionFilter{ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("Summaries: %w", err)
	}
	return lifecycle.Summarize(txs, s.Today(), filter), nil
}

// DeviceDetail is everything known about one device.
type DeviceDetail struct {
	DeviceID   string                  `json:"device_id"`
	Summary    *domain.DeviceSummary   `json:"summary"`
	Rows       []domain.Transaction    `json:"transactions"`
	Annotation domain.DeviceAnnotation `json:"annotation"`
	Alerts     []domain.Alert          `json:"alerts"`
}

// Device returns the detail view of a device. Inactive devices are still
// classified here; Summary is nil when no activation date resolves.
func (s *Service) Device(ctx context.Context, deviceID string) (*DeviceDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs, err := s.repo.ListTransactions(ctx, domain.TransactionFilter{DeviceID: deviceID})
	if err != nil {
		return nil, fmt.Errorf("Device: listing rows: %w", err)
	}
	if len(txs) == 0 {
		return nil, &domain.NotFoundError{Kind: "device", ID: deviceID}
	}
	annotations, err := s.repo.ListAnnotations(ctx)
	if err != nil {
		return nil, fmt.Errorf("Device: listing annotations: %w", err)
	}

	detail := &DeviceDetail{
		DeviceID:   deviceID,
		Rows:       txs,
		Annotation: annotations[deviceID],
		Alerts:     []domain.Alert{},
	}
	detail.Annotation.DeviceID = deviceID

	today := s.Today()
	if summary, ok := lifecycle.Classify(deviceID, txs, today); ok {
		detail.Summary = &summary
		if summary.IsActive {
			detail.Alerts = lifecycle.DeriveAlerts([]domain.DeviceSummary{summary}, annotations, today)
		}
	}
	return detail, nil
}

// AlertFilter narrows the alert list.
type AlertFilter struct {
	DeviceID string
	Type     domain.AlertType
	Severity domain.Severity
	// HideAcknowledged drops alerts of devices whose operator acknowledged them.
	HideAcknowledged bool
}

// Alerts derives alerts over all active devices.
func (s *Service) Alerts(ctx context.Context, filter AlertFilter) ([]domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs, annotations, err := s.snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("Alerts: %w", err)
	}
	today := s.Today()
	summaries := lifecycle.Summarize(txs, today, domain.SummaryFilter{})
	alerts := lifecycle.DeriveAlerts(summaries, annotations, today)

	out := alerts[:0]
	for _, a := range alerts {
		if filter.DeviceID != "" && a.DeviceID != filter.DeviceID {
			continue
		}
		if filter.Type != "" && a.Type != filter.Type {
			continue
		}
		if filter.Severity != "" && a.Severity != filter.Severity {
			continue
		}
		if filter.HideAcknowledged && annotations[a.DeviceID].AlertsAcknowledged {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// Metrics computes the dashboard aggregate.
func (s *Service) Metrics(ctx context.Context, filter domain.MetricsFilter) (domain.Metrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs, annotations, err := s.snapshot(ctx)
	if err != nil {
		return domain.Metrics{}, fmt.Errorf("Metrics: %w", err)
	}
	today := s.Today()
	active := activeOnly(txs)
	summaries := lifecycle.Summarize(active, today, domain.SummaryFilter{})
	alerts := lifecycle.DeriveAlerts(summaries, annotations, today)

	m := lifecycle.ComputeMetrics(active, summaries, alerts, filter, s.now())
	m.Annotations = domain.CountAnnotations(annotations)
	return m, nil
}
