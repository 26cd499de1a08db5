package lifecycle

import (
	"time"

	"github.com/dvloznov/commission-tracker/internal/domain"
)

const (
	periodDayLayout   = "Jan 2, 2006"
	periodMonthLayout = "January 2006"
)

// ComputeMetrics aggregates the dashboard totals.
//
// active must hold only active rows. Totals, unique devices and the negative
// count use the rows passing filter; overdue payments are counted over
// summaries, which the caller builds from the unfiltered active set.
func ComputeMetrics(active []domain.Transaction, summaries []domain.DeviceSummary, alerts []domain.Alert, filter domain.MetricsFilter, now time.Time) domain.Metrics {
	var m domain.Metrics
	devices := make(map[string]struct{})

	for i := range active {
		tx := &active[i]
		if !metricsRowMatches(tx, filter) {
			continue
		}
		devices[tx.DeviceID] = struct{}{}
		switch {
		case tx.Amount > 0:
			m.TotalEarned += tx.Amount
		case tx.Amount < 0:
			m.TotalWithheld += -tx.Amount
			m.NegativeCount++
		}
	}
	m.TotalEarned = round2(m.TotalEarned)
	m.TotalWithheld = round2(m.TotalWithheld)
	m.NetCommission = round2(m.TotalEarned - m.TotalWithheld)
	m.UniqueDevices = len(devices)

	for _, s := range summaries {
		for _, month := range s.Months {
			if month.Unpaid() {
				m.OverduePayments++
			}
		}
	}
	m.MissingMonths = CountByType(alerts, domain.AlertSequenceGap)
	m.CurrentPeriod = PeriodLabel(filter.PaymentRange, now)
	return m
}

func metricsRowMatches(tx *domain.Transaction, filter domain.MetricsFilter) bool {
	if !filter.PaymentRange.IsZero() {
		d, ok := domain.ParseDate(tx.PaymentDate)
		if !ok || !filter.PaymentRange.Contains(d) {
			return false
		}
	}
	if filter.Store != "" && tx.Store != filter.Store {
		return false
	}
	switch filter.Category {
	case domain.MetricsEarned:
		return tx.Amount > 0
	case domain.MetricsWithheld:
		return tx.Amount < 0
	}
	return true
}

// PeriodLabel renders "Jan 2, 2006 - Feb 3, 2006" for a bounded range and
// the calendar month of now otherwise. A half-open range shows only its bound.
func PeriodLabel(r domain.DateRange, now time.Time) string {
	switch {
	case !r.Start.IsZero() && !r.End.IsZero():
		return r.Start.In(time.UTC).Format(periodDayLayout) + " - " + r.End.In(time.UTC).Format(periodDayLayout)
	case !r.Start.IsZero():
		return "Since " + r.Start.In(time.UTC).Format(periodDayLayout)
	case !r.End.IsZero():
		return "Until " + r.End.In(time.UTC).Format(periodDayLayout)
	}
	return now.Format(periodMonthLayout)
}
