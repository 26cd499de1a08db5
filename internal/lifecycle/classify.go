package lifecycle

import (
	"math"
	"sort"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/commission-tracker/internal/domain"
)

// Classify builds the six-month timeline and totals for one device. It
// reports false when the device has no resolvable activation date, in which
// case the device is left out of every summary.
func Classify(deviceID string, txs []domain.Transaction, today civil.Date) (domain.DeviceSummary, bool) {
	anchor := Anchor(txs)
	if anchor == nil {
		return domain.DeviceSummary{}, false
	}
	activation, ok := domain.ParseDate(anchor.ActivationDate)
	if !ok {
		return domain.DeviceSummary{}, false
	}

	summary := domain.DeviceSummary{
		DeviceID:         deviceID,
		ActivationDate:   activation,
		SaleType:         anchor.SaleType,
		RepUsername:      anchor.RepUsername,
		Store:            anchor.Store,
		IsActive:         anchor.IsActive,
		TransactionCount: len(txs),
	}

	// Index paid months first; a month's status depends on later months.
	var slots [domain.MonthsInLifecycle]domain.MonthStatus
	maxPaid := 0
	for i := range txs {
		tx := &txs[i]
		switch {
		case tx.Amount > 0:
			summary.TotalEarned += tx.Amount
		case tx.Amount < 0:
			summary.TotalWithheld += -tx.Amount
		}

		m := tx.Month()
		if tx.Amount <= 0 || m < 1 || m > domain.MonthsInLifecycle {
			continue
		}
		slot := &slots[m-1]
		if slot.Status != domain.StatusPaid {
			slot.Status = domain.StatusPaid
			slot.PaymentDate = tx.PaymentDate
			slot.TransactionID = tx.ID
			if tx.PaymentReceived != nil {
				v := *tx.PaymentReceived
				slot.PaymentReceived = &v
			}
		}
		slot.Amount += tx.Amount
		if m > maxPaid {
			maxPaid = m
		}
	}
	summary.TotalEarned = round2(summary.TotalEarned)
	summary.TotalWithheld = round2(summary.TotalWithheld)
	summary.NetAmount = round2(summary.TotalEarned - summary.TotalWithheld)

	for i := range slots {
		month := i + 1
		slot := slots[i]
		slot.Month = month
		slot.ExpectedDate, _ = ExpectedDate(activation, month)
		if slot.Status != domain.StatusPaid {
			slot.Status = unpaidStatus(slot.ExpectedDate, today, month < maxPaid)
		}
		if slot.Unpaid() {
			summary.AlertCount++
		}
		slot.Amount = round2(slot.Amount)
		summary.Months[i] = slot
	}
	if summary.TotalWithheld > 0 {
		summary.AlertCount++
	}

	return summary, true
}

// unpaidStatus is the single predicate deciding between overdue, missing
// and pending. Alerts and metrics read its result instead of re-deriving it.
func unpaidStatus(expected, today civil.Date, laterMonthPaid bool) domain.PaymentStatus {
	if !expected.Before(today) {
		return domain.StatusPending
	}
	if laterMonthPaid {
		return domain.StatusMissing
	}
	return domain.StatusOverdue
}

// GroupByDevice buckets rows by device id, keeping first-seen order both for
// devices and for the rows of each device.
func GroupByDevice(txs []domain.Transaction) ([]string, map[string][]domain.Transaction) {
	order := make([]string, 0)
	groups := make(map[string][]domain.Transaction)
	for _, tx := range txs {
		if _, seen := groups[tx.DeviceID]; !seen {
			order = append(order, tx.DeviceID)
		}
		groups[tx.DeviceID] = append(groups[tx.DeviceID], tx)
	}
	return order, groups
}

// Summarize classifies every active device that passes the filter and returns
// the summaries newest activation first.
func Summarize(txs []domain.Transaction, today civil.Date, filter domain.SummaryFilter) []domain.DeviceSummary {
	rows := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if !tx.IsActive {
			continue
		}
		if filter.Store != "" && tx.Store != filter.Store {
			continue
		}
		if filter.SaleType != "" && tx.SaleType != filter.SaleType {
			continue
		}
		if !filter.ActivationRange.IsZero() {
			d, ok := domain.ParseDate(tx.ActivationDate)
			if !ok || !filter.ActivationRange.Contains(d) {
				continue
			}
		}
		rows = append(rows, tx)
	}

	order, groups := GroupByDevice(rows)
	summaries := make([]domain.DeviceSummary, 0, len(order))
	for _, id := range order {
		summary, ok := Classify(id, groups[id], today)
		if !ok {
			continue
		}
		switch filter.Category {
		case domain.SummaryOverdue:
			if !summary.HasUnpaid() {
				continue
			}
		case domain.SummaryWithheld:
			if summary.TotalWithheld == 0 {
				continue
			}
		}
		summaries = append(summaries, summary)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[j].ActivationDate.Before(summaries[i].ActivationDate)
	})
	return summaries
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
