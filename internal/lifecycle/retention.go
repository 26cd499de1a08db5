package lifecycle

import (
	"cloud.google.com/go/civil"

	"github.com/dvloznov/commission-tracker/internal/domain"
)

// RetentionDays is how long a fully paid device is kept after its last payout.
const RetentionDays = 90

// RetentionEligible reports whether a device has completed its lifecycle and
// aged out: every month 1..6 has a received positive payment, and the latest
// month 6 payment posted more than RetentionDays before today.
func RetentionEligible(txs []domain.Transaction, today civil.Date) bool {
	var received [domain.MonthsInLifecycle]bool
	var lastPayout civil.Date
	for i := range txs {
		tx := &txs[i]
		m := tx.Month()
		if m < 1 || m > domain.MonthsInLifecycle || !tx.CountsAsReceived() {
			continue
		}
		received[m-1] = true
		if m == domain.MonthsInLifecycle {
			if d, ok := domain.ParseDate(tx.PaymentDate); ok && d.After(lastPayout) {
				lastPayout = d
			}
		}
	}
	for _, ok := range received {
		if !ok {
			return false
		}
	}
	if lastPayout.IsZero() {
		return false
	}
	return today.DaysSince(lastPayout) > RetentionDays
}

// EligibleDevices returns the ids of devices ready for purge, in first-seen order.
func EligibleDevices(txs []domain.Transaction, today civil.Date) []string {
	order, groups := GroupByDevice(txs)
	var ids []string
	for _, id := range order {
		if RetentionEligible(groups[id], today) {
			ids = append(ids, id)
		}
	}
	return ids
}
