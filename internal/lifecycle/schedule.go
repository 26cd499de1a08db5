// Package lifecycle classifies a device's six monthly commission payouts and
// derives alerts, dashboard metrics and retention eligibility from the
// classification. Everything here is a pure function of its inputs.
package lifecycle

import (
	"cloud.google.com/go/civil"

	"github.com/dvloznov/commission-tracker/internal/domain"
)

const (
	// firstPayoutDays is the offset of month 1 from activation.
	firstPayoutDays = 8
	// payoutIntervalDays separates months 2 through 6.
	payoutIntervalDays = 40
)

// ExpectedDate returns the due date of the given month for a device activated
// on activation. It reports false for months outside 1..6.
func ExpectedDate(activation civil.Date, month int) (civil.Date, bool) {
	if month < 1 || month > domain.MonthsInLifecycle || !activation.IsValid() {
		return civil.Date{}, false
	}
	if month == 1 {
		return activation.AddDays(firstPayoutDays), true
	}
	return activation.AddDays((month - 1) * payoutIntervalDays), true
}

// ExpectedDateFor is ExpectedDate over a stored activation string. Missing or
// unparseable activation dates have no schedule.
func ExpectedDateFor(activation string, month int) (civil.Date, bool) {
	d, ok := domain.ParseDate(activation)
	if !ok {
		return civil.Date{}, false
	}
	return ExpectedDate(d, month)
}

// Anchor returns the row that carries the device's canonical metadata: the
// first row with a non-empty activation date, else the first row.
func Anchor(txs []domain.Transaction) *domain.Transaction {
	if len(txs) == 0 {
		return nil
	}
	for i := range txs {
		if txs[i].ActivationDate != "" {
			return &txs[i]
		}
	}
	return &txs[0]
}

// ActivationDate resolves the canonical activation date of a device's rows.
func ActivationDate(txs []domain.Transaction) (civil.Date, bool) {
	anchor := Anchor(txs)
	if anchor == nil {
		return civil.Date{}, false
	}
	return domain.ParseDate(anchor.ActivationDate)
}

// DaysOverdue is the whole number of days since expected, as of today.
func DaysOverdue(expected, today civil.Date) int {
	return today.DaysSince(expected)
}
