package domain

import (
	"strings"

	"cloud.google.com/go/civil"
)

// PaymentStatus is the classification of one scheduled month.
type PaymentStatus string

const (
	StatusPaid    PaymentStatus = "paid"
	StatusOverdue PaymentStatus = "overdue"
	StatusPending PaymentStatus = "pending"
	// StatusMissing is an unpaid past-due month followed by a paid later month.
	StatusMissing PaymentStatus = "missing"
)

// MonthStatus is one slot of a device's payout timeline.
type MonthStatus struct {
	Month           int           `json:"month"`
	ExpectedDate    civil.Date    `json:"expected_date"`
	Status          PaymentStatus `json:"status"`
	PaymentDate     string        `json:"payment_date,omitempty"`
	Amount          float64       `json:"amount,omitempty"`
	TransactionID   string        `json:"transaction_id,omitempty"`
	PaymentReceived *bool         `json:"payment_received,omitempty"`
}

// Unpaid reports whether the month counts toward overdue totals.
func (m MonthStatus) Unpaid() bool {
	return m.Status == StatusOverdue || m.Status == StatusMissing
}

// DeviceSummary is the classified lifecycle of one device.
type DeviceSummary struct {
	DeviceID         string                         `json:"device_id"`
	ActivationDate   civil.Date                     `json:"activation_date"`
	SaleType         string                         `json:"sale_type"`
	RepUsername      string                         `json:"rep_username"`
	Store            string                         `json:"store"`
	Months           [MonthsInLifecycle]MonthStatus `json:"months"`
	TotalEarned      float64                        `json:"total_earned"`
	TotalWithheld    float64                        `json:"total_withheld"`
	NetAmount        float64                        `json:"net_amount"`
	AlertCount       int                            `json:"alert_count"`
	IsActive         bool                           `json:"is_active"`
	TransactionCount int                            `json:"transaction_count"`
}

// HasUnpaid reports whether any month is overdue or missing.
func (s *DeviceSummary) HasUnpaid() bool {
	for _, m := range s.Months {
		if m.Unpaid() {
			return true
		}
	}
	return false
}

// SummaryCategory narrows summaries to devices needing attention.
type SummaryCategory string

const (
	SummaryAll      SummaryCategory = ""
	SummaryOverdue  SummaryCategory = "overdue"
	SummaryWithheld SummaryCategory = "withheld"
)

// SummaryFilter is applied to the active rows before grouping.
type SummaryFilter struct {
	Store           string
	SaleType        string
	ActivationRange DateRange
	Category        SummaryCategory
}

// ParseSummaryCategory accepts "", "overdue" and "withheld".
func ParseSummaryCategory(s string) (SummaryCategory, error) {
	switch c := SummaryCategory(strings.ToLower(strings.TrimSpace(s))); c {
	case SummaryAll, SummaryOverdue, SummaryWithheld:
		return c, nil
	}
	return "", &ValidationError{Field: "category", Reason: "expected overdue or withheld"}
}

// AlertType names the condition an alert was derived from.
type AlertType string

const (
	AlertSequenceGap AlertType = "sequence_gap"
	AlertOverdue     AlertType = "overdue"
	AlertNegative    AlertType = "negative"
)

// Severity orders alerts; lower rank sorts first.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Rank returns the sort position of the severity.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 2
	}
	return 3
}

// Alert is a derived, never stored, notice about one device.
type Alert struct {
	ID             string      `json:"id"`
	DeviceID       string      `json:"device_id"`
	Type           AlertType   `json:"type"`
	Severity       Severity    `json:"severity"`
	Message        string      `json:"message"`
	ExpectedMonth  int         `json:"expected_month,omitempty"`
	ExpectedDate   *civil.Date `json:"expected_date,omitempty"`
	ActivationDate civil.Date  `json:"activation_date"`
	DaysOverdue    int         `json:"days_overdue,omitempty"`
	Amount         float64     `json:"amount,omitempty"`
}

// MetricsCategory restricts the metrics totals to one sign of amount.
type MetricsCategory string

const (
	MetricsAll      MetricsCategory = ""
	MetricsEarned   MetricsCategory = "earned"
	MetricsWithheld MetricsCategory = "withheld"
)

// ParseMetricsCategory accepts "", "earned" and "withheld".
func ParseMetricsCategory(s string) (MetricsCategory, error) {
	switch c := MetricsCategory(strings.ToLower(strings.TrimSpace(s))); c {
	case MetricsAll, MetricsEarned, MetricsWithheld:
		return c, nil
	}
	return "", &ValidationError{Field: "category", Reason: "expected earned or withheld"}
}

// MetricsFilter applies to the active transaction set.
type MetricsFilter struct {
	PaymentRange DateRange
	Store        string
	Category     MetricsCategory
}

// Metrics is the dashboard aggregate.
type Metrics struct {
	TotalEarned     float64          `json:"total_earned"`
	TotalWithheld   float64          `json:"total_withheld"`
	NetCommission   float64          `json:"net_commission"`
	UniqueDevices   int              `json:"unique_imeis"`
	NegativeCount   int              `json:"negative_count"`
	OverduePayments int              `json:"overdue_payments"`
	MissingMonths   int              `json:"missing_months"`
	CurrentPeriod   string           `json:"current_period"`
	Annotations     AnnotationCounts `json:"annotations"`
}
