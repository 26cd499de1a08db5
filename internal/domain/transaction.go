package domain

import (
	"strconv"
	"time"
)

// MonthsInLifecycle is the number of scheduled monthly payouts per activation.
const MonthsInLifecycle = 6

// Transaction is one commission event (payment, withholding or adjustment)
// recorded against a device. Amount is signed: positive is earned commission,
// negative is a clawback.
type Transaction struct {
	ID               string  `json:"id"`
	DeviceID         string  `json:"device_id"`
	PaymentDate      string  `json:"payment_date"`
	ActivationDate   string  `json:"activation_date"`
	PaymentType      string  `json:"payment_type"`
	Amount           float64 `json:"amount"`
	Description      string  `json:"description"`
	AdjustmentReason string  `json:"adjustment_reason,omitempty"`

	// MonthNumber is nil for withholdings and adjustments not tied to a month.
	MonthNumber *int `json:"month_number"`

	SaleType    string `json:"sale_type"`
	RepUsername string `json:"rep_username"`
	Store       string `json:"store"`

	IsActive        bool `json:"is_active"`
	ManuallyEntered bool `json:"manually_entered"`

	// PaymentReceived is only set on operator-entered rows; imported rows leave it nil.
	PaymentReceived *bool `json:"payment_received,omitempty"`

	SourceFileID string    `json:"source_file_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// DedupKey returns the composite identity used to drop re-imported rows.
func (t *Transaction) DedupKey() string {
	return t.DeviceID + "|" + t.PaymentDate + "|" + strconv.FormatFloat(t.Amount, 'f', -1, 64)
}

// Month returns the month number, or 0 when the row is not tied to a month.
func (t *Transaction) Month() int {
	if t.MonthNumber == nil {
		return 0
	}
	return *t.MonthNumber
}

// CountsAsReceived reports whether a positive row satisfies its month for
// retention purposes. Rows never marked either way count as received.
func (t *Transaction) CountsAsReceived() bool {
	if t.Amount <= 0 {
		return false
	}
	return t.PaymentReceived == nil || *t.PaymentReceived
}

// TransactionPatch carries the fields of an update; nil fields are left alone.
type TransactionPatch struct {
	DeviceID         *string  `json:"device_id,omitempty"`
	PaymentDate      *string  `json:"payment_date,omitempty"`
	ActivationDate   *string  `json:"activation_date,omitempty"`
	PaymentType      *string  `json:"payment_type,omitempty"`
	Amount           *float64 `json:"amount,omitempty"`
	Description      *string  `json:"description,omitempty"`
	AdjustmentReason *string  `json:"adjustment_reason,omitempty"`
	MonthNumber      *int     `json:"month_number,omitempty"`
	ClearMonth       bool     `json:"clear_month,omitempty"`
	SaleType         *string  `json:"sale_type,omitempty"`
	RepUsername      *string  `json:"rep_username,omitempty"`
	Store            *string  `json:"store,omitempty"`
	IsActive         *bool    `json:"is_active,omitempty"`
	PaymentReceived  *bool    `json:"payment_received,omitempty"`
}

// Validate rejects patches that would leave the row structurally invalid.
func (p TransactionPatch) Validate() error {
	if p.DeviceID != nil && *p.DeviceID == "" {
		return &ValidationError{Field: "device_id", Reason: "must not be empty"}
	}
	if p.Amount != nil && *p.Amount == 0 {
		return &ValidationError{Field: "amount", Reason: "must not be zero"}
	}
	if p.MonthNumber != nil && (*p.MonthNumber < 1 || *p.MonthNumber > MonthsInLifecycle) {
		return &ValidationError{Field: "month_number", Reason: "must be between 1 and 6"}
	}
	return nil
}

// Apply merges the patch into tx.
func (p TransactionPatch) Apply(tx *Transaction) {
	setString(&tx.DeviceID, p.DeviceID)
	setString(&tx.PaymentDate, p.PaymentDate)
	setString(&tx.ActivationDate, p.ActivationDate)
	setString(&tx.PaymentType, p.PaymentType)
	setString(&tx.Description, p.Description)
	setString(&tx.AdjustmentReason, p.AdjustmentReason)
	setString(&tx.SaleType, p.SaleType)
	setString(&tx.RepUsername, p.RepUsername)
	setString(&tx.Store, p.Store)
	if p.Amount != nil {
		tx.Amount = *p.Amount
	}
	if p.ClearMonth {
		tx.MonthNumber = nil
	} else if p.MonthNumber != nil {
		m := *p.MonthNumber
		tx.MonthNumber = &m
	}
	if p.IsActive != nil {
		tx.IsActive = *p.IsActive
	}
	if p.PaymentReceived != nil {
		v := *p.PaymentReceived
		tx.PaymentReceived = &v
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// Clone returns a deep copy so callers cannot alias stored pointer fields.
func (t Transaction) Clone() Transaction {
	if t.MonthNumber != nil {
		m := *t.MonthNumber
		t.MonthNumber = &m
	}
	if t.PaymentReceived != nil {
		v := *t.PaymentReceived
		t.PaymentReceived = &v
	}
	return t
}

// TransactionFilter narrows transaction listings. Zero values match everything.
type TransactionFilter struct {
	DeviceID     string
	Store        string
	SourceFileID string
	PaymentRange DateRange
	ActiveOnly   bool
}

// Matches reports whether tx passes the filter.
func (f TransactionFilter) Matches(tx *Transaction) bool {
	if f.DeviceID != "" && tx.DeviceID != f.DeviceID {
		return false
	}
	if f.Store != "" && tx.Store != f.Store {
		return false
	}
	if f.SourceFileID != "" && tx.SourceFileID != f.SourceFileID {
		return false
	}
	if f.ActiveOnly && !tx.IsActive {
		return false
	}
	if !f.PaymentRange.IsZero() {
		d, ok := ParseDate(tx.PaymentDate)
		if !ok || !f.PaymentRange.Contains(d) {
			return false
		}
	}
	return true
}

// IntPtr is a small helper for building month numbers in literals.
func IntPtr(v int) *int {
	return &v
}

// BoolPtr is a small helper for optional flags.
func BoolPtr(v bool) *bool {
	return &v
}
