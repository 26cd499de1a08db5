package bigquery

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strings"
	"time"

	"github.com/dvloznov/commission-tracker/internal/domain"
)

// loadTimestampLayout is accepted by BigQuery for TIMESTAMP columns in
// newline-delimited JSON loads.
const loadTimestampLayout = "2006-01-02T15:04:05.999999Z"

// numericScale is the number of fractional digits a NUMERIC column keeps.
const numericScale = 9

// transactionLoadRow is one line of a newline-delimited JSON load. Nil
// pointers encode as null.
type transactionLoadRow struct {
	TransactionID      string  `json:"transaction_id"`
	IMEI               string  `json:"imei"`
	PaymentDate        *string `json:"payment_date"`
	ActivationDate     *string `json:"activation_date"`
	PaymentType        *string `json:"payment_type"`
	Amount             string  `json:"amount"`
	PaymentDescription *string `json:"payment_description"`
	AdjustmentReason   *string `json:"adjustment_reason"`
	MonthNumber        *int64  `json:"month_number"`
	SaleType           *string `json:"sale_type"`
	RepUsername        *string `json:"rep_username"`
	Store              *string `json:"store"`
	IsActive           bool    `json:"is_active"`
	ManuallyEntered    bool    `json:"manually_entered"`
	PaymentReceived    *bool   `json:"payment_received"`
	SourceFileID       *string `json:"source_file_id"`
	CreatedTS          string  `json:"created_ts"`
	InsertSeq          int64   `json:"insert_seq"`
}

// encodeTransactionLoad renders txs as newline-delimited JSON, numbering
// the rows in the order given.
func encodeTransactionLoad(txs []domain.Transaction) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, tx := range txs {
		row := toTransactionRow(tx)
		line := transactionLoadRow{
			TransactionID:      row.TransactionID,
			IMEI:               row.IMEI,
			PaymentType:        optString(row.PaymentType.StringVal, row.PaymentType.Valid),
			Amount:             numericString(row.Amount),
			PaymentDescription: optString(row.PaymentDescription.StringVal, row.PaymentDescription.Valid),
			AdjustmentReason:   optString(row.AdjustmentReason.StringVal, row.AdjustmentReason.Valid),
			SaleType:           optString(row.SaleType.StringVal, row.SaleType.Valid),
			RepUsername:        optString(row.RepUsername.StringVal, row.RepUsername.Valid),
			Store:              optString(row.Store.StringVal, row.Store.Valid),
			IsActive:           row.IsActive,
			ManuallyEntered:    row.ManuallyEntered,
			SourceFileID:       optString(row.SourceFileID.StringVal, row.SourceFileID.Valid),
			CreatedTS:          loadTimestamp(row.CreatedTS),
			InsertSeq:          int64(i),
		}
		if row.PaymentDate.Valid {
			line.PaymentDate = optString(row.PaymentDate.Date.String(), true)
		}
		if row.ActivationDate.Valid {
			line.ActivationDate = optString(row.ActivationDate.Date.String(), true)
		}
		if row.MonthNumber.Valid {
			n := row.MonthNumber.Int64
			line.MonthNumber = &n
		}
		if row.PaymentReceived.Valid {
			b := row.PaymentReceived.Bool
			line.PaymentReceived = &b
		}
		if err := enc.Encode(line); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func optString(s string, valid bool) *string {
	if !valid {
		return nil
	}
	return &s
}

// numericString formats r as a decimal literal, e.g. 451/10 as "45.1".
func numericString(r *big.Rat) string {
	if r == nil {
		return "0"
	}
	if r.IsInt() {
		return r.Num().String()
	}
	s := strings.TrimRight(r.FloatString(numericScale), "0")
	return strings.TrimSuffix(s, ".")
}

func loadTimestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(loadTimestampLayout)
}
