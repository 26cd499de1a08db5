package bigquery

import (
	"math/big"
	"strconv"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/commission-tracker/internal/domain"
)

type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	IMEI          string `bigquery:"imei"`           // REQUIRED

	PaymentDate    bigquery.NullDate `bigquery:"payment_date"`    // NULLABLE
	ActivationDate bigquery.NullDate `bigquery:"activation_date"` // NULLABLE

	PaymentType        bigquery.NullString `bigquery:"payment_type"`
	Amount             *big.Rat            `bigquery:"amount"` // REQUIRED NUMERIC
	PaymentDescription bigquery.NullString `bigquery:"payment_description"`
	AdjustmentReason   bigquery.NullString `bigquery:"adjustment_reason"`
	MonthNumber        bigquery.NullInt64  `bigquery:"month_number"` // NULLABLE, 1..6

	SaleType    bigquery.NullString `bigquery:"sale_type"`
	RepUsername bigquery.NullString `bigquery:"rep_username"`
	Store       bigquery.NullString `bigquery:"store"`

	IsActive        bool              `bigquery:"is_active"`
	ManuallyEntered bool              `bigquery:"manually_entered"`
	PaymentReceived bigquery.NullBool `bigquery:"payment_received"` // NULL counts as received

	SourceFileID bigquery.NullString `bigquery:"source_file_id"`
	CreatedTS    time.Time           `bigquery:"created_ts"`

	// InsertSeq is the row's position within its insert call. Rows of one
	// call share created_ts, so reads order by both.
	InsertSeq bigquery.NullInt64 `bigquery:"insert_seq"` // NULL for rows loaded before 0004
}

type AnnotationRow struct {
	IMEI                string              `bigquery:"imei"`
	Notes               bigquery.NullString `bigquery:"notes"`
	WithholdingResolved bool                `bigquery:"withholding_resolved"`
	AlertsAcknowledged  bool                `bigquery:"alerts_acknowledged"`
	Suspended           bool                `bigquery:"suspended"`
	Deactivated         bool                `bigquery:"deactivated"`
	Blacklisted         bool                `bigquery:"blacklisted"`
	BYODSwap            bool                `bigquery:"byod_swap"`
	CustomerName        bigquery.NullString `bigquery:"customer_name"`
	CustomerNumber      bigquery.NullString `bigquery:"customer_number"`
	CustomerEmail       bigquery.NullString `bigquery:"customer_email"`
	UpdatedTS           time.Time           `bigquery:"updated_ts"`
}

type BatchRow struct {
	BatchID     string              `bigquery:"batch_id"`
	Filename    string              `bigquery:"filename"`
	SourceURI   bigquery.NullString `bigquery:"source_uri"`
	UploadedAt  time.Time           `bigquery:"uploaded_at"`
	RecordCount int64               `bigquery:"record_count"`
	TotalAmount *big.Rat            `bigquery:"total_amount"`
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func nullDate(s string) bigquery.NullDate {
	d, ok := domain.ParseDate(s)
	return bigquery.NullDate{Date: d, Valid: ok}
}

func dateString(d bigquery.NullDate) string {
	if !d.Valid {
		return ""
	}
	return d.Date.String()
}

func ratOf(v float64) *big.Rat {
	r, ok := new(big.Rat).SetString(strconv.FormatFloat(v, 'f', -1, 64))
	if !ok {
		return new(big.Rat)
	}
	return r
}

func floatOf(r *big.Rat) float64 {
	if r == nil {
		return 0
	}
	f, _ := r.Float64()
	return f
}

func toTransactionRow(tx domain.Transaction) *TransactionRow {
	row := &TransactionRow{
		TransactionID:      tx.ID,
		IMEI:               tx.DeviceID,
		PaymentDate:        nullDate(tx.PaymentDate),
		ActivationDate:     nullDate(tx.ActivationDate),
		PaymentType:        nullString(tx.PaymentType),
		Amount:             ratOf(tx.Amount),
		PaymentDescription: nullString(tx.Description),
		AdjustmentReason:   nullString(tx.AdjustmentReason),
		SaleType:           nullString(tx.SaleType),
		RepUsername:        nullString(tx.RepUsername),
		Store:              nullString(tx.Store),
		IsActive:           tx.IsActive,
		ManuallyEntered:    tx.ManuallyEntered,
		SourceFileID:       nullString(tx.SourceFileID),
		CreatedTS:          tx.CreatedAt,
	}
	if tx.MonthNumber != nil {
		row.MonthNumber = bigquery.NullInt64{Int64: int64(*tx.MonthNumber), Valid: true}
	}
	if tx.PaymentReceived != nil {
		row.PaymentReceived = bigquery.NullBool{Bool: *tx.PaymentReceived, Valid: true}
	}
	return row
}

func (r *TransactionRow) toDomain() domain.Transaction {
	tx := domain.Transaction{
		ID:               r.TransactionID,
		DeviceID:         r.IMEI,
		PaymentDate:      dateString(r.PaymentDate),
		ActivationDate:   dateString(r.ActivationDate),
		PaymentType:      r.PaymentType.StringVal,
		Amount:           floatOf(r.Amount),
		Description:      r.PaymentDescription.StringVal,
		AdjustmentReason: r.AdjustmentReason.StringVal,
		SaleType:         r.SaleType.StringVal,
		RepUsername:      r.RepUsername.StringVal,
		Store:            r.Store.StringVal,
		IsActive:         r.IsActive,
		ManuallyEntered:  r.ManuallyEntered,
		SourceFileID:     r.SourceFileID.StringVal,
		CreatedAt:        r.CreatedTS,
	}
	if r.MonthNumber.Valid {
		tx.MonthNumber = domain.IntPtr(int(r.MonthNumber.Int64))
	}
	if r.PaymentReceived.Valid {
		tx.PaymentReceived = domain.BoolPtr(r.PaymentReceived.Bool)
	}
	return tx
}

func toAnnotationRow(a domain.DeviceAnnotation) *AnnotationRow {
	return &AnnotationRow{
		IMEI:                a.DeviceID,
		Notes:               nullString(a.Notes),
		WithholdingResolved: a.WithholdingResolved,
		AlertsAcknowledged:  a.AlertsAcknowledged,
		Suspended:           a.Suspended,
		Deactivated:         a.Deactivated,
		Blacklisted:         a.Blacklisted,
		BYODSwap:            a.BYODSwap,
		CustomerName:        nullString(a.CustomerName),
		CustomerNumber:      nullString(a.CustomerNumber),
		CustomerEmail:       nullString(a.CustomerEmail),
		UpdatedTS:           a.UpdatedAt,
	}
}

func (r *AnnotationRow) toDomain() domain.DeviceAnnotation {
	return domain.DeviceAnnotation{
		DeviceID:            r.IMEI,
		Notes:               r.Notes.StringVal,
		WithholdingResolved: r.WithholdingResolved,
		AlertsAcknowledged:  r.AlertsAcknowledged,
		Suspended:           r.Suspended,
		Deactivated:         r.Deactivated,
		Blacklisted:         r.Blacklisted,
		BYODSwap:            r.BYODSwap,
		CustomerName:        r.CustomerName.StringVal,
		CustomerNumber:      r.CustomerNumber.StringVal,
		CustomerEmail:       r.CustomerEmail.StringVal,
		UpdatedAt:           r.UpdatedTS,
	}
}

func toBatchRow(b domain.UploadBatch) *BatchRow {
	return &BatchRow{
		BatchID:     b.ID,
		Filename:    b.Filename,
		SourceURI:   nullString(b.SourceURI),
		UploadedAt:  b.UploadedAt,
		RecordCount: int64(b.RecordCount),
		TotalAmount: ratOf(b.TotalAmount),
	}
}

func (r *BatchRow) toDomain() domain.UploadBatch {
	return domain.UploadBatch{
		ID:          r.BatchID,
		Filename:    r.Filename,
		SourceURI:   r.SourceURI.StringVal,
		UploadedAt:  r.UploadedAt,
		RecordCount: int(r.RecordCount),
		TotalAmount: floatOf(r.TotalAmount),
	}
}
