package bigquery

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/commission-tracker/internal/domain"
)

func TestTransactionRowRoundTrip(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tx := domain.Transaction{
		ID:              "tx-1",
		DeviceID:        "356789012345678",
		PaymentDate:     "2025-02-10",
		ActivationDate:  "2025-01-01",
		PaymentType:     "Bounty",
		Amount:          45.1,
		Description:     "Residual Month 2",
		MonthNumber:     domain.IntPtr(2),
		SaleType:        "Upgrade",
		Store:           "Main St",
		IsActive:        true,
		PaymentReceived: domain.BoolPtr(false),
		SourceFileID:    "batch-1",
		CreatedAt:       created,
	}

	row := toTransactionRow(tx)
	assert.Equal(t, "451/10", row.Amount.String())
	assert.True(t, row.PaymentDate.Valid)
	assert.False(t, row.RepUsername.Valid, "empty strings are NULL")
	assert.Equal(t, int64(2), row.MonthNumber.Int64)

	got := row.toDomain()
	assert.Equal(t, tx, got)
}

func TestTransactionRow_Nulls(t *testing.T) {
	row := toTransactionRow(domain.Transaction{ID: "x", DeviceID: "d", Amount: -12, PaymentDate: "garbage"})
	assert.False(t, row.PaymentDate.Valid)
	assert.False(t, row.MonthNumber.Valid)
	assert.False(t, row.PaymentReceived.Valid)

	tx := row.toDomain()
	assert.Empty(t, tx.PaymentDate)
	assert.Nil(t, tx.MonthNumber)
	assert.Nil(t, tx.PaymentReceived)
	assert.Equal(t, -12.0, tx.Amount)
}

func TestAnnotationAndBatchRows(t *testing.T) {
	a := domain.DeviceAnnotation{DeviceID: "d", Notes: "n", Suspended: true, CustomerEmail: "a@b.c"}
	assert.Equal(t, a, toAnnotationRow(a).toDomain())

	b := domain.UploadBatch{ID: "b", Filename: "march.csv", RecordCount: 3, TotalAmount: 132.75}
	assert.Equal(t, b, toBatchRow(b).toDomain())
}

func TestBuildTransactionQuery(t *testing.T) {
	table := qualifiedTable("proj", "commissions", transactionsTable)
	assert.Equal(t, "`proj.commissions.transactions`", table)

	sql, params := buildTransactionQuery(table, domain.TransactionFilter{})
	assert.NotContains(t, sql, "WHERE")
	assert.Empty(t, params)

	sql, params = buildTransactionQuery(table, domain.TransactionFilter{
		DeviceID:     "d",
		Store:        "Main St",
		PaymentRange: domain.DateRange{Start: civil.Date{Year: 2025, Month: 1, Day: 1}},
		ActiveOnly:   true,
	})
	require.Len(t, params, 3)
	assert.Contains(t, sql, "imei = @imei")
	assert.Contains(t, sql, "store = @store")
	assert.Contains(t, sql, "payment_date >= @start_date")
	assert.NotContains(t, sql, "@end_date")
	assert.True(t, strings.Contains(sql, "AND is_active"))
	assert.Contains(t, sql, "insert_seq")
	assert.True(t, strings.HasSuffix(sql, "ORDER BY created_ts, insert_seq, transaction_id"))
}

func TestEncodeTransactionLoad_KeepsCallOrder(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		{ID: "zzz", DeviceID: "d", Amount: 45.1, Store: "Main St", IsActive: true, CreatedAt: created},
		{ID: "aaa", DeviceID: "d", Amount: -12, ActivationDate: "2025-01-01", PaymentDate: "garbage",
			MonthNumber: domain.IntPtr(2), PaymentReceived: domain.BoolPtr(false), CreatedAt: created},
	}

	data, err := encodeTransactionLoad(txs)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var first, second map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))

	assert.Equal(t, "zzz", first["transaction_id"])
	assert.Equal(t, 0.0, first["insert_seq"])
	assert.Equal(t, "aaa", second["transaction_id"])
	assert.Equal(t, 1.0, second["insert_seq"])
	assert.Equal(t, first["created_ts"], second["created_ts"])
	assert.Equal(t, "2025-03-01T12:00:00Z", first["created_ts"])

	assert.Equal(t, "45.1", first["amount"])
	assert.Equal(t, "Main St", first["store"])
	assert.Nil(t, first["activation_date"])
	assert.Nil(t, first["month_number"])
	assert.Nil(t, first["payment_received"])

	assert.Equal(t, "-12", second["amount"])
	assert.Equal(t, "2025-01-01", second["activation_date"])
	assert.Nil(t, second["payment_date"], "unparseable dates load as NULL")
	assert.Equal(t, 2.0, second["month_number"])
	assert.Equal(t, false, second["payment_received"])
}

func TestNumericString(t *testing.T) {
	assert.Equal(t, "45.1", numericString(ratOf(45.1)))
	assert.Equal(t, "-0.25", numericString(ratOf(-0.25)))
	assert.Equal(t, "100", numericString(ratOf(100)))
	assert.Equal(t, "0", numericString(nil))
}
