package bigquery

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/commission-tracker/internal/domain"
)

const transactionColumns = `
	transaction_id,
	imei,
	payment_date,
	activation_date,
	payment_type,
	amount,
	payment_description,
	adjustment_reason,
	month_number,
	sale_type,
	rep_username,
	store,
	is_active,
	manually_entered,
	payment_received,
	source_file_id,
	created_ts,
	insert_seq`

// buildTransactionQuery renders the SELECT for filter. Rows come back in
// insertion order: by insert call, then by position within the call.
func buildTransactionQuery(table string, filter domain.TransactionFilter) (string, []bigquery.QueryParameter) {
	var where []string
	var params []bigquery.QueryParameter

	if filter.DeviceID != "" {
		where = append(where, "imei = @imei")
		params = append(params, bigquery.QueryParameter{Name: "imei", Value: filter.DeviceID})
	}
	if filter.Store != "" {
		where = append(where, "store = @store")
		params = append(params, bigquery.QueryParameter{Name: "store", Value: filter.Store})
	}
	if filter.SourceFileID != "" {
		where = append(where, "source_file_id = @source_file_id")
		params = append(params, bigquery.QueryParameter{Name: "source_file_id", Value: filter.SourceFileID})
	}
	if !filter.PaymentRange.Start.IsZero() {
		where = append(where, "payment_date >= @start_date")
		params = append(params, bigquery.QueryParameter{Name: "start_date", Value: filter.PaymentRange.Start})
	}
	if !filter.PaymentRange.End.IsZero() {
		where = append(where, "payment_date <= @end_date")
		params = append(params, bigquery.QueryParameter{Name: "end_date", Value: filter.PaymentRange.End})
	}
	if filter.ActiveOnly {
		where = append(where, "is_active")
	}

	var sb strings.Builder
	sb.WriteString("SELECT")
	sb.WriteString(transactionColumns)
	sb.WriteString("\n\tFROM ")
	sb.WriteString(table)
	if len(where) > 0 {
		sb.WriteString("\n\tWHERE ")
		sb.WriteString(strings.Join(where, "\n\t  AND "))
	}
	sb.WriteString("\n\tORDER BY created_ts, insert_seq, transaction_id")
	return sb.String(), params
}

// ListTransactions implements commission.Repository.
func (r *Repository) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	sql, params := buildTransactionQuery(r.table(transactionsTable), filter)
	return r.queryTransactions(ctx, "ListTransactions", sql, params)
}

func (r *Repository) queryTransactions(ctx context.Context, op, sql string, params []bigquery.QueryParameter) ([]domain.Transaction, error) {
	q := r.client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: query read: %w", op, err)
	}

	txs := make([]domain.Transaction, 0)
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: iter next: %w", op, err)
		}
		txs = append(txs, row.toDomain())
	}
	return txs, nil
}

// GetTransaction implements commission.Repository.
func (r *Repository) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	sql := "SELECT" + transactionColumns + "\n\tFROM " + r.table(transactionsTable) +
		"\n\tWHERE transaction_id = @transaction_id\n\tLIMIT 1"
	txs, err := r.queryTransactions(ctx, "GetTransaction", sql, []bigquery.QueryParameter{
		{Name: "transaction_id", Value: id},
	})
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, &domain.NotFoundError{Kind: "transaction", ID: id}
	}
	return &txs[0], nil
}

// InsertTransactions implements commission.Repository. Rows are written
// with a load job rather than streamed: the job is all-or-nothing and
// loaded rows can be updated or deleted by DML immediately.
func (r *Repository) InsertTransactions(ctx context.Context, txs []domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	data, err := encodeTransactionLoad(txs)
	if err != nil {
		return fmt.Errorf("InsertTransactions: encoding rows: %w", err)
	}

	source := bigquery.NewReaderSource(bytes.NewReader(data))
	source.SourceFormat = bigquery.JSON

	loader := r.client.DatasetInProject(r.projectID, r.datasetID).Table(transactionsTable).LoaderFrom(source)
	loader.WriteDisposition = bigquery.WriteAppend
	loader.CreateDisposition = bigquery.CreateNever

	job, err := loader.Run(ctx)
	if err != nil {
		return fmt.Errorf("InsertTransactions: starting load job: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("InsertTransactions: waiting for load job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("InsertTransactions: load job: %w", err)
	}
	return nil
}

// UpdateTransaction implements commission.Repository.
func (r *Repository) UpdateTransaction(ctx context.Context, tx domain.Transaction) error {
	row := toTransactionRow(tx)
	n, err := r.exec(ctx, "UpdateTransaction", `
		UPDATE `+r.table(transactionsTable)+`
		SET
			imei = @imei,
			payment_date = @payment_date,
			activation_date = @activation_date,
			payment_type = @payment_type,
			amount = @amount,
			payment_description = @payment_description,
			adjustment_reason = @adjustment_reason,
			month_number = @month_number,
			sale_type = @sale_type,
			rep_username = @rep_username,
			store = @store,
			is_active = @is_active,
			payment_received = @payment_received
		WHERE transaction_id = @transaction_id
	`, []bigquery.QueryParameter{
		{Name: "transaction_id", Value: row.TransactionID},
		{Name: "imei", Value: row.IMEI},
		{Name: "payment_date", Value: row.PaymentDate},
		{Name: "activation_date", Value: row.ActivationDate},
		{Name: "payment_type", Value: row.PaymentType},
		{Name: "amount", Value: row.Amount},
		{Name: "payment_description", Value: row.PaymentDescription},
		{Name: "adjustment_reason", Value: row.AdjustmentReason},
		{Name: "month_number", Value: row.MonthNumber},
		{Name: "sale_type", Value: row.SaleType},
		{Name: "rep_username", Value: row.RepUsername},
		{Name: "store", Value: row.Store},
		{Name: "is_active", Value: row.IsActive},
		{Name: "payment_received", Value: row.PaymentReceived},
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return &domain.NotFoundError{Kind: "transaction", ID: tx.ID}
	}
	return nil
}

// DeleteTransaction implements commission.Repository.
func (r *Repository) DeleteTransaction(ctx context.Context, id string) error {
	n, err := r.exec(ctx, "DeleteTransaction", `
		DELETE FROM `+r.table(transactionsTable)+`
		WHERE transaction_id = @transaction_id
	`, []bigquery.QueryParameter{
		{Name: "transaction_id", Value: id},
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return &domain.NotFoundError{Kind: "transaction", ID: id}
	}
	return nil
}

// DeleteTransactionsByBatch implements commission.Repository.
func (r *Repository) DeleteTransactionsByBatch(ctx context.Context, batchID string) (int, error) {
	n, err := r.exec(ctx, "DeleteTransactionsByBatch", `
		DELETE FROM `+r.table(transactionsTable)+`
		WHERE source_file_id = @source_file_id
	`, []bigquery.QueryParameter{
		{Name: "source_file_id", Value: batchID},
	})
	return int(n), err
}

// DeleteTransactionsByDevice implements commission.Repository.
func (r *Repository) DeleteTransactionsByDevice(ctx context.Context, deviceIDs []string) (int, error) {
	if len(deviceIDs) == 0 {
		return 0, nil
	}
	n, err := r.exec(ctx, "DeleteTransactionsByDevice", `
		DELETE FROM `+r.table(transactionsTable)+`
		WHERE imei IN UNNEST(@imeis)
	`, []bigquery.QueryParameter{
		{Name: "imeis", Value: deviceIDs},
	})
	return int(n), err
}

// SetDeviceActive implements commission.Repository.
func (r *Repository) SetDeviceActive(ctx context.Context, deviceID string, active bool) (int, error) {
	n, err := r.exec(ctx, "SetDeviceActive", `
		UPDATE `+r.table(transactionsTable)+`
		SET is_active = @is_active
		WHERE imei = @imei
	`, []bigquery.QueryParameter{
		{Name: "imei", Value: deviceID},
		{Name: "is_active", Value: active},
	})
	return int(n), err
}
