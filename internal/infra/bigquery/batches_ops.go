package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/commission-tracker/internal/domain"
)

// InsertBatch implements commission.Repository. Batch metadata is written
// with DML rather than streamed so DeleteBatch can remove it right away.
func (r *Repository) InsertBatch(ctx context.Context, b domain.UploadBatch) error {
	row := toBatchRow(b)
	_, err := r.exec(ctx, "InsertBatch", `
		INSERT `+r.table(batchesTable)+` (
			batch_id,
			filename,
			source_uri,
			uploaded_at,
			record_count,
			total_amount
		)
		VALUES (
			@batch_id,
			@filename,
			@source_uri,
			@uploaded_at,
			@record_count,
			@total_amount
		)
	`, []bigquery.QueryParameter{
		{Name: "batch_id", Value: row.BatchID},
		{Name: "filename", Value: row.Filename},
		{Name: "source_uri", Value: row.SourceURI},
		{Name: "uploaded_at", Value: row.UploadedAt},
		{Name: "record_count", Value: row.RecordCount},
		{Name: "total_amount", Value: row.TotalAmount},
	})
	return err
}

func (r *Repository) queryBatches(ctx context.Context, op, sql string, params []bigquery.QueryParameter) ([]domain.UploadBatch, error) {
	q := r.client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: query read: %w", op, err)
	}

	batches := make([]domain.UploadBatch, 0)
	for {
		var row BatchRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: iter next: %w", op, err)
		}
		batches = append(batches, row.toDomain())
	}
	return batches, nil
}

// GetBatch implements commission.Repository.
func (r *Repository) GetBatch(ctx context.Context, id string) (*domain.UploadBatch, error) {
	batches, err := r.queryBatches(ctx, "GetBatch", `
		SELECT batch_id, filename, source_uri, uploaded_at, record_count, total_amount
		FROM `+r.table(batchesTable)+`
		WHERE batch_id = @batch_id
		LIMIT 1
	`, []bigquery.QueryParameter{
		{Name: "batch_id", Value: id},
	})
	if err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		return nil, &domain.NotFoundError{Kind: "batch", ID: id}
	}
	return &batches[0], nil
}

// DeleteBatch implements commission.Repository.
func (r *Repository) DeleteBatch(ctx context.Context, id string) error {
	n, err := r.exec(ctx, "DeleteBatch", `
		DELETE FROM `+r.table(batchesTable)+`
		WHERE batch_id = @batch_id
	`, []bigquery.QueryParameter{
		{Name: "batch_id", Value: id},
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return &domain.NotFoundError{Kind: "batch", ID: id}
	}
	return nil
}

// ListBatches implements commission.Repository.
func (r *Repository) ListBatches(ctx context.Context) ([]domain.UploadBatch, error) {
	return r.queryBatches(ctx, "ListBatches", `
		SELECT batch_id, filename, source_uri, uploaded_at, record_count, total_amount
		FROM `+r.table(batchesTable)+`
		ORDER BY uploaded_at DESC, batch_id
	`, nil)
}
