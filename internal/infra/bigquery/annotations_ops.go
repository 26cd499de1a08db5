package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/commission-tracker/internal/domain"
)

const annotationColumns = `
	imei,
	notes,
	withholding_resolved,
	alerts_acknowledged,
	suspended,
	deactivated,
	blacklisted,
	byod_swap,
	customer_name,
	customer_number,
	customer_email,
	updated_ts`

func (r *Repository) queryAnnotations(ctx context.Context, op, sql string, params []bigquery.QueryParameter) ([]domain.DeviceAnnotation, error) {
	q := r.client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: query read: %w", op, err)
	}

	var out []domain.DeviceAnnotation
	for {
		var row AnnotationRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: iter next: %w", op, err)
		}
		out = append(out, row.toDomain())
	}
	return out, nil
}

// GetAnnotation implements commission.Repository.
func (r *Repository) GetAnnotation(ctx context.Context, deviceID string) (*domain.DeviceAnnotation, error) {
	sql := "SELECT" + annotationColumns + "\n\tFROM " + r.table(annotationsTable) + "\n\tWHERE imei = @imei\n\tLIMIT 1"
	rows, err := r.queryAnnotations(ctx, "GetAnnotation", sql, []bigquery.QueryParameter{
		{Name: "imei", Value: deviceID},
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.NotFoundError{Kind: "annotation", ID: deviceID}
	}
	return &rows[0], nil
}

// UpsertAnnotation implements commission.Repository. One row per device is
// kept with a MERGE keyed on imei.
func (r *Repository) UpsertAnnotation(ctx context.Context, a domain.DeviceAnnotation) error {
	if a.DeviceID == "" {
		return fmt.Errorf("UpsertAnnotation: device ID is required")
	}
	row := toAnnotationRow(a)
	_, err := r.exec(ctx, "UpsertAnnotation", `
		MERGE `+r.table(annotationsTable)+` T
		USING (SELECT @imei AS imei) S
		ON T.imei = S.imei
		WHEN MATCHED THEN
			UPDATE SET
				notes = @notes,
				withholding_resolved = @withholding_resolved,
				alerts_acknowledged = @alerts_acknowledged,
				suspended = @suspended,
				deactivated = @deactivated,
				blacklisted = @blacklisted,
				byod_swap = @byod_swap,
				customer_name = @customer_name,
				customer_number = @customer_number,
				customer_email = @customer_email,
				updated_ts = @updated_ts
		WHEN NOT MATCHED THEN
			INSERT (`+annotationColumns+`
			)
			VALUES (
				@imei,
				@notes,
				@withholding_resolved,
				@alerts_acknowledged,
				@suspended,
				@deactivated,
				@blacklisted,
				@byod_swap,
				@customer_name,
				@customer_number,
				@customer_email,
				@updated_ts
			)
	`, []bigquery.QueryParameter{
		{Name: "imei", Value: row.IMEI},
		{Name: "notes", Value: row.Notes},
		{Name: "withholding_resolved", Value: row.WithholdingResolved},
		{Name: "alerts_acknowledged", Value: row.AlertsAcknowledged},
		{Name: "suspended", Value: row.Suspended},
		{Name: "deactivated", Value: row.Deactivated},
		{Name: "blacklisted", Value: row.Blacklisted},
		{Name: "byod_swap", Value: row.BYODSwap},
		{Name: "customer_name", Value: row.CustomerName},
		{Name: "customer_number", Value: row.CustomerNumber},
		{Name: "customer_email", Value: row.CustomerEmail},
		{Name: "updated_ts", Value: row.UpdatedTS},
	})
	return err
}

// ListAnnotations implements commission.Repository.
func (r *Repository) ListAnnotations(ctx context.Context) (map[string]domain.DeviceAnnotation, error) {
	sql := "SELECT" + annotationColumns + "\n\tFROM " + r.table(annotationsTable)
	rows, err := r.queryAnnotations(ctx, "ListAnnotations", sql, nil)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.DeviceAnnotation, len(rows))
	for _, a := range rows {
		out[a.DeviceID] = a
	}
	return out, nil
}
