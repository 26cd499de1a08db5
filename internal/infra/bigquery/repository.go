// Package bigquery implements the commission record store on BigQuery.
//
// Tables live in one dataset: transactions, device_annotations and
// upload_batches (see migrations/bigquery). Bulk inserts use the streaming
// inserter; every other mutation is a parameterised DML job.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/commission-tracker/internal/commission"
)

const (
	transactionsTable = "transactions"
	annotationsTable  = "device_annotations"
	batchesTable      = "upload_batches"
)

// Repository is the BigQuery implementation of commission.Repository. It
// holds a shared client to avoid creating a connection per operation.
type Repository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewRepository creates a client for projectID and a repository over datasetID.
func NewRepository(ctx context.Context, projectID, datasetID string) (*Repository, error) {
	if projectID == "" || datasetID == "" {
		return nil, fmt.Errorf("NewRepository: project and dataset are required")
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return NewRepositoryWithClient(client, projectID, datasetID), nil
}

// NewRepositoryWithClient wraps an existing client.
func NewRepositoryWithClient(client *bigquery.Client, projectID, datasetID string) *Repository {
	return &Repository{client: client, projectID: projectID, datasetID: datasetID}
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// table returns the fully qualified, backquoted table name.
func (r *Repository) table(name string) string {
	return qualifiedTable(r.projectID, r.datasetID, name)
}

func qualifiedTable(projectID, datasetID, name string) string {
	return "`" + projectID + "." + datasetID + "." + name + "`"
}

// exec runs a DML statement and returns the number of affected rows.
func (r *Repository) exec(ctx context.Context, op, sql string, params []bigquery.QueryParameter) (int64, error) {
	q := r.client.Query(sql)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: run query: %w", op, err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: wait for job: %w", op, err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("%s: job error: %w", op, err)
	}
	return affectedRows(status), nil
}

func affectedRows(status *bigquery.JobStatus) int64 {
	if status == nil || status.Statistics == nil {
		return 0
	}
	if qs, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
		return qs.NumDMLAffectedRows
	}
	return 0
}

// Ensure Repository implements commission.Repository.
var _ commission.Repository = (*Repository)(nil)
