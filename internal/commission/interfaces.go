package commission

import (
	"context"

	"github.com/dvloznov/commission-tracker/internal/domain"
)

// Repository is the persistence boundary of the record store. Implementations
// must be safe for concurrent use and return rows in insertion order.
// Lookups of a missing id return a *domain.NotFoundError.
//
//go:generate mockgen -destination=mocks/mock_repository.go -package=mocks -source=interfaces.go Repository
type Repository interface {
	// ListTransactions returns the rows matching filter.
	ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error)

	// GetTransaction returns a single row by id.
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)

	// InsertTransactions stores new rows.
	InsertTransactions(ctx context.Context, rows []domain.Transaction) error

	// UpdateTransaction replaces the stored row with the same id.
	UpdateTransaction(ctx context.Context, tx domain.Transaction) error

	// DeleteTransaction removes a single row.
	DeleteTransaction(ctx context.Context, id string) error

	// DeleteTransactionsByBatch removes every row imported by the batch.
	DeleteTransactionsByBatch(ctx context.Context, batchID string) (int, error)

	// DeleteTransactionsByDevice removes every row of the given devices.
	DeleteTransactionsByDevice(ctx context.Context, deviceIDs []string) (int, error)

	// SetDeviceActive sets is_active on every row of the device.
	SetDeviceActive(ctx context.Context, deviceID string, active bool) (int, error)

	// GetAnnotation returns the annotation of a device.
	GetAnnotation(ctx context.Context, deviceID string) (*domain.DeviceAnnotation, error)

	// UpsertAnnotation creates or replaces a device annotation.
	UpsertAnnotation(ctx context.Context, a domain.DeviceAnnotation) error

	// ListAnnotations returns all annotations keyed by device id.
	ListAnnotations(ctx context.Context) (map[string]domain.DeviceAnnotation, error)

	// InsertBatch stores upload batch metadata.
	InsertBatch(ctx context.Context, b domain.UploadBatch) error

	// GetBatch returns batch metadata by id.
	GetBatch(ctx context.Context, id string) (*domain.UploadBatch, error)

	// DeleteBatch removes batch metadata.
	DeleteBatch(ctx context.Context, id string) error

	// ListBatches returns every batch, newest first.
	ListBatches(ctx context.Context) ([]domain.UploadBatch, error)
}

// Recorder receives counters about store activity. A nil Recorder is allowed.
type Recorder interface {
	TransactionsIngested(inserted, duplicates, skipped int)
	DevicesPurged(devices, transactions int)
}
