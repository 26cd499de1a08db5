package pipeline

import (
	"context"

	"github.com/dvloznov/commission-tracker/internal/domain"
)

// StorageService is an interface for storage operations.
type StorageService interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
}

// Ingester stores parsed rows. commission.Service satisfies it.
type Ingester interface {
	AddTransactions(ctx context.Context, rows []domain.Transaction, meta *domain.BatchMeta) (domain.IngestResult, error)
}
