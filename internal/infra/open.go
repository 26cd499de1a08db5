// Package infra selects and opens the configured commission repository.
package infra

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/dvloznov/commission-tracker/internal/commission"
	"github.com/dvloznov/commission-tracker/internal/config"
	"github.com/dvloznov/commission-tracker/internal/gcsuploader"
	infraBQ "github.com/dvloznov/commission-tracker/internal/infra/bigquery"
	"github.com/dvloznov/commission-tracker/internal/infra/inmemory"
)

// Repository is a commission repository that owns client connections.
type Repository interface {
	commission.Repository
	Close() error
}

type memoryRepository struct {
	*inmemory.Repository
	closeFn func() error
}

func (m memoryRepository) Close() error {
	if m.closeFn != nil {
		return m.closeFn()
	}
	return nil
}

// OpenRepository builds the repository named by cfg.Store.
func OpenRepository(ctx context.Context, cfg config.Config) (Repository, error) {
	if err := cfg.ValidateStore(); err != nil {
		return nil, fmt.Errorf("OpenRepository: %w", err)
	}

	if cfg.Store == config.StoreBigQuery {
		repo, err := infraBQ.NewRepository(ctx, cfg.BQProject, cfg.BQDataset)
		if err != nil {
			return nil, fmt.Errorf("OpenRepository: %w", err)
		}
		return repo, nil
	}

	if cfg.SnapshotPath == "" {
		return memoryRepository{Repository: inmemory.NewRepository()}, nil
	}

	store, closeFn, err := openSnapshotStore(ctx, cfg.SnapshotPath)
	if err != nil {
		return nil, fmt.Errorf("OpenRepository: %w", err)
	}
	repo, err := inmemory.NewPersistentRepository(ctx, store)
	if err != nil {
		if closeFn != nil {
			_ = closeFn()
		}
		return nil, fmt.Errorf("OpenRepository: %w", err)
	}
	return memoryRepository{Repository: repo, closeFn: closeFn}, nil
}

func openSnapshotStore(ctx context.Context, path string) (inmemory.SnapshotStore, func() error, error) {
	if !strings.HasPrefix(path, "gs://") {
		return inmemory.NewFileSnapshotStore(path), nil, nil
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("creating storage client: %w", err)
	}
	store, err := gcsuploader.NewSnapshotStore(client, path)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return store, client.Close, nil
}
