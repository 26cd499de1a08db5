package infra

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/commission-tracker/internal/config"
	"github.com/dvloznov/commission-tracker/internal/domain"
)

func TestOpenRepository_Memory(t *testing.T) {
	repo, err := OpenRepository(context.Background(), config.Config{Store: config.StoreMemory})
	require.NoError(t, err)
	defer repo.Close()

	rows, err := repo.ListTransactions(context.Background(), domain.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestOpenRepository_FileSnapshot(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	cfg := config.Config{Store: config.StoreMemory, SnapshotPath: path}

	repo, err := OpenRepository(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, repo.InsertBatch(ctx, domain.UploadBatch{ID: "b1", Filename: "march.csv"}))
	require.NoError(t, repo.Close())

	_, err = os.Stat(path)
	require.NoError(t, err)

	reopened, err := OpenRepository(ctx, cfg)
	require.NoError(t, err)
	defer reopened.Close()
	batch, err := reopened.GetBatch(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "march.csv", batch.Filename)
}

func TestOpenRepository_InvalidStore(t *testing.T) {
	_, err := OpenRepository(context.Background(), config.Config{Store: config.StoreBigQuery})
	assert.Error(t, err)

	_, err = OpenRepository(context.Background(), config.Config{Store: "sqlite"})
	assert.Error(t, err)
}
