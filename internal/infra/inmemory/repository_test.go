package inmemory

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/commission-tracker/internal/domain"
)

func tx(id, device, batch string, amount float64) domain.Transaction {
	return domain.Transaction{
		ID:             id,
		DeviceID:       device,
		PaymentDate:    "2025-01-09",
		ActivationDate: "2025-01-01",
		Amount:         amount,
		MonthNumber:    domain.IntPtr(1),
		IsActive:       true,
		SourceFileID:   batch,
	}
}

func TestRepository_TransactionsCRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()

	require.NoError(t, repo.InsertTransactions(ctx, []domain.Transaction{
		tx("1", "a", "b1", 10),
		tx("2", "a", "b2", 20),
		tx("3", "b", "b1", 30),
	}))

	all, err := repo.ListTransactions(ctx, domain.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{all[0].ID, all[1].ID, all[2].ID})

	// Returned rows are copies.
	*all[0].MonthNumber = 5
	got, err := repo.GetTransaction(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 1, *got.MonthNumber)

	got.Amount = 99
	require.NoError(t, repo.UpdateTransaction(ctx, *got))
	got, _ = repo.GetTransaction(ctx, "1")
	assert.Equal(t, 99.0, got.Amount)

	n, err := repo.SetDeviceActive(ctx, "a", false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	active, _ := repo.ListTransactions(ctx, domain.TransactionFilter{ActiveOnly: true})
	assert.Len(t, active, 1)

	n, err = repo.DeleteTransactionsByBatch(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, repo.DeleteTransaction(ctx, "2"))
	err = repo.DeleteTransaction(ctx, "2")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = repo.GetTransaction(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestRepository_DeleteByDevice(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()
	require.NoError(t, repo.InsertTransactions(ctx, []domain.Transaction{
		tx("1", "a", "", 10), tx("2", "b", "", 10), tx("3", "c", "", 10), tx("4", "a", "", 5),
	}))

	n, err := repo.DeleteTransactionsByDevice(ctx, []string{"a", "c"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	left, _ := repo.ListTransactions(ctx, domain.TransactionFilter{})
	require.Len(t, left, 1)
	assert.Equal(t, "b", left[0].DeviceID)
}

func TestRepository_BatchesAndAnnotations(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.InsertBatch(ctx, domain.UploadBatch{ID: "old", UploadedAt: now}))
	require.NoError(t, repo.InsertBatch(ctx, domain.UploadBatch{ID: "new", UploadedAt: now.Add(time.Hour)}))
	batches, _ := repo.ListBatches(ctx)
	require.Len(t, batches, 2)
	assert.Equal(t, "new", batches[0].ID)

	require.NoError(t, repo.DeleteBatch(ctx, "old"))
	assert.True(t, errors.Is(repo.DeleteBatch(ctx, "old"), domain.ErrNotFound))

	_, err := repo.GetAnnotation(ctx, "imei")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	require.NoError(t, repo.UpsertAnnotation(ctx, domain.DeviceAnnotation{DeviceID: "imei", Notes: "call back"}))
	a, err := repo.GetAnnotation(ctx, "imei")
	require.NoError(t, err)
	assert.Equal(t, "call back", a.Notes)
}

func TestPersistentRepository_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	store := NewFileSnapshotStore(filepath.Join(t.TempDir(), "state", "snapshot.json"))

	repo, err := NewPersistentRepository(ctx, store)
	require.NoError(t, err)
	require.NoError(t, repo.InsertTransactions(ctx, []domain.Transaction{tx("1", "a", "b1", 10)}))
	require.NoError(t, repo.InsertBatch(ctx, domain.UploadBatch{ID: "b1", Filename: "march.csv", RecordCount: 1}))
	require.NoError(t, repo.UpsertAnnotation(ctx, domain.DeviceAnnotation{DeviceID: "a", Blacklisted: true}))

	reopened, err := NewPersistentRepository(ctx, store)
	require.NoError(t, err)

	txs, _ := reopened.ListTransactions(ctx, domain.TransactionFilter{})
	require.Len(t, txs, 1)
	assert.Equal(t, 1, *txs[0].MonthNumber)
	b, err := reopened.GetBatch(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "march.csv", b.Filename)
	a, err := reopened.GetAnnotation(ctx, "a")
	require.NoError(t, err)
	assert.True(t, a.Blacklisted)
}

func TestSnapshot_AnnotationsAsEntryList(t *testing.T) {
	st := newState()
	st.annotations["x"] = domain.DeviceAnnotation{DeviceID: "x", Notes: "n"}

	data, err := encodeSnapshot(st)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	var entries []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["annotations"], &entries), "annotations must be a JSON array")
	require.Len(t, entries, 1)
	assert.JSONEq(t, `"x"`, string(entries[0]["device_id"]))
}

type failingStore struct{ saves int }

func (f *failingStore) Load(ctx context.Context) ([]byte, error) { return nil, nil }

func (f *failingStore) Save(ctx context.Context, data []byte) error {
	f.saves++
	return errors.New("disk full")
}

func TestPersistentRepository_FailedSaveKeepsState(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{}
	repo, err := NewPersistentRepository(ctx, store)
	require.NoError(t, err)

	err = repo.InsertTransactions(ctx, []domain.Transaction{tx("1", "a", "", 10)})
	require.Error(t, err)
	assert.Equal(t, 1, store.saves)

	txs, _ := repo.ListTransactions(ctx, domain.TransactionFilter{})
	assert.Empty(t, txs)
}
