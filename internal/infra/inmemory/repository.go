// Package inmemory keeps the record store in process memory, optionally
// persisting a JSON snapshot after every mutation so state survives restarts.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/commission-tracker/internal/commission"
	"github.com/dvloznov/commission-tracker/internal/domain"
)

// SnapshotStore persists the serialized repository state.
type SnapshotStore interface {
	// Load returns the last saved snapshot, or nil when none exists yet.
	Load(ctx context.Context) ([]byte, error)

	// Save replaces the stored snapshot.
	Save(ctx context.Context, data []byte) error
}

type state struct {
	txs         []domain.Transaction
	annotations map[string]domain.DeviceAnnotation
	batches     map[string]domain.UploadBatch
}

func newState() *state {
	return &state{
		annotations: make(map[string]domain.DeviceAnnotation),
		batches:     make(map[string]domain.UploadBatch),
	}
}

func (s *state) clone() *state {
	c := &state{
		txs:         make([]domain.Transaction, len(s.txs)),
		annotations: make(map[string]domain.DeviceAnnotation, len(s.annotations)),
		batches:     make(map[string]domain.UploadBatch, len(s.batches)),
	}
	for i, tx := range s.txs {
		c.txs[i] = tx.Clone()
	}
	for k, v := range s.annotations {
		c.annotations[k] = v
	}
	for k, v := range s.batches {
		c.batches[k] = v
	}
	return c
}

// Repository is an in-memory commission.Repository. It is safe for
// concurrent use. Every mutation is applied to a copy of the state, persisted
// when a SnapshotStore is configured, and only then made visible.
type Repository struct {
	mu        sync.RWMutex
	st        *state
	snapshots SnapshotStore
}

// NewRepository creates an empty, non-persistent repository.
func NewRepository() *Repository {
	return &Repository{st: newState()}
}

// NewPersistentRepository loads the last snapshot from store and persists
// every subsequent mutation to it.
func NewPersistentRepository(ctx context.Context, store SnapshotStore) (*Repository, error) {
	data, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewPersistentRepository: loading snapshot: %w", err)
	}
	st := newState()
	if len(data) > 0 {
		st, err = decodeSnapshot(data)
		if err != nil {
			return nil, fmt.Errorf("NewPersistentRepository: %w", err)
		}
	}
	return &Repository{st: st, snapshots: store}, nil
}

func (r *Repository) mutate(ctx context.Context, fn func(st *state) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.st.clone()
	if err := fn(next); err != nil {
		return err
	}
	if r.snapshots != nil {
		data, err := encodeSnapshot(next)
		if err != nil {
			return err
		}
		if err := r.snapshots.Save(ctx, data); err != nil {
			return fmt.Errorf("persisting snapshot: %w", err)
		}
	}
	r.st = next
	return nil
}

// ListTransactions implements commission.Repository.
func (r *Repository) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Transaction, 0, len(r.st.txs))
	for i := range r.st.txs {
		if filter.Matches(&r.st.txs[i]) {
			result = append(result, r.st.txs[i].Clone())
		}
	}
	return result, nil
}

// GetTransaction implements commission.Repository.
func (r *Repository) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.st.txs {
		if r.st.txs[i].ID == id {
			tx := r.st.txs[i].Clone()
			return &tx, nil
		}
	}
	return nil, &domain.NotFoundError{Kind: "transaction", ID: id}
}

// InsertTransactions implements commission.Repository.
func (r *Repository) InsertTransactions(ctx context.Context, rows []domain.Transaction) error {
	if len(rows) == 0 {
		return nil
	}
	return r.mutate(ctx, func(st *state) error {
		for _, row := range rows {
			if row.ID == "" {
				return fmt.Errorf("transaction ID is required")
			}
			st.txs = append(st.txs, row.Clone())
		}
		return nil
	})
}

// UpdateTransaction implements commission.Repository.
func (r *Repository) UpdateTransaction(ctx context.Context, tx domain.Transaction) error {
	return r.mutate(ctx, func(st *state) error {
		for i := range st.txs {
			if st.txs[i].ID == tx.ID {
				st.txs[i] = tx.Clone()
				return nil
			}
		}
		return &domain.NotFoundError{Kind: "transaction", ID: tx.ID}
	})
}

// DeleteTransaction implements commission.Repository.
func (r *Repository) DeleteTransaction(ctx context.Context, id string) error {
	return r.mutate(ctx, func(st *state) error {
		if removeWhere(st, func(tx *domain.Transaction) bool { return tx.ID == id }) == 0 {
			return &domain.NotFoundError{Kind: "transaction", ID: id}
		}
		return nil
	})
}

// DeleteTransactionsByBatch implements commission.Repository.
func (r *Repository) DeleteTransactionsByBatch(ctx context.Context, batchID string) (int, error) {
	var n int
	err := r.mutate(ctx, func(st *state) error {
		n = removeWhere(st, func(tx *domain.Transaction) bool { return tx.SourceFileID == batchID })
		return nil
	})
	return n, err
}

// DeleteTransactionsByDevice implements commission.Repository.
func (r *Repository) DeleteTransactionsByDevice(ctx context.Context, deviceIDs []string) (int, error) {
	ids := make(map[string]struct{}, len(deviceIDs))
	for _, id := range deviceIDs {
		ids[id] = struct{}{}
	}
	var n int
	err := r.mutate(ctx, func(st *state) error {
		n = removeWhere(st, func(tx *domain.Transaction) bool {
			_, ok := ids[tx.DeviceID]
			return ok
		})
		return nil
	})
	return n, err
}

// SetDeviceActive implements commission.Repository.
func (r *Repository) SetDeviceActive(ctx context.Context, deviceID string, active bool) (int, error) {
	var n int
	err := r.mutate(ctx, func(st *state) error {
		for i := range st.txs {
			if st.txs[i].DeviceID == deviceID {
				st.txs[i].IsActive = active
				n++
			}
		}
		return nil
	})
	return n, err
}

func removeWhere(st *state, match func(*domain.Transaction) bool) int {
	kept := st.txs[:0]
	removed := 0
	for i := range st.txs {
		if match(&st.txs[i]) {
			removed++
			continue
		}
		kept = append(kept, st.txs[i])
	}
	st.txs = kept
	return removed
}

// GetAnnotation implements commission.Repository.
func (r *Repository) GetAnnotation(ctx context.Context, deviceID string) (*domain.DeviceAnnotation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.st.annotations[deviceID]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "annotation", ID: deviceID}
	}
	return &a, nil
}

// UpsertAnnotation implements commission.Repository.
func (r *Repository) UpsertAnnotation(ctx context.Context, a domain.DeviceAnnotation) error {
	if a.DeviceID == "" {
		return fmt.Errorf("annotation device ID is required")
	}
	return r.mutate(ctx, func(st *state) error {
		st.annotations[a.DeviceID] = a
		return nil
	})
}

// ListAnnotations implements commission.Repository.
func (r *Repository) ListAnnotations(ctx context.Context) (map[string]domain.DeviceAnnotation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]domain.DeviceAnnotation, len(r.st.annotations))
	for k, v := range r.st.annotations {
		out[k] = v
	}
	return out, nil
}

// InsertBatch implements commission.Repository.
func (r *Repository) InsertBatch(ctx context.Context, b domain.UploadBatch) error {
	if b.ID == "" {
		return fmt.Errorf("batch ID is required")
	}
	return r.mutate(ctx, func(st *state) error {
		st.batches[b.ID] = b
		return nil
	})
}

// GetBatch implements commission.Repository.
func (r *Repository) GetBatch(ctx context.Context, id string) (*domain.UploadBatch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.st.batches[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "batch", ID: id}
	}
	return &b, nil
}

// DeleteBatch implements commission.Repository.
func (r *Repository) DeleteBatch(ctx context.Context, id string) error {
	return r.mutate(ctx, func(st *state) error {
		if _, ok := st.batches[id]; !ok {
			return &domain.NotFoundError{Kind: "batch", ID: id}
		}
		delete(st.batches, id)
		return nil
	})
}

// ListBatches implements commission.Repository.
func (r *Repository) ListBatches(ctx context.Context) ([]domain.UploadBatch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.UploadBatch, 0, len(r.st.batches))
	for _, b := range r.st.batches {
		out = append(out, b)
	}
	sortBatches(out)
	return out, nil
}

func sortBatches(b []domain.UploadBatch) {
	sort.Slice(b, func(i, j int) bool {
		if !b[i].UploadedAt.Equal(b[j].UploadedAt) {
			return b[i].UploadedAt.After(b[j].UploadedAt)
		}
		return b[i].ID < b[j].ID
	})
}

// Ensure Repository implements commission.Repository.
var _ commission.Repository = (*Repository)(nil)
