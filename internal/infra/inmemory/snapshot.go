package inmemory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dvloznov/commission-tracker/internal/domain"
)

const snapshotVersion = 1

// annotationEntry is one element of the persisted annotation list. Maps are
// written as explicit entries so the format does not depend on JSON object
// key handling.
type annotationEntry struct {
	DeviceID   string                  `json:"device_id"`
	Annotation domain.DeviceAnnotation `json:"annotation"`
}

type snapshotFile struct {
	Version      int                  `json:"version"`
	Transactions []domain.Transaction `json:"transactions"`
	Annotations  []annotationEntry    `json:"annotations"`
	Batches      []domain.UploadBatch `json:"batches"`
}

func encodeSnapshot(st *state) ([]byte, error) {
	f := snapshotFile{
		Version:      snapshotVersion,
		Transactions: st.txs,
		Annotations:  make([]annotationEntry, 0, len(st.annotations)),
		Batches:      make([]domain.UploadBatch, 0, len(st.batches)),
	}
	if f.Transactions == nil {
		f.Transactions = []domain.Transaction{}
	}
	for id, a := range st.annotations {
		f.Annotations = append(f.Annotations, annotationEntry{DeviceID: id, Annotation: a})
	}
	sort.Slice(f.Annotations, func(i, j int) bool { return f.Annotations[i].DeviceID < f.Annotations[j].DeviceID })
	for _, b := range st.batches {
		f.Batches = append(f.Batches, b)
	}
	sortBatches(f.Batches)

	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (*state, error) {
	var f snapshotFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if f.Version > snapshotVersion {
		return nil, fmt.Errorf("decoding snapshot: unsupported version %d", f.Version)
	}
	st := newState()
	st.txs = f.Transactions
	for _, e := range f.Annotations {
		e.Annotation.DeviceID = e.DeviceID
		st.annotations[e.DeviceID] = e.Annotation
	}
	for _, b := range f.Batches {
		st.batches[b.ID] = b
	}
	return st, nil
}

// FileSnapshotStore keeps the snapshot in a local file.
type FileSnapshotStore struct {
	path string
}

// NewFileSnapshotStore creates a store writing to path.
func NewFileSnapshotStore(path string) *FileSnapshotStore {
	return &FileSnapshotStore{path: path}
}

// Load implements SnapshotStore.
func (s *FileSnapshotStore) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %q: %w", s.path, err)
	}
	return data, nil
}

// Save implements SnapshotStore. The file is replaced atomically.
func (s *FileSnapshotStore) Save(ctx context.Context, data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace snapshot %q: %w", s.path, err)
	}
	return nil
}
