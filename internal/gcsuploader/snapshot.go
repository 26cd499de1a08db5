package gcsuploader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// SnapshotStore keeps the in-memory store's snapshot in a single GCS object.
// It satisfies inmemory.SnapshotStore.
type SnapshotStore struct {
	client *storage.Client
	bucket string
	object string
}

// NewSnapshotStore creates a snapshot store for a gs://bucket/object URI.
func NewSnapshotStore(client *storage.Client, uri string) (*SnapshotStore, error) {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return nil, fmt.Errorf("NewSnapshotStore: %w", err)
	}
	return &SnapshotStore{client: client, bucket: bucket, object: object}, nil
}

// Load returns the stored snapshot, or nil when the object does not exist yet.
func (s *SnapshotStore) Load(ctx context.Context) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open GCS object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read GCS object: %w", err)
	}
	return data, nil
}

// Save overwrites the snapshot object.
func (s *SnapshotStore) Save(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	obj := s.client.Bucket(s.bucket).Object(s.object)
	if err := writeObject(ctx, obj, "application/json", bytes.NewReader(data)); err != nil {
		return fmt.Errorf("save snapshot gs://%s/%s: %w", s.bucket, s.object, err)
	}
	return nil
}
