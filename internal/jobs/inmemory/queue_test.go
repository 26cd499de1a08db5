package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/commission-tracker/internal/domain"
	"github.com/dvloznov/commission-tracker/internal/jobs"
)

func waitForStatus(t *testing.T, store *Store, id string, want jobs.JobStatus) *jobs.ImportJob {
	t.Helper()
	var job *jobs.ImportJob
	require.Eventually(t, func() bool {
		j, err := store.GetJob(context.Background(), id)
		if err != nil {
			return false
		}
		job = j
		return j.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func TestQueue_ProcessesJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(4, store, WithWorkers(2))
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		j := job.(*jobs.ImportJob)
		j.Result = &domain.IngestResult{Inserted: 3}
		return nil
	}))
	defer q.Stop(context.Background())

	job := &jobs.ImportJob{SourceURI: "gs://exports/march.csv"}
	require.NoError(t, q.PublishImport(ctx, job))
	require.NotEmpty(t, job.JobID)

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	require.NotNil(t, done.Result)
	assert.Equal(t, 3, done.Result.Inserted)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)
}

func TestQueue_RetriesThenFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(4, store, WithWorkers(1), WithRetryDelay(time.Millisecond))
	var calls atomic.Int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		calls.Add(1)
		return errors.New("object not found")
	}))
	defer q.Stop(context.Background())

	job := &jobs.ImportJob{SourceURI: "gs://exports/missing.csv", MaxRetries: 2}
	require.NoError(t, q.PublishImport(ctx, job))

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	assert.Equal(t, 2, failed.RetryCount)
	assert.Equal(t, "object not found", failed.Error)
	assert.Equal(t, int32(3), calls.Load())
}

func TestQueue_PublishAfterStop(t *testing.T) {
	q := NewQueue(1, NewStore())
	require.NoError(t, q.Stop(context.Background()))
	assert.Error(t, q.PublishImport(context.Background(), &jobs.ImportJob{}))
	assert.Error(t, q.Start(context.Background(), func(context.Context, jobs.Job) error { return nil }))
}

func TestStore_ListAndNotFound(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveJob(ctx, &jobs.ImportJob{JobID: "a", SourceURI: "gs://b/1.csv", Status: jobs.JobStatusCompleted, CreatedAt: base}))
	require.NoError(t, store.SaveJob(ctx, &jobs.ImportJob{JobID: "b", SourceURI: "gs://b/2.csv", Status: jobs.JobStatusFailed, CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, store.SaveJob(ctx, &jobs.ImportJob{JobID: "c", SourceURI: "gs://b/1.csv", Status: jobs.JobStatusPending, CreatedAt: base.Add(2 * time.Minute)}))

	all, err := store.ListJobs(ctx, jobs.JobFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].JobID)

	byURI, _ := store.ListJobs(ctx, jobs.JobFilter{SourceURI: "gs://b/1.csv", Limit: 1})
	require.Len(t, byURI, 1)
	assert.Equal(t, "c", byURI[0].JobID)

	failed, _ := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusFailed})
	require.Len(t, failed, 1)

	empty, _ := store.ListJobs(ctx, jobs.JobFilter{Offset: 5})
	assert.Empty(t, empty)

	_, err = store.GetJob(ctx, "zzz")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.True(t, errors.Is(store.UpdateJobStatus(ctx, "zzz", jobs.JobStatusFailed, ""), domain.ErrNotFound))
}
