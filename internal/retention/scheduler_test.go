package retention

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/commission-tracker/internal/commission"
	"github.com/dvloznov/commission-tracker/internal/logger"
)

type fakePurger struct {
	calls   atomic.Int32
	err     error
	release chan struct{}
	entered chan struct{}
}

func (f *fakePurger) PurgeCompletedDevices(ctx context.Context) (commission.PurgeResult, error) {
	f.calls.Add(1)
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return commission.PurgeResult{}, f.err
	}
	return commission.PurgeResult{Devices: []string{"356789012345678"}, Transactions: 6}, nil
}

type recordingObserver struct {
	mu   sync.Mutex
	errs []error
}

func (o *recordingObserver) SweepCompleted(d time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, err)
}

func (o *recordingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.errs)
}

func TestTrigger(t *testing.T) {
	obs := &recordingObserver{}
	s := NewScheduler(&fakePurger{}, obs, time.Hour, logger.NewWithWriter(&bytes.Buffer{}))

	res, err := s.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"356789012345678"}, res.Devices)
	assert.Equal(t, 6, res.Transactions)
	assert.Equal(t, 1, obs.count())
}

func TestTrigger_ErrorIsReported(t *testing.T) {
	obs := &recordingObserver{}
	s := NewScheduler(&fakePurger{err: errors.New("bigquery unavailable")}, obs, time.Hour, logger.NewWithWriter(&bytes.Buffer{}))

	_, err := s.Trigger(context.Background())
	assert.EqualError(t, err, "bigquery unavailable")
	require.Equal(t, 1, obs.count())
	assert.Error(t, obs.errs[0])
}

func TestTrigger_SkipsOverlappingRun(t *testing.T) {
	purger := &fakePurger{release: make(chan struct{}), entered: make(chan struct{}, 1)}
	s := NewScheduler(purger, nil, time.Hour, logger.NewWithWriter(&bytes.Buffer{}))

	done := make(chan error, 1)
	go func() {
		_, err := s.Trigger(context.Background())
		done <- err
	}()
	<-purger.entered

	_, err := s.Trigger(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(purger.release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), purger.calls.Load())
}

func TestScheduler_RunsAtStartAndOnInterval(t *testing.T) {
	purger := &fakePurger{}
	s := NewScheduler(purger, nil, 10*time.Millisecond, logger.NewWithWriter(&bytes.Buffer{}))

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()), "second start is a no-op")

	require.Eventually(t, func() bool { return purger.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop(context.Background()))
	stopped := purger.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, purger.calls.Load(), "no sweeps after Stop")
	require.NoError(t, s.Stop(context.Background()))
}

func TestNewScheduler_DefaultInterval(t *testing.T) {
	s := NewScheduler(&fakePurger{}, nil, 0, logger.NewWithWriter(&bytes.Buffer{}))
	assert.Equal(t, DefaultInterval, s.interval)
}
