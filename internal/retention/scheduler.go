// Package retention runs the periodic sweep that removes devices whose
// six-month commission lifecycle has been fully paid out.
package retention

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/commission-tracker/internal/commission"
)

// DefaultInterval is the time between two scheduled sweeps.
const DefaultInterval = 24 * time.Hour

// ErrAlreadyRunning is returned by Trigger while another sweep is in flight.
var ErrAlreadyRunning = errors.New("retention sweep already running")

// Purger removes completed devices. commission.Service satisfies it.
type Purger interface {
	PurgeCompletedDevices(ctx context.Context) (commission.PurgeResult, error)
}

// Observer is told about every finished sweep.
type Observer interface {
	SweepCompleted(d time.Duration, err error)
}

// Scheduler runs the sweep once at start and then every interval.
type Scheduler struct {
	purger   Purger
	observer Observer
	interval time.Duration
	log      zerolog.Logger

	running atomic.Bool

	mu        sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
}

// NewScheduler creates a scheduler. observer may be nil; a non-positive
// interval falls back to DefaultInterval.
func NewScheduler(purger Purger, observer Observer, interval time.Duration, log zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		purger:   purger,
		observer: observer,
		interval: interval,
		log:      log.With().Str("component", "retention").Logger(),
	}
}

// Start launches the background loop. Calling it twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(ctx)

	s.log.Info().Dur("interval", s.interval).Msg("Retention scheduler started")
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	s.runScheduled(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runScheduled(ctx)
		}
	}
}

func (s *Scheduler) runScheduled(ctx context.Context) {
	// Failures are logged and counted by Trigger.
	if _, err := s.Trigger(ctx); errors.Is(err, ErrAlreadyRunning) {
		s.log.Debug().Msg("Skipping sweep, previous run still in progress")
	}
}

// Trigger runs one sweep synchronously. It returns ErrAlreadyRunning
// without doing anything if a sweep is already in flight.
func (s *Scheduler) Trigger(ctx context.Context) (commission.PurgeResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return commission.PurgeResult{}, ErrAlreadyRunning
	}
	defer s.running.Store(false)

	start := time.Now()
	result, err := s.purger.PurgeCompletedDevices(ctx)
	elapsed := time.Since(start)
	if s.observer != nil {
		s.observer.SweepCompleted(elapsed, err)
	}

	if err != nil {
		s.log.Error().Err(err).Dur("duration", elapsed).Msg("Retention sweep failed")
		return result, err
	}
	s.log.Info().
		Int("devices", len(result.Devices)).
		Int("transactions", result.Transactions).
		Dur("duration", elapsed).
		Msg("Retention sweep completed")
	return result, nil
}

// Stop cancels the loop and waits for an in-flight sweep to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info().Msg("Retention scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
