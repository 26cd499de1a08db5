// Package commission is the record store: it owns ingestion, mutation and
// snapshot reads of transactions, device annotations and upload batches,
// and feeds snapshots through the lifecycle engine for the query side.
package commission

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/dvloznov/commission-tracker/internal/domain"
)

// Service serialises writers and gives readers a consistent snapshot.
type Service struct {
	repo     Repository
	log      zerolog.Logger
	now      func() time.Time
	recorder Recorder
	newID    func() string

	mu sync.RWMutex
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithIDGenerator overrides id generation, mainly for tests.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// NewService creates a record store over repo.
func NewService(repo Repository, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:  repo,
		log:   log.With().Str("component", "commission").Logger(),
		now:   time.Now,
		newID: newUUID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today is the service's current calendar date.
func (s *Service) Today() civil.Date {
	return civil.DateOf(s.now())
}

// snapshot reads every transaction and annotation. Callers hold s.mu.
func (s *Service) snapshot(ctx context.Context) ([]domain.Transaction, map[string]domain.DeviceAnnotation, error) {
	txs, err := s.repo.ListTransactions(ctx, domain.TransactionFilter{})
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot: listing transactions: %w", err)
	}
	annotations, err := s.repo.ListAnnotations(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot: listing annotations: %w", err)
	}
	return txs, annotations, nil
}

func activeOnly(txs []domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.IsActive {
			out = append(out, tx)
		}
	}
	return out
}
