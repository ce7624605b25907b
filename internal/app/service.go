// Package service wires the matching components together and implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/reencuentro/internal/adapters/mq/queue"
	"github.com/okian/reencuentro/internal/adapters/mq/worker"
	"github.com/okian/reencuentro/internal/adapters/notify"
	"github.com/okian/reencuentro/internal/adapters/records"
	"github.com/okian/reencuentro/internal/adapters/repository"
	"github.com/okian/reencuentro/internal/domain/dedupe"
	"github.com/okian/reencuentro/internal/domain/matching"
	"github.com/okian/reencuentro/internal/domain/model"
	"github.com/okian/reencuentro/internal/domain/review"
	"github.com/okian/reencuentro/internal/domain/scoring"
	"github.com/okian/reencuentro/pkg/logger"
	"github.com/okian/reencuentro/pkg/metrics"
)

// Sentinel errors returned by the service.
var (
	ErrNotStarted = errors.New("service not started")
	ErrQueueFull  = errors.New("change queue full")
	ErrStopped    = errors.New("service stopped")
)

// changeNamespace scopes the name-based UUIDs of change events.
var changeNamespace = uuid.MustParse("5b0c3a6e-8f1d-4c7e-9a52-2f6d8e4b1c90")

// SubmitResult describes what happened to a submitted record.
type SubmitResult struct {
	// EventID identifies the change event. Resubmitting identical content
	// yields the same id.
	EventID string `json:"event_id"`
	// Created is false when an existing record was replaced.
	Created bool `json:"created"`
	// Duplicate is true when an identical change was already queued or swept.
	Duplicate bool `json:"duplicate"`
}

// Service implements the API dependencies for the matching system.
type Service struct {
	mu sync.RWMutex

	// Core components
	registry *records.Registry
	scorer   *scoring.RuleScorer
	store    repository.Store
	reviewer *review.Reviewer
	notifier notify.Notifier
	deduper  dedupe.Deduper
	queue    *queue.InMemoryQueue
	sweeper  *matching.Sweeper
	pool     *worker.Pool

	// Configuration
	workerCount   int
	queueSize     int
	dedupeSize    int
	parallelism   int
	threshold     int
	sweepTimeout  time.Duration
	stopTimeout   time.Duration
	sameStateOnly bool
	weights       scoring.Weights

	// State
	started   bool
	closed    bool
	cancelRun context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of sweep workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the change queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the change deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithSweepParallelism bounds concurrent pair scoring inside one sweep.
func WithSweepParallelism(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// WithThreshold sets the minimum score that creates a candidate match.
func WithThreshold(threshold int) Option {
	return func(s *Service) {
		if threshold >= 0 {
			s.threshold = threshold
		}
	}
}

// WithSweepTimeout bounds a single sweep. Zero disables the bound.
func WithSweepTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.sweepTimeout = d
		}
	}
}

// WithStopTimeout bounds how long Stop waits for sweeps in flight.
func WithStopTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.stopTimeout = d
		}
	}
}

// WithSameStateOnly restricts candidates to counterparts in the same state.
func WithSameStateOnly(enabled bool) Option {
	return func(s *Service) {
		s.sameStateOnly = enabled
	}
}

// WithWeights sets the scoring weight table.
func WithWeights(w scoring.Weights) Option {
	return func(s *Service) {
		s.weights = w
	}
}

// WithStore sets the candidate match store. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithNotifier sets where match events are published. The service closes it on Stop.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service. Records can be scored and matches reviewed right
// away; change processing starts with Start.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:  runtime.NumCPU(),
		queueSize:    10_000,
		dedupeSize:   50_000,
		parallelism:  runtime.NumCPU(),
		threshold:    matching.DefaultThreshold,
		sweepTimeout: 30 * time.Second,
		stopTimeout:  30 * time.Second,
		weights:      scoring.DefaultWeights(),
		notifier:     notify.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}

	s.registry = records.NewRegistry(records.WithSameStateOnly(s.sameStateOnly))
	s.scorer = scoring.NewRuleScorer(scoring.WithWeights(s.weights))
	s.reviewer = review.NewReviewer(s.store, review.WithLogger(s.logger.Named("review")))
	return s
}

// Start creates the change pipeline and starts the workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.closed {
		return ErrStopped
	}
	s.logger.Info(ctx, "starting matching service...")

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(
		queue.WithCapacity(s.queueSize),
		queue.WithBufferSize(s.queueSize),
	)
	s.sweeper = matching.NewSweeper(s.scorer, s.registry, s.store,
		matching.WithThreshold(s.threshold),
		matching.WithParallelism(s.parallelism),
		matching.WithTimeout(s.sweepTimeout),
		matching.WithNotifier(s.notifier),
		matching.WithLogger(s.logger.Named("sweeper")),
	)

	deduper := s.deduper
	s.pool = worker.NewPool(s.workerCount, s.queue, s.sweeper,
		// A failed sweep may be retried by resubmitting the same content.
		worker.WithFailureHook(func(ctx context.Context, e worker.Event, _ error) {
			deduper.Unrecord(ctx, e.EventID)
		}),
	)

	// Workers outlive the caller's context; Stop ends them.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancelRun = cancel
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "matching service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
		logger.Int("threshold", s.threshold),
	)
	return nil
}

// Stop drains queued changes, stops the workers and closes the store and
// notifier. When a sweep is still running at the stop timeout the store and
// notifier are left open. A stopped service cannot be restarted.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	ctx := context.Background()
	if s.started {
		s.logger.Info(ctx, "stopping matching service...")
		shutdownCtx, cancel := context.WithTimeout(ctx, s.stopTimeout)
		err := s.pool.Shutdown(shutdownCtx)
		cancel()
		s.cancelRun()
		s.started = false
		if err != nil {
			s.logger.Warn(ctx, "sweeps still running, leaving store and notifier open", logger.Error(err))
			return
		}
	}

	if err := s.notifier.Close(); err != nil {
		s.logger.Error(ctx, "closing notifier failed", logger.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "closing store failed", logger.Error(err))
	}
	s.logger.Info(ctx, "matching service stopped")
}

// Started reports whether change processing is running.
func (s *Service) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// SubmitFicha validates and stores a ficha, then queues a sweep against the hallazgos.
func (s *Service) SubmitFicha(ctx context.Context, f *model.MissingPersonRecord) (SubmitResult, error) {
	if f == nil {
		return SubmitResult{}, fmt.Errorf("%w: nil ficha", model.ErrInvalidInput)
	}
	if err := f.Validate(); err != nil {
		return SubmitResult{}, err
	}
	return s.submit(ctx, model.KindFicha, f.ID, f, func() (bool, error) {
		return s.registry.PutFicha(ctx, f)
	})
}

// SubmitHallazgo validates and stores a hallazgo, then queues a sweep against the fichas.
func (s *Service) SubmitHallazgo(ctx context.Context, h *model.FoundPersonRecord) (SubmitResult, error) {
	if h == nil {
		return SubmitResult{}, fmt.Errorf("%w: nil hallazgo", model.ErrInvalidInput)
	}
	if err := h.Validate(); err != nil {
		return SubmitResult{}, err
	}
	return s.submit(ctx, model.KindHallazgo, h.ID, h, func() (bool, error) {
		return s.registry.PutHallazgo(ctx, h)
	})
}

func (s *Service) submit(ctx context.Context, kind model.RecordKind, id string, record any, put func() (bool, error)) (SubmitResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return SubmitResult{}, ErrNotStarted
	}

	eventID, err := changeID(kind, record)
	if err != nil {
		return SubmitResult{}, err
	}
	created, err := put()
	if err != nil {
		return SubmitResult{}, err
	}
	res := SubmitResult{EventID: eventID, Created: created}

	if s.deduper.SeenAndRecord(ctx, eventID) {
		metrics.RecordChangeDuplicate()
		s.logger.Debug(ctx, "duplicate change skipped",
			logger.String("event_id", eventID),
			logger.String("kind", string(kind)),
			logger.String("record_id", id),
		)
		res.Duplicate = true
		return res, nil
	}

	change := model.RecordChange{EventID: eventID, Kind: kind, RecordID: id}
	if !s.queue.Enqueue(ctx, change) {
		s.deduper.Unrecord(ctx, eventID)
		return SubmitResult{}, ErrQueueFull
	}
	s.logger.Debug(ctx, "change queued",
		logger.String("event_id", eventID),
		logger.String("kind", string(kind)),
		logger.String("record_id", id),
		logger.Bool("created", created),
	)
	return res, nil
}

// changeID derives a name-based UUID from the record content, so identical
// resubmissions coalesce in the deduper.
func changeID(kind model.RecordKind, record any) (string, error) {
	b, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", kind, err)
	}
	return uuid.NewSHA1(changeNamespace, append([]byte(kind+":"), b...)).String(), nil
}

// Score compares a ficha and a hallazgo without storing anything.
func (s *Service) Score(_ context.Context, f *model.MissingPersonRecord, h *model.FoundPersonRecord) (model.MatchResult, error) {
	return s.scorer.Score(f, h)
}

// Review applies an administrator decision to a candidate match.
func (s *Service) Review(ctx context.Context, id, state, comments string) (model.CandidateMatch, error) {
	return s.reviewer.Review(ctx, id, state, comments)
}

// GetMatch returns one candidate match.
func (s *Service) GetMatch(ctx context.Context, id string) (model.CandidateMatch, error) {
	return s.reviewer.Get(ctx, id)
}

// ListMatches returns candidate matches ordered by score.
func (s *Service) ListMatches(ctx context.Context, f repository.Filter) ([]model.CandidateMatch, error) {
	return s.store.List(ctx, f)
}

// SweepFicha runs a sweep synchronously, bypassing the queue.
func (s *Service) SweepFicha(ctx context.Context, id string) (matching.Report, error) {
	return s.syncSweeper().SweepFicha(ctx, id)
}

// SweepHallazgo runs a sweep synchronously, bypassing the queue.
func (s *Service) SweepHallazgo(ctx context.Context, id string) (matching.Report, error) {
	return s.syncSweeper().SweepHallazgo(ctx, id)
}

func (s *Service) syncSweeper() *matching.Sweeper {
	s.mu.RLock()
	sw := s.sweeper
	s.mu.RUnlock()
	if sw != nil {
		return sw
	}
	return matching.NewSweeper(s.scorer, s.registry, s.store,
		matching.WithThreshold(s.threshold),
		matching.WithParallelism(s.parallelism),
		matching.WithTimeout(s.sweepTimeout),
		matching.WithLogger(s.logger.Named("sweeper")),
	)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	fichas, hallazgos := s.registry.Counts()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"threshold":   s.threshold,
		"fichas":      fichas,
		"hallazgos":   hallazgos,
	}

	if counts, err := s.store.Count(ctx); err == nil {
		byState := make(map[string]int, len(counts))
		total := 0
		for state, n := range counts {
			byState[string(state)] = n
			total += n
		}
		stats["matches"] = total
		stats["matchesByState"] = byState
		metrics.UpdateCandidateMatches(total)
	} else {
		s.logger.Warn(ctx, "counting matches failed", logger.Error(err))
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		processed, failed := s.pool.Stats()
		stats["queueLength"] = queueLen
		stats["processed"] = processed
		stats["failed"] = failed
		stats["dedupeEntries"] = s.deduper.Size()
		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.workerCount)
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	metrics.UpdateSystemMemoryUsage(mem.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	return stats
}
