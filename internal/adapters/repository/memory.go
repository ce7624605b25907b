package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/reencuentro/internal/domain/model"
	"github.com/okian/reencuentro/pkg/metrics"
)

// MemoryStore is a mutex-guarded in-memory Store. Rows are handed out as
// clones so callers never alias stored state.
type MemoryStore struct {
	cfg storeConfig

	mu     sync.RWMutex
	byID   map[string]*model.CandidateMatch
	byPair map[string]string // PairKey -> id
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	cfg := defaultStoreConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &MemoryStore{
		cfg:    cfg,
		byID:   make(map[string]*model.CandidateMatch),
		byPair: make(map[string]string),
	}
}

func (s *MemoryStore) Upsert(_ context.Context, fichaID, hallazgoID string, score int, criteria []model.MatchCriterion) (model.CandidateMatch, Outcome, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()
	if err := validatePair(fichaID, hallazgoID); err != nil {
		return model.CandidateMatch{}, OutcomeUnchanged, err
	}
	criteria = append([]model.MatchCriterion{}, criteria...)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.cfg.now()
	key := model.PairKey(fichaID, hallazgoID)
	if id, ok := s.byPair[key]; ok {
		m := s.byID[id]
		if m.SameEvaluation(score, criteria) {
			return m.Clone(), OutcomeUnchanged, nil
		}
		m.Score = score
		m.Criteria = criteria
		m.Reevaluated = true
		m.UpdatedAt = now
		return m.Clone(), OutcomeReevaluated, nil
	}

	m := &model.CandidateMatch{
		ID:          s.cfg.newID(),
		FichaID:     fichaID,
		HallazgoID:  hallazgoID,
		Score:       score,
		Criteria:    criteria,
		ReviewState: model.ReviewPending,
		DetectedAt:  now,
		UpdatedAt:   now,
	}
	s.byID[m.ID] = m
	s.byPair[key] = m.ID
	metrics.UpdateCandidateMatches(len(s.byID))
	return m.Clone(), OutcomeCreated, nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (model.CandidateMatch, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byID[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.CandidateMatch{}, ErrNotFound
	}
	return m.Clone(), nil
}

func (s *MemoryStore) GetByPair(ctx context.Context, fichaID, hallazgoID string) (model.CandidateMatch, error) {
	s.mu.RLock()
	id, ok := s.byPair[model.PairKey(fichaID, hallazgoID)]
	s.mu.RUnlock()
	if !ok {
		return model.CandidateMatch{}, ErrNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *MemoryStore) UpdateReview(_ context.Context, id string, state model.ReviewState, comments string) (model.CandidateMatch, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.CandidateMatch{}, ErrNotFound
	}
	now := s.cfg.now()
	m.ReviewState = state
	m.AdminComments = comments
	m.Reevaluated = false
	m.ReviewedAt = &now
	m.UpdatedAt = now
	return m.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]model.CandidateMatch, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()
	if f.Limit < 0 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	out := make([]model.CandidateMatch, 0, len(s.byID))
	for _, m := range s.byID {
		if matches(f, m) {
			out = append(out, m.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matches(f Filter, m *model.CandidateMatch) bool {
	return (f.State == "" || m.ReviewState == f.State) &&
		(f.FichaID == "" || m.FichaID == f.FichaID) &&
		(f.HallazgoID == "" || m.HallazgoID == f.HallazgoID)
}

func (s *MemoryStore) Count(_ context.Context) (map[model.ReviewState]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := map[model.ReviewState]int{
		model.ReviewPending:   0,
		model.ReviewReviewed:  0,
		model.ReviewDiscarded: 0,
	}
	for _, m := range s.byID {
		counts[m.ReviewState]++
	}
	return counts, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
