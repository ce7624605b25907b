// Package matching sweeps a changed ficha or hallazgo against its
// counterparts and persists the pairs that clear the detection threshold.
package matching

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/reencuentro/internal/adapters/notify"
	"github.com/okian/reencuentro/internal/adapters/records"
	"github.com/okian/reencuentro/internal/adapters/repository"
	"github.com/okian/reencuentro/internal/domain/model"
	"github.com/okian/reencuentro/internal/domain/scoring"
	"github.com/okian/reencuentro/pkg/logger"
	"github.com/okian/reencuentro/pkg/metrics"
)

// DefaultThreshold is the minimum total score that creates a candidate match.
const DefaultThreshold = 300

// ErrUnknownKind is returned for record changes of an unknown kind.
var ErrUnknownKind = errors.New("unknown record kind")

// Report summarizes one sweep.
type Report struct {
	Kind       model.RecordKind `json:"kind"`
	RecordID   string           `json:"record_id"`
	Candidates int              `json:"candidates"`
	// Matched counts pairs at or above the threshold.
	Matched     int `json:"matched"`
	Created     int `json:"created"`
	Reevaluated int `json:"reevaluated"`
	Unchanged   int `json:"unchanged"`
	// Refreshed counts existing matches re-scored below the threshold. They
	// stay stored so an administrator's review is not lost.
	Refreshed int                    `json:"refreshed"`
	Matches   []model.CandidateMatch `json:"matches"`
	Duration  time.Duration          `json:"duration_ns"`
}

// Sweeper scores one record against its counterparts and upserts the results.
type Sweeper struct {
	scorer   scoring.Scorer
	source   records.Source
	store    repository.Store
	notifier notify.Notifier
	logger   logger.Logger

	threshold   int
	parallelism int
	timeout     time.Duration
}

// NewSweeper creates a sweeper.
func NewSweeper(scorer scoring.Scorer, source records.Source, store repository.Store, opts ...Option) *Sweeper {
	s := &Sweeper{
		scorer:      scorer,
		source:      source,
		store:       store,
		notifier:    notify.Nop{},
		logger:      logger.Get().Named("sweeper"),
		threshold:   DefaultThreshold,
		parallelism: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Threshold returns the configured detection threshold.
func (s *Sweeper) Threshold() int { return s.threshold }

// HandleChange sweeps the record a change refers to.
func (s *Sweeper) HandleChange(ctx context.Context, c model.RecordChange) error {
	var err error
	switch c.Kind {
	case model.KindFicha:
		_, err = s.SweepFicha(ctx, c.RecordID)
	case model.KindHallazgo:
		_, err = s.SweepHallazgo(ctx, c.RecordID)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
	}
	return err
}

type pair struct {
	f *model.MissingPersonRecord
	h *model.FoundPersonRecord
}

// SweepFicha scores the ficha against every candidate hallazgo.
func (s *Sweeper) SweepFicha(ctx context.Context, fichaID string) (Report, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	f, err := s.source.GetFicha(ctx, fichaID)
	if err != nil {
		return Report{}, fmt.Errorf("load ficha %s: %w", fichaID, err)
	}
	hs, err := s.source.HallazgoCandidates(ctx, f)
	if err != nil {
		return Report{}, fmt.Errorf("candidates for ficha %s: %w", fichaID, err)
	}
	pairs := make([]pair, len(hs))
	for i, h := range hs {
		pairs[i] = pair{f: f, h: h}
	}
	return s.sweep(ctx, model.KindFicha, fichaID, pairs)
}

// SweepHallazgo scores the hallazgo against every candidate ficha.
func (s *Sweeper) SweepHallazgo(ctx context.Context, hallazgoID string) (Report, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	h, err := s.source.GetHallazgo(ctx, hallazgoID)
	if err != nil {
		return Report{}, fmt.Errorf("load hallazgo %s: %w", hallazgoID, err)
	}
	fs, err := s.source.FichaCandidates(ctx, h)
	if err != nil {
		return Report{}, fmt.Errorf("candidates for hallazgo %s: %w", hallazgoID, err)
	}
	pairs := make([]pair, len(fs))
	for i, f := range fs {
		pairs[i] = pair{f: f, h: h}
	}
	return s.sweep(ctx, model.KindHallazgo, hallazgoID, pairs)
}

func (s *Sweeper) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

func (s *Sweeper) sweep(ctx context.Context, kind model.RecordKind, id string, pairs []pair) (rep Report, err error) {
	start := time.Now()
	rep = Report{Kind: kind, RecordID: id, Candidates: len(pairs), Matches: []model.CandidateMatch{}}
	defer func() {
		rep.Duration = time.Since(start)
		metrics.RecordSweep(float64(rep.Duration.Milliseconds()), rep.Candidates)
	}()

	results, err := s.scoreAll(ctx, pairs)
	if err != nil {
		return rep, err
	}

	// Upserts run in candidate order so repeated sweeps write identically.
	for i, p := range pairs {
		if err := ctx.Err(); err != nil {
			return rep, fmt.Errorf("sweep %s %s: %w", kind, id, err)
		}
		if err := s.persist(ctx, &rep, p, results[i]); err != nil {
			metrics.RecordErrorByComponent("sweeper", "store_error")
			return rep, fmt.Errorf("persist %s/%s: %w", p.f.ID, p.h.ID, err)
		}
	}

	s.logger.Debug(ctx, "sweep finished",
		logger.String("kind", string(kind)),
		logger.String("record_id", id),
		logger.Int("candidates", rep.Candidates),
		logger.Int("matched", rep.Matched),
		logger.Int("created", rep.Created),
		logger.Int("reevaluated", rep.Reevaluated),
	)
	return rep, nil
}

// scoreAll scores every pair with bounded parallelism. results[i] belongs to pairs[i].
func (s *Sweeper) scoreAll(ctx context.Context, pairs []pair) ([]model.MatchResult, error) {
	results := make([]model.MatchResult, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i := range pairs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			res, err := s.scorer.Score(pairs[i].f, pairs[i].h)
			if err != nil {
				metrics.RecordScoringError()
				return fmt.Errorf("score %s/%s: %w", pairs[i].f.ID, pairs[i].h.ID, err)
			}
			metrics.RecordPairScored(float64(time.Since(start).Microseconds()) / 1000)
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Sweeper) persist(ctx context.Context, rep *Report, p pair, res model.MatchResult) error {
	if res.TotalScore < s.threshold {
		// Below threshold: only refresh a pair that is already stored.
		if _, err := s.store.GetByPair(ctx, p.f.ID, p.h.ID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return err
		}
		m, outcome, err := s.store.Upsert(ctx, p.f.ID, p.h.ID, res.TotalScore, res.Criteria)
		if err != nil {
			return err
		}
		rep.Refreshed++
		if outcome == repository.OutcomeReevaluated {
			metrics.RecordMatchReevaluated()
			s.notify(ctx, notify.EventReevaluated, m)
		}
		return nil
	}

	rep.Matched++
	metrics.RecordMatchScore(res.TotalScore)
	for _, fs := range res.Facets {
		if fs.Score > 0 {
			metrics.RecordFacetHit(fs.Facet)
		}
	}

	m, outcome, err := s.store.Upsert(ctx, p.f.ID, p.h.ID, res.TotalScore, res.Criteria)
	if err != nil {
		return err
	}
	rep.Matches = append(rep.Matches, m)
	switch outcome {
	case repository.OutcomeCreated:
		rep.Created++
		metrics.RecordMatchDetected()
		s.logger.Info(ctx, "candidate match detected",
			logger.String("match_id", m.ID),
			logger.String("ficha_id", m.FichaID),
			logger.String("hallazgo_id", m.HallazgoID),
			logger.Int("score", m.Score),
			logger.String("criteria", model.CriteriaText(m.Criteria)),
		)
		s.notify(ctx, notify.EventDetected, m)
	case repository.OutcomeReevaluated:
		rep.Reevaluated++
		metrics.RecordMatchReevaluated()
		s.logger.Info(ctx, "candidate match re-evaluated",
			logger.String("match_id", m.ID),
			logger.Int("score", m.Score),
			logger.String("review_state", string(m.ReviewState)),
		)
		s.notify(ctx, notify.EventReevaluated, m)
	default:
		rep.Unchanged++
		metrics.RecordMatchRefreshed()
	}
	return nil
}

func (s *Sweeper) notify(ctx context.Context, t notify.EventType, m model.CandidateMatch) {
	if err := s.notifier.Notify(ctx, notify.Event{Type: t, Match: m}); err != nil {
		s.logger.Warn(ctx, "match notification failed",
			logger.String("match_id", m.ID),
			logger.String("event", string(t)),
			logger.Error(err),
		)
	}
}
