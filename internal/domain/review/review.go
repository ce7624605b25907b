// Package review implements the administrator review of candidate matches.
package review

import (
	"context"
	"fmt"

	"github.com/okian/reencuentro/internal/domain/model"
	"github.com/okian/reencuentro/pkg/logger"
	"github.com/okian/reencuentro/pkg/metrics"
)

// Store is the persistence the reviewer needs.
type Store interface {
	GetByID(ctx context.Context, id string) (model.CandidateMatch, error)
	UpdateReview(ctx context.Context, id string, state model.ReviewState, comments string) (model.CandidateMatch, error)
}

// Reviewer applies administrator decisions to candidate matches. It is the
// only code path that changes a review state.
type Reviewer struct {
	store  Store
	logger logger.Logger
}

// Option applies a configuration option to the Reviewer.
type Option func(*Reviewer)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Reviewer) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewReviewer creates a reviewer over store.
func NewReviewer(store Store, opts ...Option) *Reviewer {
	r := &Reviewer{store: store, logger: logger.Get().Named("review")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Review sets the state of a candidate match and replaces its comments.
// An invalid state fails with model.ErrInvalidState before the store is
// touched. Store errors, including not-found, are returned unchanged.
//
// Moving a match out of reviewed or discarded is allowed: it is the
// explicit administrator overwrite. It is logged so it leaves a trace.
func (r *Reviewer) Review(ctx context.Context, id string, state string, comments string) (model.CandidateMatch, error) {
	next, err := model.ParseReviewState(state)
	if err != nil {
		metrics.RecordErrorByComponent("review", "invalid_state")
		return model.CandidateMatch{}, err
	}

	current, err := r.store.GetByID(ctx, id)
	if err != nil {
		return model.CandidateMatch{}, err
	}

	updated, err := r.store.UpdateReview(ctx, id, next, comments)
	if err != nil {
		return model.CandidateMatch{}, err
	}

	fields := []logger.Field{
		logger.String("match_id", id),
		logger.String("from", string(current.ReviewState)),
		logger.String("to", string(next)),
	}
	if current.ReviewState.Terminal() && current.ReviewState != next {
		r.logger.Warn(ctx, "terminal review state overwritten", fields...)
	} else {
		r.logger.Info(ctx, "candidate match reviewed", fields...)
	}
	metrics.RecordReview(string(next))
	return updated, nil
}

// Get returns a candidate match by id.
func (r *Reviewer) Get(ctx context.Context, id string) (model.CandidateMatch, error) {
	m, err := r.store.GetByID(ctx, id)
	if err != nil {
		return model.CandidateMatch{}, fmt.Errorf("get candidate match %s: %w", id, err)
	}
	return m, nil
}
