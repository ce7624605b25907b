// Package repository persists candidate matches, one row per (ficha, hallazgo) pair.
package repository

import (
	"context"

	"github.com/okian/reencuentro/internal/domain/model"
)

// Outcome tells what an Upsert did to the stored row.
type Outcome int

const (
	// OutcomeUnchanged means the pair existed with the same score and criteria.
	OutcomeUnchanged Outcome = iota
	// OutcomeCreated means a new pending row was inserted.
	OutcomeCreated
	// OutcomeReevaluated means an existing row received a different score or criteria.
	OutcomeReevaluated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeReevaluated:
		return "reevaluated"
	default:
		return "unchanged"
	}
}

// Filter narrows List. Zero values match everything; Limit 0 means no limit.
type Filter struct {
	State      model.ReviewState `json:"state,omitempty"`
	FichaID    string            `json:"ficha_id,omitempty"`
	HallazgoID string            `json:"hallazgo_id,omitempty"`
	Limit      int               `json:"limit"`
}

// Store provides read/write access to candidate matches.
type Store interface {
	// Upsert records the evaluation of a pair. A new pair is inserted as
	// pending. An existing pair keeps its review state and comments; its score
	// and criteria are refreshed and it is flagged reevaluated when they changed.
	Upsert(ctx context.Context, fichaID, hallazgoID string, score int, criteria []model.MatchCriterion) (model.CandidateMatch, Outcome, error)

	// GetByID returns ErrNotFound for unknown ids.
	GetByID(ctx context.Context, id string) (model.CandidateMatch, error)

	// GetByPair returns ErrNotFound when the pair has no row.
	GetByPair(ctx context.Context, fichaID, hallazgoID string) (model.CandidateMatch, error)

	// UpdateReview overwrites state and comments, clears the reevaluated flag
	// and stamps the review time. Returns ErrNotFound for unknown ids.
	UpdateReview(ctx context.Context, id string, state model.ReviewState, comments string) (model.CandidateMatch, error)

	// List returns matches ordered by score desc, then id asc.
	List(ctx context.Context, f Filter) ([]model.CandidateMatch, error)

	// Count returns the number of matches per review state.
	Count(ctx context.Context) (map[model.ReviewState]int, error)

	Close() error
}

func validatePair(fichaID, hallazgoID string) error {
	if fichaID == "" || hallazgoID == "" {
		return ErrInvalidPair
	}
	return nil
}

func total(counts map[model.ReviewState]int) int {
	n := 0
	for _, c := range counts {
		n += c
	}
	return n
}
