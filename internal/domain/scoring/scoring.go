package scoring

import (
	"fmt"

	"github.com/okian/reencuentro/internal/domain/model"
)

// Option applies a configuration option to the RuleScorer.
type Option func(*RuleScorer)

// WithWeights replaces the weight table. Invalid tables are ignored; use
// NewRuleScorerWithWeights to have them reported.
func WithWeights(w Weights) Option {
	return func(s *RuleScorer) {
		if err := w.Validate(); err == nil {
			s.weights = w
		}
	}
}

// Scorer computes a MatchResult for one (ficha, hallazgo) pair.
type Scorer interface {
	Score(f *model.MissingPersonRecord, h *model.FoundPersonRecord) (model.MatchResult, error)
}

// RuleScorer is the deterministic, rule-based Scorer. It holds no mutable
// state and is safe for concurrent use.
type RuleScorer struct {
	weights     Weights
	comparators []Comparator
}

// NewRuleScorer creates a scorer with the default weights unless overridden.
func NewRuleScorer(opts ...Option) *RuleScorer {
	s := &RuleScorer{
		weights: DefaultWeights(),
		// Order fixes the criteria order of every result.
		comparators: []Comparator{
			CompareGeneral,
			CompareLocation,
			CompareTraits,
			CompareClothing,
			CompareNames,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewRuleScorerWithWeights creates a scorer using w, failing with
// ErrInvalidWeights when the table does not validate.
func NewRuleScorerWithWeights(w Weights, opts ...Option) (*RuleScorer, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return NewRuleScorer(append([]Option{WithWeights(w)}, opts...)...), nil
}

// Weights returns the table in use.
func (s *RuleScorer) Weights() Weights {
	return s.weights
}

// Score runs every comparator in order, sums their scores and concatenates
// their criteria. Nil records are rejected with ErrInvalidInput.
func (s *RuleScorer) Score(f *model.MissingPersonRecord, h *model.FoundPersonRecord) (model.MatchResult, error) {
	if f == nil {
		return model.MatchResult{}, fmt.Errorf("%w: nil ficha", ErrInvalidInput)
	}
	if h == nil {
		return model.MatchResult{}, fmt.Errorf("%w: nil hallazgo", ErrInvalidInput)
	}

	res := model.MatchResult{
		Criteria: []model.MatchCriterion{},
		Facets:   make([]model.FacetScore, 0, len(s.comparators)),
	}
	for _, cmp := range s.comparators {
		fs := cmp(s.weights, f, h)
		res.TotalScore += fs.Score
		res.Criteria = append(res.Criteria, fs.Criteria...)
		res.Facets = append(res.Facets, fs)
	}
	return res, nil
}
