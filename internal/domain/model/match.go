package model

import (
	"fmt"
	"strings"
	"time"
)

// MatchCriterion is a human-readable label explaining a partial score,
// e.g. "Edad (dif. 2)".
type MatchCriterion = string

// FacetScore is the contribution of one comparator to a MatchResult.
type FacetScore struct {
	Facet    string           `json:"facet"`
	Score    int              `json:"score"`
	Criteria []MatchCriterion `json:"criteria"`
}

// MatchResult is the scorer output for one (ficha, hallazgo) pair.
type MatchResult struct {
	TotalScore int              `json:"total_score"`
	Criteria   []MatchCriterion `json:"criteria"`
	Facets     []FacetScore     `json:"facets,omitempty"`
}

// ReviewState is the administrator review status of a CandidateMatch.
type ReviewState string

// Review states. Reviewed and Discarded are terminal for automated flows.
const (
	ReviewPending   ReviewState = "pending"
	ReviewReviewed  ReviewState = "reviewed"
	ReviewDiscarded ReviewState = "discarded"
)

// ParseReviewState converts s into a ReviewState. Matching is exact.
func ParseReviewState(s string) (ReviewState, error) {
	switch st := ReviewState(s); st {
	case ReviewPending, ReviewReviewed, ReviewDiscarded:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidState, s)
}

// Terminal reports whether no automated transition may leave st.
func (st ReviewState) Terminal() bool {
	return st == ReviewReviewed || st == ReviewDiscarded
}

// CandidateMatch is a persisted, reviewable pairing of a ficha and a hallazgo
// whose score cleared the detection threshold.
type CandidateMatch struct {
	ID            string           `json:"id"`
	FichaID       string           `json:"ficha_id"`
	HallazgoID    string           `json:"hallazgo_id"`
	Score         int              `json:"score"`
	Criteria      []MatchCriterion `json:"criteria"`
	ReviewState   ReviewState      `json:"review_state"`
	AdminComments string           `json:"admin_comments,omitempty"`
	// Reevaluated is set when a later sweep changed Score or Criteria.
	Reevaluated bool       `json:"reevaluated"`
	DetectedAt  time.Time  `json:"detected_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
}

// PairKey identifies the (ficha, hallazgo) pair of a match.
func PairKey(fichaID, hallazgoID string) string {
	return fichaID + "\x00" + hallazgoID
}

// SameEvaluation reports whether score and criteria equal m's.
func (m CandidateMatch) SameEvaluation(score int, criteria []MatchCriterion) bool {
	if m.Score != score || len(m.Criteria) != len(criteria) {
		return false
	}
	for i := range criteria {
		if m.Criteria[i] != criteria[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of m that shares no slices or pointers with it.
// Criteria is never nil in the copy.
func (m CandidateMatch) Clone() CandidateMatch {
	out := m
	out.Criteria = append([]MatchCriterion{}, m.Criteria...)
	if m.ReviewedAt != nil {
		t := *m.ReviewedAt
		out.ReviewedAt = &t
	}
	return out
}

// CriteriaText joins criteria into one line for logs.
func CriteriaText(criteria []MatchCriterion) string {
	return strings.Join(criteria, ", ")
}
