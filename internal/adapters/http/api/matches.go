package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/reencuentro/internal/adapters/repository"
	"github.com/okian/reencuentro/internal/domain/model"
)

// MatchDependencies reads and reviews candidate matches.
type MatchDependencies interface {
	GetMatch(ctx context.Context, id string) (model.CandidateMatch, error)
	ListMatches(ctx context.Context, f repository.Filter) ([]model.CandidateMatch, error)
	Review(ctx context.Context, id, state, comments string) (model.CandidateMatch, error)
}

type reviewRequest struct {
	State    string `json:"state"`
	Comments string `json:"comments"`
}

// MatchesHandler handles candidate match requests.
type MatchesHandler struct {
	deps     MatchDependencies
	maxLimit int
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(deps MatchDependencies, maxLimit int) *MatchesHandler {
	if maxLimit <= 0 {
		maxLimit = defaultMaxListLimit
	}
	return &MatchesHandler{deps: deps, maxLimit: maxLimit}
}

// HandleList handles GET /matches?state=&ficha_id=&hallazgo_id=&limit= requests.
func (h *MatchesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_matches"
	f, err := h.parseFilter(r)
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	matches, err := h.deps.ListMatches(r.Context(), f)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	if matches == nil {
		matches = []model.CandidateMatch{}
	}
	writeJSON(w, http.StatusOK, listResponse{Matches: matches, Count: len(matches), Filter: f})
}

func (h *MatchesHandler) parseFilter(r *http.Request) (repository.Filter, error) {
	q := r.URL.Query()
	f := repository.Filter{
		FichaID:    strings.TrimSpace(q.Get("ficha_id")),
		HallazgoID: strings.TrimSpace(q.Get("hallazgo_id")),
		Limit:      h.maxLimit,
	}
	if s := strings.TrimSpace(q.Get("state")); s != "" {
		state, err := model.ParseReviewState(s)
		if err != nil {
			return repository.Filter{}, err
		}
		f.State = state
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return repository.Filter{}, fmt.Errorf("invalid limit %q", s)
		}
		if n > h.maxLimit {
			n = h.maxLimit
		}
		f.Limit = n
	}
	return f, nil
}

// HandleGet handles GET /matches/{id} requests.
func (h *MatchesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_match"
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, NewKind(op, ErrBadRequest))
		return
	}
	m, err := h.deps.GetMatch(r.Context(), id)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// HandleReview handles POST /matches/{id}/review requests.
func (h *MatchesHandler) HandleReview(w http.ResponseWriter, r *http.Request) {
	const op = "api.review_match"
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, NewKind(op, ErrBadRequest))
		return
	}
	var req reviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	m, err := h.deps.Review(r.Context(), id, req.State, req.Comments)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, m)
}
