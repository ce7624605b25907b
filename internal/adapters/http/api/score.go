package api

import (
	"context"
	"net/http"

	"github.com/okian/reencuentro/internal/domain/model"
)

// ScoreDependencies scores a pair without persisting it.
type ScoreDependencies interface {
	Score(ctx context.Context, f *model.MissingPersonRecord, h *model.FoundPersonRecord) (model.MatchResult, error)
}

type scoreRequest struct {
	Ficha    *model.MissingPersonRecord `json:"ficha"`
	Hallazgo *model.FoundPersonRecord   `json:"hallazgo"`
}

// ScoreHandler handles ad hoc scoring requests.
type ScoreHandler struct {
	deps ScoreDependencies
}

// NewScoreHandler creates a new score handler.
func NewScoreHandler(deps ScoreDependencies) *ScoreHandler {
	return &ScoreHandler{deps: deps}
}

// HandleScore handles POST /score requests.
func (h *ScoreHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.score"
	var req scoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.Score(r.Context(), req.Ficha, req.Hallazgo)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}
