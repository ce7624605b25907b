package api

import (
	"context"
	"net/http"

	service "github.com/okian/reencuentro/internal/app"
	"github.com/okian/reencuentro/internal/domain/model"
)

// RecordDependencies accepts created or edited records.
type RecordDependencies interface {
	SubmitFicha(ctx context.Context, f *model.MissingPersonRecord) (service.SubmitResult, error)
	SubmitHallazgo(ctx context.Context, h *model.FoundPersonRecord) (service.SubmitResult, error)
}

// RecordsHandler handles ficha and hallazgo submissions.
type RecordsHandler struct {
	deps RecordDependencies
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(deps RecordDependencies) *RecordsHandler {
	return &RecordsHandler{deps: deps}
}

// HandlePostFicha handles POST /fichas requests.
func (h *RecordsHandler) HandlePostFicha(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_ficha"
	var f model.MissingPersonRecord
	if err := decodeJSON(w, r, &f); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.SubmitFicha(r.Context(), &f)
	respondSubmit(w, op, res, err)
}

// HandlePostHallazgo handles POST /hallazgos requests.
func (h *RecordsHandler) HandlePostHallazgo(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_hallazgo"
	var rec model.FoundPersonRecord
	if err := decodeJSON(w, r, &rec); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.SubmitHallazgo(r.Context(), &rec)
	respondSubmit(w, op, res, err)
}

func respondSubmit(w http.ResponseWriter, op string, res service.SubmitResult, err error) {
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	if res.Duplicate {
		writeJSON(w, http.StatusOK, submitResponse{Status: "duplicate", SubmitResult: res})
		return
	}
	writeJSON(w, http.StatusAccepted, submitResponse{Status: "accepted", SubmitResult: res})
}
