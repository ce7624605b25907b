// Package records keeps the fichas and hallazgos the matcher sweeps over.
package records

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/okian/reencuentro/internal/domain/model"
	"github.com/okian/reencuentro/pkg/metrics"
)

// ErrNotFound is returned for unknown record ids.
var ErrNotFound = errors.New("record not found")

// Source is what a sweep needs from the record registry: lookups plus the
// pre-filtered set of counterparts worth scoring.
type Source interface {
	GetFicha(ctx context.Context, id string) (*model.MissingPersonRecord, error)
	GetHallazgo(ctx context.Context, id string) (*model.FoundPersonRecord, error)
	HallazgoCandidates(ctx context.Context, f *model.MissingPersonRecord) ([]*model.FoundPersonRecord, error)
	FichaCandidates(ctx context.Context, h *model.FoundPersonRecord) ([]*model.MissingPersonRecord, error)
}

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithSameStateOnly restricts candidates to counterparts filed in the same
// state. Records without a state are never excluded by this filter.
func WithSameStateOnly(enabled bool) Option {
	return func(r *Registry) {
		r.sameStateOnly = enabled
	}
}

// Registry is an in-memory, concurrency-safe record store. It stores and
// returns copies so callers can never mutate registry state.
type Registry struct {
	mu            sync.RWMutex
	fichas        map[string]*model.MissingPersonRecord
	hallazgos     map[string]*model.FoundPersonRecord
	sameStateOnly bool
}

var _ Source = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		fichas:    make(map[string]*model.MissingPersonRecord),
		hallazgos: make(map[string]*model.FoundPersonRecord),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PutFicha validates and stores f, replacing any ficha with the same id.
// It reports whether the ficha was new.
func (r *Registry) PutFicha(_ context.Context, f *model.MissingPersonRecord) (bool, error) {
	if err := f.Validate(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, existed := r.fichas[f.ID]
	r.fichas[f.ID] = f.Clone()
	metrics.UpdateRecords(string(model.KindFicha), len(r.fichas))
	return !existed, nil
}

// PutHallazgo validates and stores h, replacing any hallazgo with the same id.
// It reports whether the hallazgo was new.
func (r *Registry) PutHallazgo(_ context.Context, h *model.FoundPersonRecord) (bool, error) {
	if err := h.Validate(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, existed := r.hallazgos[h.ID]
	r.hallazgos[h.ID] = h.Clone()
	metrics.UpdateRecords(string(model.KindHallazgo), len(r.hallazgos))
	return !existed, nil
}

func (r *Registry) GetFicha(_ context.Context, id string) (*model.MissingPersonRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fichas[id]
	if !ok {
		return nil, ErrNotFound
	}
	return f.Clone(), nil
}

func (r *Registry) GetHallazgo(_ context.Context, id string) (*model.FoundPersonRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.hallazgos[id]
	if !ok {
		return nil, ErrNotFound
	}
	return h.Clone(), nil
}

// HallazgoCandidates returns the hallazgos worth scoring against f, ordered by id.
func (r *Registry) HallazgoCandidates(ctx context.Context, f *model.MissingPersonRecord) ([]*model.FoundPersonRecord, error) {
	if f == nil {
		return nil, model.ErrInvalidInput
	}
	r.mu.RLock()
	out := make([]*model.FoundPersonRecord, 0, len(r.hallazgos))
	for _, h := range r.hallazgos {
		if err := ctx.Err(); err != nil {
			r.mu.RUnlock()
			return nil, err
		}
		if r.admit(f.Gender, h.Gender, f.DisappearanceLocation.State, h.FoundLocation.State) {
			out = append(out, h.Clone())
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FichaCandidates returns the fichas worth scoring against h, ordered by id.
func (r *Registry) FichaCandidates(ctx context.Context, h *model.FoundPersonRecord) ([]*model.MissingPersonRecord, error) {
	if h == nil {
		return nil, model.ErrInvalidInput
	}
	r.mu.RLock()
	out := make([]*model.MissingPersonRecord, 0, len(r.fichas))
	for _, f := range r.fichas {
		if err := ctx.Err(); err != nil {
			r.mu.RUnlock()
			return nil, err
		}
		if r.admit(f.Gender, h.Gender, f.DisappearanceLocation.State, h.FoundLocation.State) {
			out = append(out, f.Clone())
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// admit is the coarse pre-filter: a reported gender on both sides must agree,
// and with sameStateOnly so must a reported state.
func (r *Registry) admit(fGender, hGender, fState, hState string) bool {
	if fGender != "" && hGender != "" && fGender != hGender {
		return false
	}
	if r.sameStateOnly && fState != "" && hState != "" && fState != hState {
		return false
	}
	return true
}

// Counts returns the number of stored fichas and hallazgos.
func (r *Registry) Counts() (fichas, hallazgos int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.fichas), len(r.hallazgos)
}
