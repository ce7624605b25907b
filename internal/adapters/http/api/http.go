// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/reencuentro/internal/adapters/repository"
	service "github.com/okian/reencuentro/internal/app"
	"github.com/okian/reencuentro/internal/domain/model"
)

const (
	defaultMaxListLimit = 100
	maxBodyBytes        = 1 << 20
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	RecordDependencies
	ScoreDependencies
	MatchDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	recordsHandler *RecordsHandler
	scoreHandler   *ScoreHandler
	matchesHandler *MatchesHandler
}

// Option configures the Server.
type Option func(*Server)

// WithMaxListLimit caps the limit accepted by GET /matches.
func WithMaxListLimit(limit int) Option {
	return func(s *Server) {
		if limit > 0 {
			s.matchesHandler.maxLimit = limit
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		recordsHandler: NewRecordsHandler(deps),
		scoreHandler:   NewScoreHandler(deps),
		matchesHandler: NewMatchesHandler(deps, defaultMaxListLimit),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /fichas", MetricsMiddleware(s.recordsHandler.HandlePostFicha, "fichas"))
	mux.HandleFunc("POST /hallazgos", MetricsMiddleware(s.recordsHandler.HandlePostHallazgo, "hallazgos"))
	mux.HandleFunc("POST /score", MetricsMiddleware(s.scoreHandler.HandleScore, "score"))
	mux.HandleFunc("GET /matches", MetricsMiddleware(s.matchesHandler.HandleList, "matches"))
	mux.HandleFunc("GET /matches/{id}", MetricsMiddleware(s.matchesHandler.HandleGet, "match"))
	mux.HandleFunc("POST /matches/{id}/review", MetricsMiddleware(s.matchesHandler.HandleReview, "review"))
}

type submitResponse struct {
	Status string `json:"status"`
	service.SubmitResult
}

type listResponse struct {
	Matches []model.CandidateMatch `json:"matches"`
	Count   int                    `json:"count"`
	Filter  repository.Filter      `json:"filter"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status, code := statusOf(err)
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decodeJSON reads one JSON document from a size-limited body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}
