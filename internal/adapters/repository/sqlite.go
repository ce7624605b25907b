package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/reencuentro/internal/domain/model"
	"github.com/okian/reencuentro/pkg/metrics"
	_ "modernc.org/sqlite"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS candidate_matches (
  id             TEXT PRIMARY KEY,
  ficha_id       TEXT NOT NULL,
  hallazgo_id    TEXT NOT NULL,
  score          INTEGER NOT NULL,
  criteria       TEXT NOT NULL,
  review_state   TEXT NOT NULL DEFAULT 'pending',
  admin_comments TEXT NOT NULL DEFAULT '',
  reevaluated    INTEGER NOT NULL DEFAULT 0,
  detected_at    INTEGER NOT NULL,
  updated_at     INTEGER NOT NULL,
  reviewed_at    INTEGER,
  UNIQUE (ficha_id, hallazgo_id)
);
CREATE INDEX IF NOT EXISTS idx_candidate_matches_state ON candidate_matches(review_state, score DESC);
`

const selectColumns = `id, ficha_id, hallazgo_id, score, criteria, review_state, admin_comments,
  reevaluated, detected_at, updated_at, reviewed_at`

// SQLiteStore is a Store backed by a SQLite file. Timestamps are stored as
// Unix nanoseconds in UTC.
type SQLiteStore struct {
	cfg storeConfig
	db  *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path. Use ":memory:"
// for a throwaway database.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	cfg := defaultStoreConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite doesn't support concurrent writes; one connection also keeps
	// a ":memory:" database alive for the lifetime of the store.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{cfg: cfg, db: db}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(r rowScanner) (model.CandidateMatch, error) {
	var (
		m                 model.CandidateMatch
		criteria, state   string
		reevaluated       int
		detected, updated int64
		reviewed          sql.NullInt64
	)
	err := r.Scan(&m.ID, &m.FichaID, &m.HallazgoID, &m.Score, &criteria, &state, &m.AdminComments,
		&reevaluated, &detected, &updated, &reviewed)
	if err != nil {
		return model.CandidateMatch{}, err
	}
	if err := json.Unmarshal([]byte(criteria), &m.Criteria); err != nil {
		return model.CandidateMatch{}, fmt.Errorf("decoding criteria of %s: %w", m.ID, err)
	}
	if m.Criteria == nil {
		m.Criteria = []model.MatchCriterion{}
	}
	m.ReviewState = model.ReviewState(state)
	m.Reevaluated = reevaluated != 0
	m.DetectedAt = time.Unix(0, detected).UTC()
	m.UpdatedAt = time.Unix(0, updated).UTC()
	if reviewed.Valid {
		t := time.Unix(0, reviewed.Int64).UTC()
		m.ReviewedAt = &t
	}
	return m, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, fichaID, hallazgoID string, score int, criteria []model.MatchCriterion) (model.CandidateMatch, Outcome, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()
	if err := validatePair(fichaID, hallazgoID); err != nil {
		return model.CandidateMatch{}, OutcomeUnchanged, err
	}
	if criteria == nil {
		criteria = []model.MatchCriterion{}
	}
	encoded, err := json.Marshal(criteria)
	if err != nil {
		return model.CandidateMatch{}, OutcomeUnchanged, fmt.Errorf("encoding criteria: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.CandidateMatch{}, OutcomeUnchanged, fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.cfg.now().UnixNano()
	existing, err := scanMatch(tx.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM candidate_matches WHERE ficha_id = ? AND hallazgo_id = ?`,
		fichaID, hallazgoID))

	var (
		id      string
		outcome Outcome
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		id, outcome = s.cfg.newID(), OutcomeCreated
		_, err = tx.ExecContext(ctx,
			`INSERT INTO candidate_matches (id, ficha_id, hallazgo_id, score, criteria, review_state, detected_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, fichaID, hallazgoID, score, string(encoded), string(model.ReviewPending), now, now)
	case err != nil:
		return model.CandidateMatch{}, OutcomeUnchanged, fmt.Errorf("loading pair: %w", err)
	case existing.SameEvaluation(score, criteria):
		return existing, OutcomeUnchanged, nil
	default:
		id, outcome = existing.ID, OutcomeReevaluated
		_, err = tx.ExecContext(ctx,
			`UPDATE candidate_matches SET score = ?, criteria = ?, reevaluated = 1, updated_at = ? WHERE id = ?`,
			score, string(encoded), now, id)
	}
	if err != nil {
		return model.CandidateMatch{}, OutcomeUnchanged, fmt.Errorf("writing pair: %w", err)
	}

	m, err := scanMatch(tx.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM candidate_matches WHERE id = ?`, id))
	if err != nil {
		return model.CandidateMatch{}, OutcomeUnchanged, fmt.Errorf("reloading pair: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.CandidateMatch{}, OutcomeUnchanged, fmt.Errorf("commit upsert: %w", err)
	}
	if outcome == OutcomeCreated {
		s.publishCount(ctx)
	}
	return m, outcome, nil
}

func (s *SQLiteStore) publishCount(ctx context.Context) {
	if counts, err := s.Count(ctx); err == nil {
		metrics.UpdateCandidateMatches(total(counts))
	}
}

func (s *SQLiteStore) GetByID(ctx context.Context, id string) (model.CandidateMatch, error) {
	return s.getOne(ctx, `SELECT `+selectColumns+` FROM candidate_matches WHERE id = ?`, id)
}

func (s *SQLiteStore) GetByPair(ctx context.Context, fichaID, hallazgoID string) (model.CandidateMatch, error) {
	return s.getOne(ctx, `SELECT `+selectColumns+` FROM candidate_matches WHERE ficha_id = ? AND hallazgo_id = ?`,
		fichaID, hallazgoID)
}

func (s *SQLiteStore) getOne(ctx context.Context, query string, args ...any) (model.CandidateMatch, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	m, err := scanMatch(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.CandidateMatch{}, ErrNotFound
	}
	if err != nil {
		return model.CandidateMatch{}, fmt.Errorf("query candidate match: %w", err)
	}
	return m, nil
}

func (s *SQLiteStore) UpdateReview(ctx context.Context, id string, state model.ReviewState, comments string) (model.CandidateMatch, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	now := s.cfg.now().UnixNano()
	res, err := s.db.ExecContext(ctx,
		`UPDATE candidate_matches
		 SET review_state = ?, admin_comments = ?, reevaluated = 0, reviewed_at = ?, updated_at = ?
		 WHERE id = ?`,
		string(state), comments, now, now, id)
	if err != nil {
		return model.CandidateMatch{}, fmt.Errorf("update review: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.CandidateMatch{}, ErrNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]model.CandidateMatch, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()
	if f.Limit < 0 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	var (
		where []string
		args  []any
	)
	if f.State != "" {
		where = append(where, "review_state = ?")
		args = append(args, string(f.State))
	}
	if f.FichaID != "" {
		where = append(where, "ficha_id = ?")
		args = append(args, f.FichaID)
	}
	if f.HallazgoID != "" {
		where = append(where, "hallazgo_id = ?")
		args = append(args, f.HallazgoID)
	}

	query := `SELECT ` + selectColumns + ` FROM candidate_matches`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY score DESC, id ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list candidate matches: %w", err)
	}
	defer rows.Close()

	out := []model.CandidateMatch{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Count(ctx context.Context) (map[model.ReviewState]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT review_state, COUNT(*) FROM candidate_matches GROUP BY review_state`)
	if err != nil {
		return nil, fmt.Errorf("count candidate matches: %w", err)
	}
	defer rows.Close()

	counts := map[model.ReviewState]int{
		model.ReviewPending:   0,
		model.ReviewReviewed:  0,
		model.ReviewDiscarded: 0,
	}
	for rows.Next() {
		var (
			state string
			n     int
		)
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[model.ReviewState(state)] = n
	}
	return counts, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
