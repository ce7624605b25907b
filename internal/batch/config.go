// Package batch sweeps an offline dataset of fichas and hallazgos through the
// matching engine and reports the candidate matches it finds.
package batch

import (
	"errors"
	"time"

	"github.com/okian/reencuentro/internal/domain/model"
	"github.com/okian/reencuentro/internal/domain/scoring"
)

// Sentinel errors for this package.
var (
	ErrNoInput        = errors.New("no input dataset")
	ErrInvalidDataset = errors.New("invalid dataset")
)

// Config holds configuration for a batch run.
type Config struct {
	Input         string          // Path of the JSON dataset
	Output        string          // Path of the JSON report; empty or "-" writes to stdout
	Threshold     int             // Minimum score that creates a candidate match
	Workers       int             // Hallazgos swept concurrently
	Parallelism   int             // Pairs scored concurrently inside one sweep
	SameStateOnly bool            // Only compare records reported in the same state
	Weights       scoring.Weights // Scoring weight table
	Timeout       time.Duration   // Bound for the whole run; 0 means none
}

// Dataset is the input document.
type Dataset struct {
	Fichas    []*model.MissingPersonRecord `json:"fichas"`
	Hallazgos []*model.FoundPersonRecord   `json:"hallazgos"`
}

// Report is the output document.
type Report struct {
	Fichas      int                    `json:"fichas"`
	Hallazgos   int                    `json:"hallazgos"`
	Comparisons int                    `json:"comparisons"`
	Threshold   int                    `json:"threshold"`
	Matches     []model.CandidateMatch `json:"matches"`
	StartTime   time.Time              `json:"start_time"`
	Duration    time.Duration          `json:"duration_ns"`
}
