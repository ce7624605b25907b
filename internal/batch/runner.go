package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/reencuentro/internal/adapters/records"
	"github.com/okian/reencuentro/internal/adapters/repository"
	"github.com/okian/reencuentro/internal/domain/matching"
	"github.com/okian/reencuentro/internal/domain/scoring"
	"github.com/okian/reencuentro/pkg/logger"
)

const directoryPermission = 0o750

// Run loads the dataset, sweeps it and writes the report.
func Run(ctx context.Context, cfg *Config) (*Report, error) {
	ds, err := LoadDataset(cfg.Input)
	if err != nil {
		return nil, err
	}
	rep, err := Sweep(ctx, cfg, ds)
	if err != nil {
		return nil, err
	}
	if err := writeReport(ctx, cfg.Output, rep); err != nil {
		return nil, err
	}
	return rep, nil
}

// Sweep registers every record and sweeps each hallazgo against the fichas.
// Every pair is compared once.
func Sweep(ctx context.Context, cfg *Config, ds *Dataset) (*Report, error) {
	log := logger.Get().Named("batch")
	rep := &Report{
		Fichas:    len(ds.Fichas),
		Hallazgos: len(ds.Hallazgos),
		Threshold: cfg.Threshold,
		StartTime: time.Now(),
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	scorer, err := scoring.NewRuleScorerWithWeights(cfg.Weights)
	if err != nil {
		return nil, fmt.Errorf("batch weights: %w", err)
	}

	registry := records.NewRegistry(records.WithSameStateOnly(cfg.SameStateOnly))
	for _, f := range ds.Fichas {
		if _, err := registry.PutFicha(ctx, f); err != nil {
			return nil, err
		}
	}
	for _, h := range ds.Hallazgos {
		if _, err := registry.PutHallazgo(ctx, h); err != nil {
			return nil, err
		}
	}

	store := repository.NewMemoryStore()
	defer func() { _ = store.Close() }()
	sweeper := matching.NewSweeper(
		scorer, registry, store,
		matching.WithThreshold(cfg.Threshold),
		matching.WithParallelism(cfg.Parallelism),
		matching.WithLogger(log),
	)

	log.Info(ctx, "sweeping dataset",
		logger.Int("fichas", rep.Fichas),
		logger.Int("hallazgos", rep.Hallazgos),
		logger.Int("threshold", cfg.Threshold),
		logger.Int("workers", cfg.Workers),
	)

	comparisons := make([]int, len(ds.Hallazgos))
	g, gctx := errgroup.WithContext(ctx)
	if cfg.Workers > 0 {
		g.SetLimit(cfg.Workers)
	}
	for i, h := range ds.Hallazgos {
		g.Go(func() error {
			r, err := sweeper.SweepHallazgo(gctx, h.ID)
			if err != nil {
				return err
			}
			comparisons[i] = r.Candidates
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("sweep dataset: %w", err)
	}
	for _, n := range comparisons {
		rep.Comparisons += n
	}

	matches, err := store.List(ctx, repository.Filter{})
	if err != nil {
		return nil, err
	}
	rep.Matches = matches
	rep.Duration = time.Since(rep.StartTime)

	log.Info(ctx, "dataset swept",
		logger.Int("comparisons", rep.Comparisons),
		logger.Int("matches", len(rep.Matches)),
		logger.Duration("duration", rep.Duration),
	)
	return rep, nil
}

func writeReport(ctx context.Context, path string, rep *Report) error {
	if path == "" || path == "-" {
		return encodeReport(os.Stdout, rep)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Get().Error(ctx, "failed to close report", logger.Error(err))
		}
	}()
	if err := encodeReport(file, rep); err != nil {
		return err
	}
	logger.Get().Info(ctx, "report written", logger.String("path", path))
	return nil
}

func encodeReport(w io.Writer, rep *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
