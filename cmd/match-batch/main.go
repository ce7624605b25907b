package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/reencuentro/internal/batch"
	"github.com/okian/reencuentro/internal/config"
	"github.com/okian/reencuentro/pkg/logger"
)

const defaultTimeout = 10 * time.Minute

func main() {
	if err := run(); err != nil {
		_, _ = os.Stderr.WriteString("match-batch: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(context.Background())
	if err != nil {
		return err
	}

	var (
		input       = flag.String("input", "", "JSON dataset to sweep")
		output      = flag.String("output", "-", "JSON report path; - writes to stdout")
		threshold   = flag.Int("threshold", cfg.MatchThreshold, "Minimum score that creates a candidate match")
		workers     = flag.Int("workers", runtime.NumCPU(), "Hallazgos swept concurrently")
		parallelism = flag.Int("parallelism", cfg.SweepParallelism, "Pairs scored concurrently inside one sweep")
		sameState   = flag.Bool("same-state", cfg.SameStateOnly, "Only compare records reported in the same state")
		timeout     = flag.Duration("timeout", defaultTimeout, "Bound for the whole run")
		logFormat   = flag.String("log-format", cfg.LogFormat, "Log format: text or json")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		batch.ShowHelp()
		return nil
	}

	// Logs go to stderr so the report can be piped from stdout.
	if err := logger.InitWithOptions(*logFormat, os.Stderr); err != nil {
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	_, err = batch.Run(context.Background(), &batch.Config{
		Input:         *input,
		Output:        *output,
		Threshold:     *threshold,
		Workers:       *workers,
		Parallelism:   *parallelism,
		SameStateOnly: *sameState,
		Weights:       cfg.Weights,
		Timeout:       *timeout,
	})
	return err
}
