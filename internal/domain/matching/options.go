package matching

import (
	"time"

	"github.com/okian/reencuentro/internal/adapters/notify"
	"github.com/okian/reencuentro/pkg/logger"
)

// Option applies a configuration option to the Sweeper.
type Option func(*Sweeper)

// WithThreshold sets the minimum total score that creates a candidate match.
func WithThreshold(threshold int) Option {
	return func(s *Sweeper) {
		if threshold >= 0 {
			s.threshold = threshold
		}
	}
}

// WithParallelism bounds how many pairs are scored at once.
func WithParallelism(n int) Option {
	return func(s *Sweeper) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// WithTimeout bounds a whole sweep. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Sweeper) {
		if d >= 0 {
			s.timeout = d
		}
	}
}

// WithNotifier sets where detected and re-evaluated matches are announced.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Sweeper) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Sweeper) {
		if l != nil {
			s.logger = l
		}
	}
}
