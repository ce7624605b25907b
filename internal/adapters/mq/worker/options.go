package worker

import (
	"context"

	"github.com/okian/reencuentro/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name used in logs.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithFailureHook is called after a change fails, e.g. to let it be retried.
func WithFailureHook(fn func(ctx context.Context, e Event, err error)) Option {
	return func(w *InMemoryWorker) {
		w.onFailure = fn
	}
}
