package repository

import (
	"time"

	"github.com/google/uuid"
)

type storeConfig struct {
	now   func() time.Time
	newID func() string
}

func defaultStoreConfig() storeConfig {
	return storeConfig{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// Option applies a configuration option to a store.
type Option func(*storeConfig)

// WithClock replaces the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *storeConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator replaces the generator of candidate match ids.
func WithIDGenerator(gen func() string) Option {
	return func(c *storeConfig) {
		if gen != nil {
			c.newID = gen
		}
	}
}
