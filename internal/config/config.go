// Package config defines service configuration and its loading.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/okian/reencuentro/internal/domain/scoring"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// StoreConfig selects where candidate matches live.
type StoreConfig struct {
	// Driver is "memory" or "sqlite".
	Driver string `koanf:"driver"`
	// Path is the SQLite database file.
	Path string `koanf:"path"`
}

// NotifyConfig configures match notifications. An empty NATSURL disables them.
type NotifyConfig struct {
	NATSURL string `koanf:"nats_url"`
	Subject string `koanf:"subject"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory record change queue.
	QueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of sweep workers.
	WorkerCount int `koanf:"worker_count"`
	// SweepParallelism bounds concurrent pair scoring inside one sweep.
	SweepParallelism int `koanf:"sweep_parallelism"`
	// DedupeSize sets the size of the change deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MatchThreshold is the minimum total score that creates a candidate match.
	MatchThreshold int `koanf:"match_threshold"`
	// SweepTimeoutMS bounds one sweep; 0 disables the bound.
	SweepTimeoutMS int `koanf:"sweep_timeout_ms"`
	// SameStateOnly restricts candidates to counterparts in the same state.
	SameStateOnly bool `koanf:"same_state_only"`

	// MaxListLimit caps GET /matches?limit.
	MaxListLimit int `koanf:"max_list_limit"`

	Store   StoreConfig     `koanf:"store"`
	Notify  NotifyConfig    `koanf:"notify"`
	Weights scoring.Weights `koanf:"weights"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		QueueSize:        10_000,
		WorkerCount:      runtime.NumCPU(),
		SweepParallelism: runtime.NumCPU(),
		DedupeSize:       50_000,
		MatchThreshold:   300,
		SweepTimeoutMS:   30_000,
		MaxListLimit:     100,
		Store: StoreConfig{
			Driver: DriverMemory,
			Path:   "reencuentro.db",
		},
		Notify: NotifyConfig{
			Subject: "reencuentro.matches",
		},
		Weights: scoring.DefaultWeights(),
	}
}

// SweepTimeout returns SweepTimeoutMS as a duration.
func (c *Config) SweepTimeout() time.Duration {
	return time.Duration(c.SweepTimeoutMS) * time.Millisecond
}

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.SweepParallelism <= 0:
		return fmt.Errorf("%w: sweep_parallelism must be positive", ErrInvalidConfig)
	case c.MatchThreshold < 0:
		return fmt.Errorf("%w: match_threshold must not be negative", ErrInvalidConfig)
	case c.SweepTimeoutMS < 0:
		return fmt.Errorf("%w: sweep_timeout_ms must not be negative", ErrInvalidConfig)
	case c.MaxListLimit <= 0:
		return fmt.Errorf("%w: max_list_limit must be positive", ErrInvalidConfig)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if strings.TrimSpace(c.Store.Path) == "" {
			return fmt.Errorf("%w: store.path is required for sqlite", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store.driver %q", ErrInvalidConfig, c.Store.Driver)
	}
	if c.Notify.NATSURL != "" && strings.TrimSpace(c.Notify.Subject) == "" {
		return fmt.Errorf("%w: notify.subject is required with notify.nats_url", ErrInvalidConfig)
	}
	if err := c.Weights.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
