// Package notify announces detected and re-evaluated candidate matches.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/okian/reencuentro/internal/domain/model"
	"github.com/okian/reencuentro/pkg/logger"
	"github.com/okian/reencuentro/pkg/metrics"
)

// EventType names what happened to a candidate match.
type EventType string

// Event types, also used as subject suffixes.
const (
	EventDetected    EventType = "detected"
	EventReevaluated EventType = "reevaluated"
)

const defaultSubject = "reencuentro.matches"

// ErrClosed is returned when publishing through a closed notifier.
var ErrClosed = errors.New("notifier closed")

// Event is the payload published for a candidate match.
type Event struct {
	Type  EventType            `json:"type"`
	Match model.CandidateMatch `json:"match"`
	TS    time.Time            `json:"ts"`
}

// Notifier publishes match events. Publishing is best effort: callers log
// failures and carry on, the candidate match is already persisted.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }
func (Nop) Close() error                        { return nil }

// Publisher is the subset of *nats.Conn the notifier uses.
type Publisher interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSNotifier publishes events as JSON on "<subject>.<type>".
type NATSNotifier struct {
	mu      sync.RWMutex
	pub     Publisher
	subject string
	logger  logger.Logger
}

// Option applies a configuration option to the NATSNotifier.
type Option func(*NATSNotifier)

// WithSubject sets the subject prefix.
func WithSubject(subject string) Option {
	return func(n *NATSNotifier) {
		if subject != "" {
			n.subject = subject
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(n *NATSNotifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// ConnectNATS dials url and returns a notifier on that connection. The
// connection keeps retrying in the background, so a broker that starts after
// the service does not block startup.
func ConnectNATS(url string, opts ...Option) (*NATSNotifier, error) {
	nc, err := nats.Connect(url,
		nats.Name("reencuentro"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return NewNATSNotifier(nc, opts...), nil
}

// NewNATSNotifier wraps an existing publisher.
func NewNATSNotifier(pub Publisher, opts ...Option) *NATSNotifier {
	n := &NATSNotifier{
		pub:     pub,
		subject: defaultSubject,
		logger:  logger.Get().Named("notify"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Subject returns the subject an event type is published on.
func (n *NATSNotifier) Subject(t EventType) string {
	return n.subject + "." + string(t)
}

func (n *NATSNotifier) Notify(ctx context.Context, e Event) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.pub == nil {
		return ErrClosed
	}
	if e.TS.IsZero() {
		e.TS = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", e.Type, err)
	}
	subject := n.Subject(e.Type)
	if err := n.pub.Publish(subject, data); err != nil {
		metrics.RecordNotificationError(string(e.Type))
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	metrics.RecordNotification(string(e.Type))
	n.logger.Debug(ctx, "match event published",
		logger.String("subject", subject),
		logger.String("match_id", e.Match.ID),
	)
	return nil
}

// Close drains pending publishes and closes the connection.
func (n *NATSNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pub == nil {
		return nil
	}
	err := n.pub.Drain()
	n.pub = nil
	return err
}
