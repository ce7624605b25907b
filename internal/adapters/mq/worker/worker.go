// Package worker runs the sweep for each record change taken off the queue.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/reencuentro/internal/adapters/mq/queue"
	"github.com/okian/reencuentro/pkg/logger"
	"github.com/okian/reencuentro/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Event is what workers read off the queue.
type Event = queue.Event

// Handler processes one record change.
type Handler interface {
	HandleChange(ctx context.Context, e Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, e Event) error

func (f HandlerFunc) HandleChange(ctx context.Context, e Event) error { return f(ctx, e) }

// Queue defines how workers receive changes.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker processes changes until stopped.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker pulls changes from a queue and hands them to a Handler.
type InMemoryWorker struct {
	queue     Queue
	handler   Handler
	name      string
	onFailure func(ctx context.Context, e Event, err error)

	processed atomic.Int64
	failed    atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(q Queue, h Handler, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		handler:  h,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run processes changes until ctx is done, Shutdown is called or the queue closes.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	changes := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case e, ok := <-changes:
			if !ok {
				return
			}
			w.process(ctx, e)
		}
	}
}

// Shutdown stops the worker and waits for the change in flight.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Stats returns how many changes this worker handled and how many failed.
func (w *InMemoryWorker) Stats() (processed, failed int64) {
	return w.processed.Load(), w.failed.Load()
}

func (w *InMemoryWorker) process(ctx context.Context, e Event) {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := w.handler.HandleChange(ctx, e); err != nil {
		w.failed.Add(1)
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "sweep_error")
		w.logger.Error(ctx, "sweep failed",
			logger.String("event_id", e.EventID),
			logger.String("kind", string(e.Kind)),
			logger.String("record_id", e.RecordID),
			logger.Error(err),
		)
		if w.onFailure != nil {
			w.onFailure(ctx, e, err)
		}
		return
	}
	w.processed.Add(1)
	metrics.RecordChangeProcessed()
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	logger logger.Logger
}

// NewPool creates workerCount workers. A count below 1 means one per CPU.
// opts are applied to every worker.
func NewPool(workerCount int, q Queue, h Handler, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append(append([]Option{}, opts...), WithName("worker-"+strconv.Itoa(i)))
		p.workers[i] = NewInMemoryWorker(q, h, wopts...)
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Start runs every worker in its own goroutine.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Stats sums the counters of every worker.
func (p *Pool) Stats() (processed, failed int64) {
	for _, w := range p.workers {
		pr, f := w.Stats()
		processed += pr
		failed += f
	}
	return processed, failed
}

// Shutdown closes the queue so workers drain what is left, then waits for
// them. It returns the context error when a worker is still busy at the
// deadline; that worker keeps running.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()
	busy := 0
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			busy++
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerCount(busy)
	if busy > 0 {
		return fmt.Errorf("%d workers still running: %w", busy, shutdownCtx.Err())
	}
	return nil
}
