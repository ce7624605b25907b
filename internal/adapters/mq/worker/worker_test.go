package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/reencuentro/internal/adapters/mq/queue"
	worker "github.com/okian/reencuentro/internal/adapters/mq/worker"
	model "github.com/okian/reencuentro/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	eventChan chan queue.Event
	once      sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{eventChan: make(chan queue.Event, 10)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Event { return mq.eventChan }

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.eventChan) })
	return nil
}

type mockHandler struct {
	mu      sync.Mutex
	handled []string
	fail    map[string]error
}

func newMockHandler() *mockHandler {
	return &mockHandler{fail: make(map[string]error)}
}

func (h *mockHandler) HandleChange(_ context.Context, e queue.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err, ok := h.fail[e.RecordID]; ok {
		return err
	}
	h.handled = append(h.handled, e.RecordID)
	return nil
}

func (h *mockHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func change(id string) queue.Event {
	return model.RecordChange{EventID: "evt-" + id, Kind: model.KindFicha, RecordID: id, TS: time.Now()}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a running worker", t, func() {
		q := newMockQueue()
		h := newMockHandler()
		var failedMu sync.Mutex
		var failed []string
		w := worker.NewInMemoryWorker(q, h,
			worker.WithName("test-worker"),
			worker.WithFailureHook(func(_ context.Context, e queue.Event, _ error) {
				failedMu.Lock()
				failed = append(failed, e.EventID)
				failedMu.Unlock()
			}),
		)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When changes arrive", func() {
			q.eventChan <- change("f-1")
			q.eventChan <- change("f-2")

			convey.Convey("Then each is handed to the handler", func() {
				convey.So(waitFor(func() bool { n, _ := w.Stats(); return n == 2 }), convey.ShouldBeTrue)
				convey.So(h.count(), convey.ShouldEqual, 2)
				_, errs := w.Stats()
				convey.So(errs, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the handler fails", func() {
			h.mu.Lock()
			h.fail["f-bad"] = errors.New("store unavailable")
			h.mu.Unlock()
			q.eventChan <- change("f-bad")
			q.eventChan <- change("f-ok")

			convey.Convey("Then the failure hook runs and the worker keeps going", func() {
				convey.So(waitFor(func() bool { return h.count() == 1 }), convey.ShouldBeTrue)
				convey.So(waitFor(func() bool {
					failedMu.Lock()
					defer failedMu.Unlock()
					return len(failed) == 1
				}), convey.ShouldBeTrue)
				convey.So(failed[0], convey.ShouldEqual, "evt-f-bad")
			})
		})

		convey.Convey("When the worker is shut down", func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()
			err := w.Shutdown(sctx)

			convey.Convey("Then it stops without error and a second call is safe", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of three workers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		h := newMockHandler()
		p := worker.NewPool(3, q, h)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		p.Start(ctx)

		convey.Convey("When many changes are enqueued", func() {
			for i := 0; i < 30; i++ {
				convey.So(q.Enqueue(ctx, change(string(rune('a'+i%26))+string(rune('0'+i/26)))), convey.ShouldBeTrue)
			}

			convey.Convey("Then all are handled and shutdown drains cleanly", func() {
				convey.So(waitFor(func() bool { n, _ := p.Stats(); return n == 30 }), convey.ShouldBeTrue)
				convey.So(h.count(), convey.ShouldEqual, 30)
				convey.So(p.Size(), convey.ShouldEqual, 3)
				convey.So(p.Shutdown(context.Background()), convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a pool whose worker is stuck in a sweep", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		entered := make(chan struct{})
		release := make(chan struct{})
		p := worker.NewPool(1, q, worker.HandlerFunc(func(context.Context, queue.Event) error {
			close(entered)
			<-release
			return nil
		}))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		p.Start(ctx)
		convey.So(q.Enqueue(ctx, change("f-slow")), convey.ShouldBeTrue)
		<-entered

		convey.Convey("When shutdown runs out of time", func() {
			sctx, scancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer scancel()
			err := p.Shutdown(sctx)
			close(release)

			convey.Convey("Then it should report the deadline", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
			})

			convey.Convey("And a later shutdown should succeed once the sweep ends", func() {
				convey.So(p.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given a pool with a non-positive size", t, func() {
		p := worker.NewPool(0, newMockQueue(), worker.HandlerFunc(func(context.Context, queue.Event) error { return nil }))

		convey.Convey("Then it should default to at least one worker", func() {
			convey.So(p.Size(), convey.ShouldBeGreaterThan, 0)
		})
	})
}
