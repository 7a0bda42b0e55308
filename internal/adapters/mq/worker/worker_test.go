package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/dripcue/internal/adapters/mq/queue"
	worker "github.com/okian/dripcue/internal/adapters/mq/worker"
	model "github.com/okian/dripcue/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

type mockDispatcher struct {
	mu    sync.Mutex
	got   []string
	fail  map[string]error
	panic map[string]bool
}

func newMockDispatcher() *mockDispatcher {
	return &mockDispatcher{fail: map[string]error{}, panic: map[string]bool{}}
}

func (m *mockDispatcher) Notify(_ context.Context, n model.Notification) error {
	m.mu.Lock()
	m.got = append(m.got, n.EntryID)
	err := m.fail[n.EntryID]
	p := m.panic[n.EntryID]
	m.mu.Unlock()
	if p {
		panic("boom")
	}
	return err
}

func (m *mockDispatcher) delivered() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.got...)
}

func note(id string) model.Notification {
	return model.Notification{Kind: model.KindCompleted, EntryID: id, Tag: model.Tag(id, model.KindCompleted)}
}

func TestWorker(t *testing.T) {
	convey.Convey("Given a worker attached to a queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		d := newMockDispatcher()
		w := worker.New(q, d, worker.WithName("test"), worker.WithDeliveryTimeout(time.Second))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When notifications are queued and the queue is closed", func() {
			q.Enqueue(ctx, note("a"))
			q.Enqueue(ctx, note("b"))
			_ = q.Close()
			<-w.Done()

			convey.Convey("Then all are delivered in order", func() {
				convey.So(d.delivered(), convey.ShouldResemble, []string{"a", "b"})
			})
		})

		convey.Convey("When a delivery fails or panics", func() {
			d.fail["a"] = errors.New("503")
			d.panic["b"] = true
			q.Enqueue(ctx, note("a"))
			q.Enqueue(ctx, note("b"))
			q.Enqueue(ctx, note("c"))
			_ = q.Close()
			<-w.Done()

			convey.Convey("Then the worker moves on without retrying", func() {
				convey.So(d.delivered(), convey.ShouldResemble, []string{"a", "b", "c"})
			})
		})

		convey.Convey("When it is shut down", func() {
			err := w.Shutdown(context.Background())

			convey.Convey("Then Run returns", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of one worker", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		d := newMockDispatcher()
		p := worker.NewPool(0, q, d)
		p.Start(context.Background())

		convey.Convey("When it is shut down after enqueuing", func() {
			for _, id := range []string{"a", "b", "c"} {
				q.Enqueue(context.Background(), note(id))
			}
			err := p.Shutdown(context.Background())

			convey.Convey("Then the queue is drained first", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(d.delivered(), convey.ShouldResemble, []string{"a", "b", "c"})
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})
}
