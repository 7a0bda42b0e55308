package notify

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/okian/dripcue/internal/adapters/mq/queue"
	"github.com/okian/dripcue/internal/adapters/mq/worker"
	"github.com/okian/dripcue/internal/domain/model"
	"github.com/okian/dripcue/pkg/metrics"
)

// Async hands notifications to a bounded queue drained by a single worker,
// so a slow backend never holds up the caller.
type Async struct {
	queue   *queue.InMemoryQueue
	pool    *worker.Pool
	closers []io.Closer
}

// NewAsync creates an Async dispatcher delivering into next. Call Start
// before use and Shutdown to drain.
func NewAsync(next Dispatcher, capacity int) *Async {
	q := queue.NewInMemoryQueue(queue.WithCapacity(capacity))
	return &Async{
		queue: q,
		pool:  worker.NewPool(1, q, next),
	}
}

// Start launches the delivery worker.
func (a *Async) Start(ctx context.Context) {
	a.pool.Start(ctx)
}

// Notify enqueues n. It returns ErrQueueFull when the queue is at capacity
// or already shut down.
func (a *Async) Notify(ctx context.Context, n model.Notification) error {
	if !a.queue.Enqueue(ctx, n) {
		metrics.RecordNotification(string(n.Kind), "async", metrics.OutcomeDropped)
		return fmt.Errorf("%w: %s", ErrQueueFull, n.Tag)
	}
	return nil
}

// Pending returns the number of queued notifications.
func (a *Async) Pending() int { return a.queue.Len() }

// Shutdown stops accepting notifications and waits for the queue to drain.
// Backend connections opened by Build are closed afterwards.
func (a *Async) Shutdown(ctx context.Context) error {
	errs := []error{a.pool.Shutdown(ctx)}
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
