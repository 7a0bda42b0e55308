// Package worker drains the notification queue into a downstream dispatcher.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/dripcue/internal/domain/model"
	"github.com/okian/dripcue/pkg/logger"
	"github.com/okian/dripcue/pkg/metrics"
)

const (
	defaultDeliveryTimeout = 10 * time.Second
	poolShutdownTimeout    = 30 * time.Second
)

// Dispatcher delivers a notification.
type Dispatcher interface {
	Notify(ctx context.Context, n model.Notification) error
}

// Queue defines how workers receive notifications.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Notification
}

// Worker delivers notifications one at a time. Failures are logged and
// counted; nothing is retried.
type Worker struct {
	queue      Queue
	dispatcher Dispatcher
	name       string
	backend    string
	timeout    time.Duration

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// New creates a worker.
func New(queue Queue, dispatcher Dispatcher, opts ...Option) *Worker {
	w := &Worker{
		queue:      queue,
		dispatcher: dispatcher,
		name:       "worker",
		backend:    "async",
		timeout:    defaultDeliveryTimeout,
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.Named("notify-worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run delivers until ctx is cancelled, Shutdown is called, or the queue is
// closed and drained.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	items := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case n, ok := <-items:
			if !ok {
				return
			}
			if err := w.deliver(ctx, n); err != nil {
				w.logger.Warn(ctx, "notification not delivered",
					logger.String("tag", n.Tag),
					logger.Error(err),
				)
			}
		}
	}
}

// Done is closed when Run returns.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Shutdown stops the worker and waits for the in-flight delivery.
func (w *Worker) Shutdown(ctx context.Context) error {
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

func (w *Worker) deliver(ctx context.Context, n model.Notification) (err error) { //nolint:gocritic // passed by value for channel semantics
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("dispatcher panicked: %v", p)
		}
		outcome := metrics.OutcomeOK
		if err != nil {
			outcome = metrics.OutcomeError
		}
		metrics.RecordNotification(string(n.Kind), w.backend, outcome)
	}()
	return w.dispatcher.Notify(ctx, n)
}

// Pool runs several workers against one queue. A single worker keeps
// delivery in enqueue order.
type Pool struct {
	workers []*Worker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates count workers.
func NewPool(count int, queue Queue, dispatcher Dispatcher, opts ...Option) *Pool {
	if count < 1 {
		count = 1
	}
	p := &Pool{
		workers: make([]*Worker, count),
		queue:   queue,
		logger:  logger.Named("notify-pool"),
	}
	for i := range p.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = New(queue, dispatcher, wopts...)
	}
	return p
}

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue, lets workers drain it, and waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			_ = w.Shutdown(ctx)
		}
	}
	return nil
}
