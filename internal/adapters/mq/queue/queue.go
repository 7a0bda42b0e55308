// Package queue is a bounded in-memory queue of notifications waiting for
// delivery. Enqueue never blocks: a full queue rejects the notification.
package queue

import (
	"context"
	"sync"

	"github.com/okian/dripcue/internal/domain/model"
	"github.com/okian/dripcue/pkg/metrics"
)

const defaultCapacity = 64

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds n to the queue. It returns false if the queue is full,
	// closed, or ctx is already done.
	Enqueue(ctx context.Context, n model.Notification) bool

	// Dequeue returns a channel that receives notifications in FIFO order.
	// The channel is closed when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan model.Notification

	Len() int
	Cap() int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	items    chan model.Notification
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a queue with the given options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.items = make(chan model.Notification, q.capacity)
	metrics.UpdateNotifyQueue(0, q.capacity)
	return q
}

// Enqueue adds a notification without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, n model.Notification) bool { //nolint:gocritic // passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed || ctx.Err() != nil {
		return false
	}
	select {
	case q.items <- n:
		metrics.UpdateNotifyQueue(len(q.items), q.capacity)
		return true
	default:
		return false
	}
}

// Dequeue returns a channel fed from the queue until it is closed or ctx ends.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan model.Notification {
	out := make(chan model.Notification)
	go func() {
		defer close(out)
		for n := range q.items {
			select {
			case out <- n:
				metrics.UpdateNotifyQueue(len(q.items), q.capacity)
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the number of queued notifications.
func (q *InMemoryQueue) Len() int { return len(q.items) }

// Cap returns the queue bound.
func (q *InMemoryQueue) Cap() int { return q.capacity }

// Close stops accepting notifications. Already queued ones can still be drained.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.items)
	q.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
