package notify

import "errors"

var (
	// ErrUndeliverable wraps any failure to hand a notification to its backend.
	ErrUndeliverable = errors.New("notify: notification undeliverable")
	// ErrQueueFull is returned by Async when the delivery queue is at capacity.
	ErrQueueFull = errors.New("notify: delivery queue full")
	// ErrUnknownBackend is returned by Build for an unsupported backend name.
	ErrUnknownBackend = errors.New("notify: unknown backend")
)
