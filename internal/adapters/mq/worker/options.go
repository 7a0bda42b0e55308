package worker

import (
	"time"

	"github.com/okian/dripcue/pkg/logger"
)

// Option applies a configuration option to a Worker.
type Option func(*Worker)

// WithName sets the worker name used in logs.
func WithName(name string) Option {
	return func(w *Worker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithBackendLabel sets the backend label used in delivery metrics.
func WithBackendLabel(label string) Option {
	return func(w *Worker) {
		if label != "" {
			w.backend = label
		}
	}
}

// WithDeliveryTimeout bounds each downstream call.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.timeout = d
		}
	}
}
