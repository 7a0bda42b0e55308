package service

import (
	"time"

	"github.com/okian/dripcue/internal/clock"
	"github.com/okian/dripcue/internal/domain/timer"
	"github.com/okian/dripcue/pkg/logger"
)

const (
	// DefaultSweepPeriod is how often the sweep driver evaluates countdowns.
	DefaultSweepPeriod = 10 * time.Second
	// DefaultRedrawPeriod is how often the redraw driver refreshes views.
	DefaultRedrawPeriod = time.Second
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithClock sets the time source for both drivers.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSweepPeriod sets the sweep driver period.
func WithSweepPeriod(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sweepPeriod = d
		}
	}
}

// WithRedrawPeriod sets the redraw driver period.
func WithRedrawPeriod(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.redrawPeriod = d
		}
	}
}

// WithRedraw installs a read-only view callback. It receives a snapshot of
// the active countdowns and the time it was taken. Without one the redraw
// driver does not run.
func WithRedraw(fn func([]timer.Entry, time.Time)) Option {
	return func(s *Service) {
		s.onRedraw = fn
	}
}

// WithSweepObserver is called after every sweep with its result.
func WithSweepObserver(fn func(timer.SweepResult)) Option {
	return func(s *Service) {
		s.onSweep = fn
	}
}
