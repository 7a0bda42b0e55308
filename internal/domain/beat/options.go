package beat

import (
	"time"

	"github.com/okian/dripcue/internal/clock"
	"github.com/okian/dripcue/internal/domain/model"
	"github.com/okian/dripcue/pkg/logger"
)

// Defaults for the scheduler. Frame period stands in for the display refresh
// that drives the look-ahead loop.
const (
	DefaultLookAhead           = 100 * time.Millisecond
	DefaultPulseVisualDuration = 150 * time.Millisecond
	DefaultFramePeriod         = 16 * time.Millisecond
	DefaultMinInterval         = 10 * time.Millisecond
)

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// WithLookAhead sets how far ahead of now deadlines are armed.
func WithLookAhead(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.lookAhead = d
		}
	}
}

// WithFramePeriod sets the period of the tick loop.
func WithFramePeriod(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.framePeriod = d
		}
	}
}

// WithPulseVisualDuration sets how long the visual pulse stays on after a beat.
func WithPulseVisualDuration(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.visualDuration = d
		}
	}
}

// WithMinInterval sets the smallest accepted interval. Shorter requests are
// raised to it.
func WithMinInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.minInterval = d
		}
	}
}

// WithSoundEnabled sets the initial sound toggle.
func WithSoundEnabled(on bool) Option {
	return func(s *Scheduler) {
		s.soundEnabled = on
	}
}

// WithVibrationEnabled sets the initial haptic toggle.
func WithVibrationEnabled(on bool) Option {
	return func(s *Scheduler) {
		s.vibrationEnabled = on
	}
}

// WithVisualSink sets the receiver of the visual pulse toggle.
func WithVisualSink(v VisualSink) Option {
	return func(s *Scheduler) {
		s.visual = v
	}
}

// WithBeatObserver registers a callback invoked once per fired beat.
func WithBeatObserver(fn func(model.Beat)) Option {
	return func(s *Scheduler) {
		s.observer = fn
	}
}
