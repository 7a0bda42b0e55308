package timer

import (
	"fmt"
	"time"

	"github.com/okian/dripcue/internal/clock"
	"github.com/okian/dripcue/pkg/logger"
)

// Defaults.
const (
	DefaultMaxActive             = 7
	DefaultNearEndThreshold      = 5 * time.Minute
	DefaultSweepPeriod           = 10 * time.Second
	DefaultStoreKey              = "drip-calc-timers"
	DefaultLegacyDefaultDuration = 60 * time.Minute
)

// Messages renders notification text.
type Messages struct {
	NearEnd   func(e Entry, threshold time.Duration) (title, body string)
	Completed func(e Entry) (title, body string)
}

// DefaultMessages returns English notification text.
func DefaultMessages() Messages {
	return Messages{
		NearEnd: func(e Entry, threshold time.Duration) (string, string) {
			return "Infusion ending soon",
				fmt.Sprintf("%s (%s mL) ends in %d minutes", e.Label, e.VolumeMl, int(threshold.Minutes()))
		},
		Completed: func(e Entry) (string, string) {
			return "Infusion complete",
				fmt.Sprintf("%s (%s mL) has finished", e.Label, e.VolumeMl)
		},
	}
}

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithClock sets the time source used for creation and load-time expiry.
func WithClock(c clock.Clock) Option {
	return func(r *Registry) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// WithMaxActive sets the cap on concurrent countdowns.
func WithMaxActive(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxActive = n
		}
	}
}

// WithNearEndThreshold sets how long before the end the near-end warning fires.
func WithNearEndThreshold(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.nearEnd = d
		}
	}
}

// WithStoreKey sets the key the registry document is stored under.
func WithStoreKey(key string) Option {
	return func(r *Registry) {
		if key != "" {
			r.key = key
		}
	}
}

// WithLegacyDefaultDuration sets the duration assumed for legacy records whose
// start time cannot be recovered.
func WithLegacyDefaultDuration(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.legacyDuration = d
		}
	}
}

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// WithOnPersistError registers a hook called with every persistence failure.
// The error wraps ErrPersistence.
func WithOnPersistError(fn func(error)) Option {
	return func(r *Registry) {
		r.onPersistError = fn
	}
}

// WithMessages overrides notification text.
func WithMessages(m Messages) Option {
	return func(r *Registry) {
		if m.NearEnd != nil {
			r.messages.NearEnd = m.NearEnd
		}
		if m.Completed != nil {
			r.messages.Completed = m.Completed
		}
	}
}
