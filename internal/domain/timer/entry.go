// Package timer implements the registry of concurrent infusion countdowns:
// creation under a fixed cap, persistence across restarts, and one-shot
// near-end and completed notifications driven by a periodic sweep.
package timer

import (
	"context"
	"time"

	"github.com/okian/dripcue/internal/domain/model"
)

// Entry is one countdown. EndTime is always after StartTime.
type Entry struct {
	ID            string
	Label         string
	VolumeMl      string
	StartTime     time.Time
	EndTime       time.Time
	WarnedNearEnd bool
}

// Remaining returns the time left at now, never negative.
func (e Entry) Remaining(now time.Time) time.Duration {
	if d := e.EndTime.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Duration is the full length of the countdown.
func (e Entry) Duration() time.Duration {
	return e.EndTime.Sub(e.StartTime)
}

// Progress is the elapsed fraction of e at now, clamped to [0, 1].
func Progress(e Entry, now time.Time) float64 {
	total := e.Duration()
	if total <= 0 {
		return 1
	}
	p := float64(now.Sub(e.StartTime)) / float64(total)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}

// Store persists the registry document under a key.
type Store interface {
	Read(ctx context.Context, key string) ([]byte, bool, error)
	Write(ctx context.Context, key string, data []byte) error
}

// Dispatcher delivers notifications. Delivery is best effort.
type Dispatcher interface {
	Notify(ctx context.Context, n model.Notification) error
}

// SweepResult reports what one sweep did.
type SweepResult struct {
	Skipped   bool     // another sweep was in flight
	NearEnd   []string // ids warned in this sweep
	Completed []string // ids that completed with a notification
	Expired   []string // every id removed, notified or not
	Persisted bool
}
