// Package pulse provides the outputs a metronome beat drives: a synthesised
// tone, a terminal bell and a WebSocket hub that forwards beats to browsers.
package pulse

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/dripcue/internal/domain/beat"
	"github.com/okian/dripcue/pkg/logger"
	"github.com/okian/dripcue/pkg/metrics"
)

// ErrBackendUnavailable is returned by Unlock when an output cannot be
// activated, e.g. no audio device.
var ErrBackendUnavailable = errors.New("pulse: backend unavailable")

var (
	_ beat.PulseSink  = Multi(nil)
	_ beat.VisualSink = Multi(nil)
	_ beat.Unlocker   = Multi(nil)
)

// Multi fans beats out to several sinks. A sink that panics does not stop
// the others from receiving the beat.
type Multi []beat.PulseSink

func (m Multi) EmitPulse() {
	for _, s := range m {
		guard(s.EmitPulse)
	}
}

func (m Multi) EmitHaptic() {
	for _, s := range m {
		guard(s.EmitHaptic)
	}
}

// SetPulsing forwards the visual state to members that render it.
func (m Multi) SetPulsing(on bool) {
	for _, s := range m {
		if v, ok := s.(beat.VisualSink); ok {
			guard(func() { v.SetPulsing(on) })
		}
	}
}

// Unlock activates every member that needs it and joins their failures.
func (m Multi) Unlock() error {
	var errs []error
	for _, s := range m {
		if u, ok := s.(beat.Unlocker); ok {
			if err := u.Unlock(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func guard(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			logger.Named("pulse").Error(context.Background(), "pulse sink panicked",
				logger.String("panic", fmt.Sprint(p)))
			metrics.RecordPulseSinkError("multi", "panic")
		}
	}()
	fn()
}
