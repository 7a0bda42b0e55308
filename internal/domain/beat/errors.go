package beat

import "errors"

var (
	// ErrInvalidInterval is returned when a beat interval is not a positive finite number.
	ErrInvalidInterval = errors.New("beat: interval must be a positive number of milliseconds")
	// ErrNotRunning is returned by operations that require a running scheduler.
	ErrNotRunning = errors.New("beat: scheduler is not running")
)
