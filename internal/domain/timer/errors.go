package timer

import "errors"

var (
	// ErrCapacityExceeded is returned by Create when the registry is full.
	ErrCapacityExceeded = errors.New("timer: maximum number of active timers reached")
	// ErrInvalidDuration is returned by Create for a non-positive or non-finite duration.
	ErrInvalidDuration = errors.New("timer: duration must be a positive number of minutes")
	// ErrPersistence wraps store failures reported to the persist-error hook.
	ErrPersistence = errors.New("timer: persistence failure")
	// ErrUnsupportedVersion is returned when the stored document is newer than this build understands.
	ErrUnsupportedVersion = errors.New("timer: unsupported document version")
	// ErrMalformedDocument is returned when the stored document is not one of the known shapes.
	ErrMalformedDocument = errors.New("timer: malformed document")
)
