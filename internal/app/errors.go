package service

import "errors"

var (
	// ErrInvalidPrescription is returned when a calculation has no cadence.
	ErrInvalidPrescription = errors.New("service: invalid prescription")
	// ErrNotStarted is returned by operations that need a started service.
	ErrNotStarted = errors.New("service: not started")
)
