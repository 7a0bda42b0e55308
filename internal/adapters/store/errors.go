package store

import "errors"

var (
	// ErrRead wraps any backend failure while loading a key.
	ErrRead = errors.New("store: read failed")
	// ErrWrite wraps any backend failure while saving a key.
	ErrWrite = errors.New("store: write failed")
	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("store: unknown backend")
	// ErrInvalidKey is returned for keys that cannot be mapped onto the backend.
	ErrInvalidKey = errors.New("store: invalid key")
)
