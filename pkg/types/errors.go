package types

import "errors"

// Engine lifecycle and lookup errors.
var (
	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("graph is closed")

	// ErrNotFound is returned when a vertex lookup matches no row.
	ErrNotFound = errors.New("record not found")

	// ErrTypeNotRegistered is returned when a type name has no registered
	// factory.
	ErrTypeNotRegistered = errors.New("record type not registered")
)
