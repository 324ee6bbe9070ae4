package broker

import "errors"

// Common errors returned by the broker package.
var (
	// ErrNotConnected is returned when no usable channel could be
	// established. Callers decide whether to retry or fail the
	// in-flight operation.
	ErrNotConnected = errors.New("broker connection unavailable")

	// ErrMalformedMessage is returned when a queue payload cannot be
	// decoded into a valid message.
	ErrMalformedMessage = errors.New("malformed message")
)
