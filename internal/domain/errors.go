// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an identifier is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrEmptyRequestID is returned when a request ID is empty.
	ErrEmptyRequestID = errors.New("request ID cannot be empty")

	// ErrEmptyPrompt is returned when the required prompt is empty.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")

	// ErrInvalidStatus is returned when a request status is not valid.
	ErrInvalidStatus = errors.New("invalid request status")

	// ErrMissingImageURL is returned when a completed request carries no
	// artifact reference.
	ErrMissingImageURL = errors.New("completed request must carry an image URL")

	// ErrUnexpectedImageURL is returned when a non-completed request
	// carries an artifact reference.
	ErrUnexpectedImageURL = errors.New("only a completed request may carry an image URL")
)
