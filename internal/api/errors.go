package api

import (
	"errors"
	"net/http"

	"github.com/itemforge/imagegen/internal/domain"
	"github.com/itemforge/imagegen/internal/service"
	"github.com/itemforge/imagegen/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes based
// on the error type, so internal error types never leak to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity

	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	case errors.Is(err, service.ErrDispatchFailed):
		return http.StatusInternalServerError

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly message for
// the given error. Raw error strings never reach the client.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, store.ErrRequestNotFound):
		return "Generation request not found"

	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	case errors.Is(err, domain.ErrValidation):
		return "Invalid generation parameters"

	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid request identifier"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request data"

	case errors.Is(err, service.ErrDispatchFailed):
		return "Failed to queue generation request"

	default:
		return "An unexpected error occurred"
	}
}
