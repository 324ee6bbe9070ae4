package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/itemforge/imagegen/internal/domain"
	"github.com/itemforge/imagegen/internal/service"
	"github.com/itemforge/imagegen/internal/store"
)

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"request not found", store.ErrRequestNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("lookup: %w", store.ErrRequestNotFound), http.StatusNotFound},
		{"validation", domain.ErrValidation, http.StatusUnprocessableEntity},
		{"invalid id", domain.ErrInvalidID, http.StatusBadRequest},
		{"invalid entity", store.ErrInvalidEntity, http.StatusBadRequest},
		{"dispatch failed", service.ErrDispatchFailed, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapErrorToStatusCode(tt.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "An unexpected error occurred"},
		{"request not found", store.ErrRequestNotFound, "Generation request not found"},
		{"validation", domain.ErrValidation, "Invalid generation parameters"},
		{"dispatch failed", service.ErrDispatchFailed, "Failed to queue generation request"},
		{"unknown leaks nothing", errors.New("pq: password authentication failed"), "An unexpected error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetSafeErrorMessage(tt.err))
		})
	}
}
