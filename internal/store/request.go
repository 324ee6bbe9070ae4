package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/itemforge/imagegen/internal/domain"
)

// RequestStore defines the interface for generation request persistence.
// Connection-pool ownership lives with the caller; implementations only
// issue targeted, single-row statements so that the dispatcher, the task
// consumer, and the result consumer can share the store without any
// additional locking.
type RequestStore interface {
	// Create saves a new generation request to the store.
	// It handles domain validation internally.
	Create(ctx context.Context, req *domain.GenerationRequest) error

	// GetByID retrieves a request by its unique ID.
	// Returns ErrRequestNotFound if the request does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.GenerationRequest, error)

	// ClaimProcessing moves a request to Processing and stamps the
	// worker correlation tag. The update is guarded so a redelivered
	// task can never drag a terminal request back to Processing:
	// in that case ErrAlreadyFinalized is returned and the row is
	// left untouched. Returns ErrRequestNotFound for unknown ids.
	ClaimProcessing(ctx context.Context, id uuid.UUID, workerTag string) error

	// RecordResult writes a terminal outcome for the request. Completed
	// results carry the artifact URL; Failed results clear it. Terminal
	// writes are last-write-wins among terminal statuses so redelivered
	// results stay idempotent. Returns ErrRequestNotFound for unknown
	// ids and domain validation errors for non-terminal statuses.
	RecordResult(ctx context.Context, id uuid.UUID, status domain.RequestStatus, imageURL string) error
}
