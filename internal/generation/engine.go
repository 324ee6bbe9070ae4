package generation

import (
	"context"

	"github.com/google/uuid"

	"github.com/itemforge/imagegen/internal/domain"
)

// Engine defines the interface for producing an image from generation
// parameters. Implementations may be slow and may hold exclusive access
// to a scarce compute resource; the caller serializes invocations.
type Engine interface {
	// GenerateImage synthesizes an image for the given request and
	// returns a URL referencing the stored artifact. An empty URL with
	// a nil error is treated as a failure by the caller.
	GenerateImage(ctx context.Context, requestID uuid.UUID, params domain.GenerationParams) (string, error)
}
