package generation

import "errors"

// Common errors returned by the generation package
var (
	// ErrGenerationFailed is returned when image synthesis fails for any general reason
	ErrGenerationFailed = errors.New("failed to generate image")

	// ErrEmptyArtifact is returned when the backend produced no image data
	ErrEmptyArtifact = errors.New("backend returned no image data")

	// ErrInvalidConfig is returned when the engine configuration is invalid
	ErrInvalidConfig = errors.New("invalid engine configuration")
)
