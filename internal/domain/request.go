package domain

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus represents the processing state of a generation request
type RequestStatus string

// Possible request status values
const (
	StatusQueued     RequestStatus = "Queued"
	StatusProcessing RequestStatus = "Processing"
	StatusCompleted  RequestStatus = "Completed"
	StatusFailed     RequestStatus = "Failed"
)

// Default inference parameters applied when a client omits them.
const (
	DefaultSteps         = 50
	DefaultGuidanceScale = 7.5
	DefaultSeed          = 50
)

// GenerationParams holds the inference parameters carried from the client
// through the task queue to the worker. The core treats them as opaque
// beyond requiring a non-empty prompt.
type GenerationParams struct {
	Prompt            string  `json:"prompt"`
	NegativePrompt    string  `json:"negative_prompt"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	GuidanceScale     float64 `json:"guidance_scale"`
	Seed              int64   `json:"seed"`
}

// Validate checks that the params carry the fields a worker needs.
func (p GenerationParams) Validate() error {
	if p.Prompt == "" {
		return ErrEmptyPrompt
	}
	return nil
}

// GenerationRequest is the persisted record of a single image-generation
// request. It is created by the dispatcher, claimed by a worker, and
// finalized by the result consumer; it is never deleted by this service.
type GenerationRequest struct {
	ID                  uuid.UUID     `json:"id"`
	Prompt              string        `json:"prompt"`
	NegativePrompt      string        `json:"negative_prompt"`
	Steps               int           `json:"steps"`
	GuidanceScale       float64       `json:"guidance_scale"`
	Seed                int64         `json:"seed"`
	Status              RequestStatus `json:"status"`
	ImageURL            string        `json:"image_url,omitempty"`
	WorkerCorrelationID string        `json:"worker_correlation_id,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// NewGenerationRequest creates a new GenerationRequest from the given params.
// It generates a new UUID, sets the status to Queued, and sets the
// creation/update timestamps. Returns an error if validation fails.
func NewGenerationRequest(params GenerationParams) (*GenerationRequest, error) {
	req := &GenerationRequest{
		ID:             uuid.New(),
		Prompt:         params.Prompt,
		NegativePrompt: params.NegativePrompt,
		Steps:          params.NumInferenceSteps,
		GuidanceScale:  params.GuidanceScale,
		Seed:           params.Seed,
		Status:         StatusQueued,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	return req, nil
}

// Params reassembles the inference parameters carried by the record.
func (r *GenerationRequest) Params() GenerationParams {
	return GenerationParams{
		Prompt:            r.Prompt,
		NegativePrompt:    r.NegativePrompt,
		NumInferenceSteps: r.Steps,
		GuidanceScale:     r.GuidanceScale,
		Seed:              r.Seed,
	}
}

// Validate checks if the GenerationRequest has valid data.
// Returns an error if any field fails validation.
func (r *GenerationRequest) Validate() error {
	if r.ID == uuid.Nil {
		return ErrEmptyRequestID
	}

	if r.Prompt == "" {
		return ErrEmptyPrompt
	}

	if !r.Status.IsValid() {
		return ErrInvalidStatus
	}

	// image_url is present if and only if the request completed
	if r.Status == StatusCompleted && r.ImageURL == "" {
		return ErrMissingImageURL
	}
	if r.Status != StatusCompleted && r.ImageURL != "" {
		return ErrUnexpectedImageURL
	}

	return nil
}

// IsValid reports whether the status is one of the four known values.
func (s RequestStatus) IsValid() bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status permits no further transitions.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether moving from s to next is a legal
// forward transition. Terminal states accept no transitions, and no
// transition re-enters Queued.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	switch s {
	case StatusQueued:
		return next == StatusProcessing || next == StatusFailed
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}
