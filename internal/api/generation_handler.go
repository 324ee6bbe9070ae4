package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/itemforge/imagegen/internal/api/shared"
	"github.com/itemforge/imagegen/internal/domain"
	"github.com/itemforge/imagegen/internal/platform/logger"
)

// GenerationService defines the service operations the handler depends on.
type GenerationService interface {
	// Dispatch persists a new request and publishes the matching task.
	Dispatch(ctx context.Context, params domain.GenerationParams) (*domain.GenerationRequest, error)

	// GetStatus returns the current record for the given identifier.
	GetStatus(ctx context.Context, id uuid.UUID) (*domain.GenerationRequest, error)
}

// GenerateRequest represents the request body for submitting a new
// generation. Omitted tuning fields fall back to the service defaults.
type GenerateRequest struct {
	Prompt            string   `json:"prompt"              validate:"required,min=1"`
	NegativePrompt    string   `json:"negative_prompt"     validate:"omitempty"`
	NumInferenceSteps *int     `json:"num_inference_steps" validate:"omitempty,gte=1,lte=500"`
	GuidanceScale     *float64 `json:"guidance_scale"      validate:"omitempty,gt=0"`
	// The inference backend takes a 32-bit seed.
	Seed *int64 `json:"seed" validate:"omitempty,gte=0,lte=2147483647"`
}

// GenerateResponse is returned on successful submission.
type GenerateResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// StatusResponse reports the current state of a generation request. The
// image URL is present only once the request has completed.
type StatusResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	ImageURL  string `json:"image_url,omitempty"`
}

// GenerationHandler handles generation-related HTTP requests.
type GenerationHandler struct {
	service GenerationService
}

// NewGenerationHandler creates a new GenerationHandler.
func NewGenerationHandler(service GenerationService) *GenerationHandler {
	return &GenerationHandler{service: service}
}

// Generate handles POST /api/v1/generate requests. The request is
// accepted with 202 once the record exists and the task is queued;
// generation itself happens asynchronously.
func (h *GenerationHandler) Generate(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), nil)

	var req GenerateRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusUnprocessableEntity,
			"Invalid generation parameters", err)
		return
	}

	record, err := h.service.Dispatch(r.Context(), toParams(req))
	if err != nil {
		log.Error("failed to dispatch generation request", "error", err)
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, GenerateResponse{
		RequestID: record.ID.String(),
		Status:    string(record.Status),
	})
}

// GetStatus handles GET /api/v1/status/{request_id} requests.
func (h *GenerationHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "request_id"))
	if err != nil {
		idErr := fmt.Errorf("%w: %v", domain.ErrInvalidID, err)
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(idErr), GetSafeErrorMessage(idErr), idErr)
		return
	}

	record, err := h.service.GetStatus(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	resp := StatusResponse{
		RequestID: record.ID.String(),
		Status:    string(record.Status),
	}
	if record.Status == domain.StatusCompleted {
		resp.ImageURL = record.ImageURL
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// toParams applies defaults for omitted tuning fields.
func toParams(req GenerateRequest) domain.GenerationParams {
	params := domain.GenerationParams{
		Prompt:            req.Prompt,
		NegativePrompt:    req.NegativePrompt,
		NumInferenceSteps: domain.DefaultSteps,
		GuidanceScale:     domain.DefaultGuidanceScale,
		Seed:              domain.DefaultSeed,
	}
	if req.NumInferenceSteps != nil {
		params.NumInferenceSteps = *req.NumInferenceSteps
	}
	if req.GuidanceScale != nil {
		params.GuidanceScale = *req.GuidanceScale
	}
	if req.Seed != nil {
		params.Seed = *req.Seed
	}
	return params
}
