package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/itemforge/imagegen/internal/broker"
	"github.com/itemforge/imagegen/internal/domain"
	"github.com/itemforge/imagegen/internal/platform/logger"
	"github.com/itemforge/imagegen/internal/store"
)

// TaskPublisher defines the producer-side broker interface the service
// depends on.
type TaskPublisher interface {
	// PublishTask publishes a task message to the durable task queue
	// with persistent delivery mode.
	PublishTask(ctx context.Context, msg broker.TaskMessage) error
}

// Common sentinel errors for GenerationService.
var (
	// ErrDispatchFailed indicates the task could not be handed to the
	// broker after the record was created. The record is marked Failed
	// before this error is returned.
	ErrDispatchFailed = errors.New("failed to dispatch generation task")
)

// GenerationService implements the producer and read paths of the
// pipeline: it persists incoming requests, hands them to the workers
// through the task queue, and exposes the current record state.
type GenerationService struct {
	store     store.RequestStore
	publisher TaskPublisher
	logger    *slog.Logger
}

// NewGenerationService creates a new GenerationService.
func NewGenerationService(requestStore store.RequestStore, publisher TaskPublisher, log *slog.Logger) *GenerationService {
	if log == nil {
		log = slog.Default()
	}
	return &GenerationService{
		store:     requestStore,
		publisher: publisher,
		logger:    log.With(slog.String("component", "generation_service")),
	}
}

// Dispatch creates a Queued record for the given params and publishes the
// corresponding task message. Exactly one create and one publish attempt
// happen per call; retry policy belongs to the caller.
//
// When the publish fails the record is marked Failed before the error is
// surfaced, so a request the dispatcher gave up on is never left Queued.
func (s *GenerationService) Dispatch(ctx context.Context, params domain.GenerationParams) (*domain.GenerationRequest, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	req, err := domain.NewGenerationRequest(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if err := s.store.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create generation request: %w", err)
	}

	msg := broker.TaskMessage{
		RequestID: req.ID,
		Params:    params,
	}
	if err := s.publisher.PublishTask(ctx, msg); err != nil {
		log.Error("failed to publish task, marking request failed",
			"request_id", req.ID.String(),
			"error", err)

		// Best effort: a failed mark-Failed leaves the record Queued,
		// which an operator can reconcile; the caller still sees the
		// dispatch failure either way.
		if markErr := s.store.RecordResult(ctx, req.ID, domain.StatusFailed, ""); markErr != nil {
			log.Error("failed to mark request failed after publish error",
				"request_id", req.ID.String(),
				"error", markErr)
		}

		return nil, fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	log.Info("generation task dispatched", "request_id", req.ID.String())
	return req, nil
}

// GetStatus retrieves the current record for the given identifier.
// It is a pure read with no side effects. Returns
// store.ErrRequestNotFound when no such record exists.
func (s *GenerationService) GetStatus(ctx context.Context, id uuid.UUID) (*domain.GenerationRequest, error) {
	req, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return req, nil
}
