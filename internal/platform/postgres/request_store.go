package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/itemforge/imagegen/internal/domain"
	"github.com/itemforge/imagegen/internal/platform/logger"
	"github.com/itemforge/imagegen/internal/store"
)

// RequestStore implements the store.RequestStore interface using a
// PostgreSQL database as the storage backend. Every write is a targeted
// single-row statement; the status guards live in the WHERE clauses so
// concurrent writers cannot regress a terminal status regardless of
// interleaving.
type RequestStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRequestStore creates a new PostgreSQL implementation of the
// store.RequestStore interface. The database pool is initialized and
// owned by the caller. If log is nil, a default logger will be used.
func NewRequestStore(db *sql.DB, log *slog.Logger) *RequestStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &RequestStore{
		db:     db,
		logger: log.With(slog.String("component", "request_store")),
	}
}

// Ensure RequestStore implements store.RequestStore
var _ store.RequestStore = (*RequestStore)(nil)

// Create implements store.RequestStore.Create.
func (s *RequestStore) Create(ctx context.Context, req *domain.GenerationRequest) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := req.Validate(); err != nil {
		log.Warn("request validation failed during create",
			slog.String("error", err.Error()),
			slog.String("request_id", req.ID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO generation_requests
			(id, prompt, negative_prompt, steps, guidance_scale, seed, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		req.ID,
		req.Prompt,
		req.NegativePrompt,
		req.Steps,
		req.GuidanceScale,
		req.Seed,
		req.Status,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create generation request",
			slog.String("error", err.Error()),
			slog.String("request_id", req.ID.String()))
		return MapError(err)
	}

	log.Info("generation request created",
		slog.String("request_id", req.ID.String()),
		slog.String("status", string(req.Status)))
	return nil
}

// GetByID implements store.RequestStore.GetByID.
func (s *RequestStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.GenerationRequest, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, prompt, negative_prompt, steps, guidance_scale, seed,
		       status, image_url, worker_correlation_id, created_at, updated_at
		FROM generation_requests
		WHERE id = $1
	`

	var (
		req       domain.GenerationRequest
		imageURL  sql.NullString
		workerTag sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&req.ID,
		&req.Prompt,
		&req.NegativePrompt,
		&req.Steps,
		&req.GuidanceScale,
		&req.Seed,
		&req.Status,
		&imageURL,
		&workerTag,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRequestNotFound
		}
		log.Error("failed to get generation request",
			slog.String("error", err.Error()),
			slog.String("request_id", id.String()))
		return nil, MapError(err)
	}

	req.ImageURL = imageURL.String
	req.WorkerCorrelationID = workerTag.String
	return &req, nil
}

// ClaimProcessing implements store.RequestStore.ClaimProcessing.
// The WHERE clause excludes terminal rows so a redelivered task cannot
// drag a finished request back to Processing.
func (s *RequestStore) ClaimProcessing(ctx context.Context, id uuid.UUID, workerTag string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE generation_requests
		SET status = $2, worker_correlation_id = $3, updated_at = $4
		WHERE id = $1 AND status NOT IN ($5, $6)
	`
	res, err := s.db.ExecContext(
		ctx,
		query,
		id,
		domain.StatusProcessing,
		workerTag,
		time.Now().UTC(),
		domain.StatusCompleted,
		domain.StatusFailed,
	)
	if err != nil {
		log.Error("failed to claim generation request",
			slog.String("error", err.Error()),
			slog.String("request_id", id.String()))
		return MapError(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if affected == 0 {
		return s.classifyMissedUpdate(ctx, id)
	}

	log.Info("generation request claimed",
		slog.String("request_id", id.String()),
		slog.String("worker_tag", workerTag))
	return nil
}

// RecordResult implements store.RequestStore.RecordResult.
// Only terminal statuses are accepted; Completed sets the artifact URL
// and Failed clears it, so the image_url-iff-Completed invariant holds
// for every row this method touches.
func (s *RequestStore) RecordResult(ctx context.Context, id uuid.UUID, status domain.RequestStatus, imageURL string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !status.IsTerminal() {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrInvalidStatus)
	}
	if status == domain.StatusCompleted && imageURL == "" {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrMissingImageURL)
	}

	var url sql.NullString
	if status == domain.StatusCompleted {
		url = sql.NullString{String: imageURL, Valid: true}
	}

	query := `
		UPDATE generation_requests
		SET status = $2, image_url = $3, updated_at = $4
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query, id, status, url, time.Now().UTC())
	if err != nil {
		log.Error("failed to record result",
			slog.String("error", err.Error()),
			slog.String("request_id", id.String()),
			slog.String("status", string(status)))
		return MapError(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if affected == 0 {
		return store.ErrRequestNotFound
	}

	log.Info("result recorded",
		slog.String("request_id", id.String()),
		slog.String("status", string(status)))
	return nil
}

// classifyMissedUpdate distinguishes "row does not exist" from "row is
// already terminal" after a guarded update matched nothing.
func (s *RequestStore) classifyMissedUpdate(ctx context.Context, id uuid.UUID) error {
	req, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !req.Status.CanTransitionTo(domain.StatusProcessing) {
		return store.ErrAlreadyFinalized
	}
	return store.ErrUpdateFailed
}
