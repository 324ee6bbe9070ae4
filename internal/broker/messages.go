package broker

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/itemforge/imagegen/internal/domain"
)

// TaskMessage is the payload published to the task queue for each accepted
// generation request. The request ID is assigned before the message is
// published, so a worker can always correlate its result back to a record.
type TaskMessage struct {
	RequestID uuid.UUID               `json:"request_id"`
	Params    domain.GenerationParams `json:"params"`
}

// Validate checks that the message carries everything a worker needs.
func (m *TaskMessage) Validate() error {
	if m.RequestID == uuid.Nil {
		return fmt.Errorf("%w: missing request_id", ErrMalformedMessage)
	}
	if err := m.Params.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return nil
}

// ResultMessage is the payload published to the result queue once a worker
// finished (or failed) a task. ImageURL is nil for failed results.
type ResultMessage struct {
	RequestID uuid.UUID            `json:"request_id"`
	Status    domain.RequestStatus `json:"status"`
	ImageURL  *string              `json:"image_url"`
}

// NewCompletedResult builds the result message for a successful generation.
func NewCompletedResult(requestID uuid.UUID, imageURL string) ResultMessage {
	return ResultMessage{
		RequestID: requestID,
		Status:    domain.StatusCompleted,
		ImageURL:  &imageURL,
	}
}

// NewFailedResult builds the result message for a failed generation.
func NewFailedResult(requestID uuid.UUID) ResultMessage {
	return ResultMessage{
		RequestID: requestID,
		Status:    domain.StatusFailed,
	}
}

// Validate checks the result invariants: the status must be terminal, and
// the artifact URL must be present exactly when the status is Completed.
func (m *ResultMessage) Validate() error {
	if m.RequestID == uuid.Nil {
		return fmt.Errorf("%w: missing request_id", ErrMalformedMessage)
	}
	if !m.Status.IsTerminal() {
		return fmt.Errorf("%w: status %q is not terminal", ErrMalformedMessage, m.Status)
	}
	if m.Status == domain.StatusCompleted && (m.ImageURL == nil || *m.ImageURL == "") {
		return fmt.Errorf("%w: completed result without image_url", ErrMalformedMessage)
	}
	if m.Status == domain.StatusFailed && m.ImageURL != nil && *m.ImageURL != "" {
		return fmt.Errorf("%w: failed result carries image_url", ErrMalformedMessage)
	}
	return nil
}

// DecodeTaskMessage parses and validates a task queue payload. Unknown
// fields are rejected so schema drift surfaces immediately instead of
// silently defaulting.
func DecodeTaskMessage(body []byte) (*TaskMessage, error) {
	var msg TaskMessage
	if err := decodeStrict(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DecodeResultMessage parses and validates a result queue payload.
func DecodeResultMessage(body []byte) (*ResultMessage, error) {
	var msg ResultMessage
	if err := decodeStrict(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

func decodeStrict(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
