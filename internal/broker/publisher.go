package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/itemforge/imagegen/internal/platform/logger"
)

// ChannelProvider yields a usable broker channel. Implemented by
// ConnectionManager; tests substitute a fake.
type ChannelProvider interface {
	Channel() (Channel, error)
}

// Publisher writes JSON messages with persistent delivery mode to the
// durable queues, so messages survive a broker restart.
type Publisher struct {
	provider    ChannelProvider
	taskQueue   string
	resultQueue string
	logger      *slog.Logger
}

// NewPublisher creates a Publisher bound to the given queues.
func NewPublisher(provider ChannelProvider, taskQueue, resultQueue string, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{
		provider:    provider,
		taskQueue:   taskQueue,
		resultQueue: resultQueue,
		logger:      log.With(slog.String("component", "publisher")),
	}
}

// PublishTask publishes a task message to the task queue. The trace-ID
// carried by the context, if any, travels in the message headers so the
// worker can correlate its logs with the originating request.
func (p *Publisher) PublishTask(ctx context.Context, msg TaskMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	headers := amqp.Table{}
	if traceID := logger.TraceIDFromContext(ctx); traceID != "" {
		headers["trace_id"] = traceID
	}

	return p.publish(ctx, p.taskQueue, msg, headers)
}

// PublishResult publishes a result message to the result queue.
func (p *Publisher) PublishResult(ctx context.Context, msg ResultMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	return p.publish(ctx, p.resultQueue, msg, nil)
}

func (p *Publisher) publish(ctx context.Context, queue string, msg any, headers amqp.Table) error {
	ch, err := p.provider.Channel()
	if err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = ch.Publish(
		"",    // exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Headers:      headers,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("%w: publish to %s: %v", ErrNotConnected, queue, err)
	}

	log := logger.FromContextOrDefault(ctx, p.logger)
	log.Debug("message published", "queue", queue, "bytes", len(body))
	return nil
}
