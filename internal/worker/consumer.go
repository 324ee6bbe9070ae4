// Package worker implements the inference worker's consumer loop: it
// pulls task messages one at a time, runs the generation engine, and
// reports the outcome on the result queue.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/itemforge/imagegen/internal/broker"
	"github.com/itemforge/imagegen/internal/generation"
	"github.com/itemforge/imagegen/internal/platform/logger"
	"github.com/itemforge/imagegen/internal/store"
)

// ResultPublisher defines the producer-side interface for reporting task
// outcomes back to the gateway.
type ResultPublisher interface {
	PublishResult(ctx context.Context, msg broker.ResultMessage) error
}

// Consumer is the long-lived task consumer loop. It holds at most one
// unacknowledged message at a time (prefetch 1) because the generation
// engine is assumed to hold exclusive access to a scarce compute
// resource. Transient broker errors never terminate the loop; it retries
// after a fixed backoff until stopped.
type Consumer struct {
	provider  broker.ChannelProvider
	requests  store.RequestStore
	engine    generation.Engine
	publisher ResultPublisher
	queue     string
	workerTag string
	backoff   time.Duration
	logger    *slog.Logger

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewConsumer creates a task consumer bound to the given queue. The
// workerTag is stamped onto every request the consumer claims, for
// observability only.
func NewConsumer(
	provider broker.ChannelProvider,
	requests store.RequestStore,
	engine generation.Engine,
	publisher ResultPublisher,
	queue string,
	workerTag string,
	backoff time.Duration,
	log *slog.Logger,
) *Consumer {
	if log == nil {
		log = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		provider:   provider,
		requests:   requests,
		engine:     engine,
		publisher:  publisher,
		queue:      queue,
		workerTag:  workerTag,
		backoff:    backoff,
		logger:     log.With(slog.String("component", "task_consumer")),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start launches the consumer loop goroutine.
func (c *Consumer) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run()
	}()
}

// Stop signals the loop to exit and waits for the in-flight message, if
// any, to finish processing.
func (c *Consumer) Stop() {
	c.cancelFunc()
	c.wg.Wait()
}

func (c *Consumer) run() {
	c.logger.Info("task consumer starting", "queue", c.queue)

	for {
		if c.ctx.Err() != nil {
			c.logger.Info("task consumer stopping")
			return
		}

		ch, err := c.provider.Channel()
		if err != nil {
			c.logger.Error("broker connection failed, retrying",
				"error", err,
				"retry_in", c.backoff.String())
			if !c.sleep() {
				return
			}
			continue
		}

		// One unacknowledged message at a time: the engine owns the
		// compute resource exclusively.
		if err := ch.Qos(1, 0, false); err != nil {
			c.logger.Error("failed to set prefetch, reconnecting", "error", err)
			if !c.sleep() {
				return
			}
			continue
		}

		deliveries, err := ch.Consume(
			c.queue,     // queue
			c.workerTag, // consumer
			false,       // auto-ack
			false,       // exclusive
			false,       // no-local
			false,       // no-wait
			nil,         // args
		)
		if err != nil {
			c.logger.Error("failed to start consuming, reconnecting", "error", err)
			if !c.sleep() {
				return
			}
			continue
		}

		c.logger.Info("connected to broker, waiting for tasks")

		if !c.consume(deliveries) {
			return
		}
		// Delivery channel closed underneath us; reconnect.
		c.logger.Warn("delivery channel closed, reconnecting")
		if !c.sleep() {
			return
		}
	}
}

// consume drains the delivery channel until it closes (returns true) or
// the consumer is stopped (returns false).
func (c *Consumer) consume(deliveries <-chan amqp.Delivery) bool {
	for {
		select {
		case <-c.ctx.Done():
			c.logger.Info("task consumer stopping")
			return false
		case d, ok := <-deliveries:
			if !ok {
				return true
			}
			c.handleDelivery(d)
		}
	}
}

// handleDelivery processes a single task message. The acknowledgment is
// sent only after the result publish attempt, so a crash mid-processing
// leaves the message for redelivery.
//
// The message runs on a non-cancellable context: once dispatched, a
// task runs to completion or to process crash. Stop waits for the
// in-flight message; only the loop's select and backoff observe
// cancellation. Aborting the engine call on shutdown would fold a
// healthy request into a Failed result and ack away its redelivery.
func (c *Consumer) handleDelivery(d amqp.Delivery) {
	ctx := context.WithoutCancel(c.ctx)
	log := c.logger

	if traceID, ok := d.Headers["trace_id"].(string); ok && traceID != "" {
		ctx = logger.WithTraceID(ctx, traceID)
		log = log.With(slog.String("trace_id", traceID))
	}
	ctx = logger.WithLogger(ctx, log)

	msg, err := broker.DecodeTaskMessage(d.Body)
	if err != nil {
		// Without a request ID there is no record to fail and no
		// result to publish; drop the message so it cannot wedge
		// the queue.
		log.Warn("dropping malformed task message", "error", err)
		c.ack(d)
		return
	}

	log = log.With(slog.String("request_id", msg.RequestID.String()))
	log.Info("task received")

	if err := c.requests.ClaimProcessing(ctx, msg.RequestID, c.workerTag); err != nil {
		// At-least-once delivery: a redelivered task may arrive after
		// the outcome was already recorded. The claim is refused but
		// the task still runs; terminal writes are last-write-wins.
		log.Warn("could not claim request, processing anyway", "error", err)
	}

	result := c.process(ctx, log, msg)

	if err := c.publisher.PublishResult(ctx, result); err != nil {
		log.Error("failed to publish result", "error", err)
	}
	c.ack(d)
}

// process runs the engine and folds any failure into a Failed result.
func (c *Consumer) process(ctx context.Context, log *slog.Logger, msg *broker.TaskMessage) broker.ResultMessage {
	imageURL, err := c.engine.GenerateImage(ctx, msg.RequestID, msg.Params)
	if err != nil {
		log.Error("generation failed", "error", err)
		return broker.NewFailedResult(msg.RequestID)
	}
	if imageURL == "" {
		log.Error("generation produced no artifact")
		return broker.NewFailedResult(msg.RequestID)
	}

	log.Info("generation completed", "image_url", imageURL)
	return broker.NewCompletedResult(msg.RequestID, imageURL)
}

func (c *Consumer) ack(d amqp.Delivery) {
	if err := d.Ack(false); err != nil {
		c.logger.Error("failed to ack task message", "error", err)
	}
}

// sleep waits out the backoff interval. Returns false when the consumer
// was stopped while waiting.
func (c *Consumer) sleep() bool {
	select {
	case <-c.ctx.Done():
		return false
	case <-time.After(c.backoff):
		return true
	}
}
