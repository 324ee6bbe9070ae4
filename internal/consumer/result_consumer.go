// Package consumer implements the gateway-side result consumer loop: it
// pulls worker-produced result messages and reconciles them onto the
// persisted request records.
package consumer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/itemforge/imagegen/internal/broker"
	"github.com/itemforge/imagegen/internal/domain"
	"github.com/itemforge/imagegen/internal/store"
)

// ResultConsumer is the long-lived result consumer loop. Every message is
// acknowledged after the reconciliation attempt, success or failure, so a
// poison message can never block the queue. Persistence failures are
// logged, not retried; this is a best-effort reconciliation path.
type ResultConsumer struct {
	provider broker.ChannelProvider
	requests store.RequestStore
	queue    string
	backoff  time.Duration
	logger   *slog.Logger

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewResultConsumer creates a result consumer bound to the given queue.
func NewResultConsumer(
	provider broker.ChannelProvider,
	requests store.RequestStore,
	queue string,
	backoff time.Duration,
	log *slog.Logger,
) *ResultConsumer {
	if log == nil {
		log = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &ResultConsumer{
		provider:   provider,
		requests:   requests,
		queue:      queue,
		backoff:    backoff,
		logger:     log.With(slog.String("component", "result_consumer")),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start launches the consumer loop goroutine.
func (c *ResultConsumer) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run()
	}()
}

// Stop signals the loop to exit and waits for it to drain.
func (c *ResultConsumer) Stop() {
	c.cancelFunc()
	c.wg.Wait()
}

func (c *ResultConsumer) run() {
	c.logger.Info("result consumer starting", "queue", c.queue)

	for {
		if c.ctx.Err() != nil {
			c.logger.Info("result consumer stopping")
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

		deliveries, err := ch.Consume(
			c.queue, // queue
			"",      // consumer
			false,   // auto-ack
			false,   // exclusive
			false,   // no-local
			false,   // no-wait
			nil,     // args
		)
		if err != nil {
			c.logger.Error("failed to start consuming, reconnecting", "error", err)
			if !c.sleep() {
				return
			}
			continue
		}

		c.logger.Info("connected to broker, waiting for results")

		if !c.consume(deliveries) {
			return
		}
		c.logger.Warn("delivery channel closed, reconnecting")
		if !c.sleep() {
			return
		}
	}
}

func (c *ResultConsumer) consume(deliveries <-chan amqp.Delivery) bool {
	for {
		select {
		case <-c.ctx.Done():
			c.logger.Info("result consumer stopping")
			return false
		case d, ok := <-deliveries:
			if !ok {
				return true
			}
			c.handleDelivery(d)
		}
	}
}

// handleDelivery applies a single result message to the store. The
// message is acknowledged unconditionally afterwards.
//
// The store write runs on a non-cancellable context: the deferred ack
// fires regardless, so a write aborted by shutdown would lose the
// outcome permanently and strand the record at Processing. Stop waits
// for this handler to finish instead.
func (c *ResultConsumer) handleDelivery(d amqp.Delivery) {
	defer c.ack(d)

	ctx := context.WithoutCancel(c.ctx)

	msg, err := broker.DecodeResultMessage(d.Body)
	if err != nil {
		c.logger.Warn("dropping malformed result message", "error", err)
		return
	}

	log := c.logger.With(
		slog.String("request_id", msg.RequestID.String()),
		slog.String("status", string(msg.Status)))
	log.Info("result received")

	imageURL := ""
	if msg.Status == domain.StatusCompleted && msg.ImageURL != nil {
		imageURL = *msg.ImageURL
	}

	if err := c.requests.RecordResult(ctx, msg.RequestID, msg.Status, imageURL); err != nil {
		if store.IsNotFoundError(err) {
			// The record may have been removed out of band; retrying
			// cannot help.
			log.Warn("result for unknown request, dropping", "error", err)
			return
		}
		// A lost status update never blocks the queue.
		log.Error("failed to record result", "error", err)
		return
	}

	log.Info("request record updated")
}

func (c *ResultConsumer) ack(d amqp.Delivery) {
	if err := d.Ack(false); err != nil {
		c.logger.Error("failed to ack result message", "error", err)
	}
}

func (c *ResultConsumer) sleep() bool {
	select {
	case <-c.ctx.Done():
		return false
	case <-time.After(c.backoff):
		return true
	}
}
