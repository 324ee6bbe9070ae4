package broker

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itemforge/imagegen/internal/domain"
	"github.com/itemforge/imagegen/internal/platform/logger"
)

// fakeChannel records published messages and satisfies the Channel interface.
type fakeChannel struct {
	published  []amqp.Publishing
	queues     []string
	publishErr error
}

func (f *fakeChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, msg)
	f.queues = append(f.queues, key)
	return nil
}

func (f *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeChannel) Qos(prefetchCount, prefetchSize int, global bool) error {
	return nil
}

// fakeProvider hands out a fixed channel or a fixed error.
type fakeProvider struct {
	ch  Channel
	err error
}

func (f *fakeProvider) Channel() (Channel, error) {
	return f.ch, f.err
}

func validTask() TaskMessage {
	return TaskMessage{
		RequestID: uuid.New(),
		Params: domain.GenerationParams{
			Prompt:            "a shield of oak leaves",
			NumInferenceSteps: 50,
			GuidanceScale:     7.5,
			Seed:              50,
		},
	}
}

func TestPublishTaskUsesPersistentJSONDelivery(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisher(&fakeProvider{ch: ch}, "tasks", "results", nil)

	err := p.PublishTask(context.Background(), validTask())
	require.NoError(t, err)

	require.Len(t, ch.published, 1)
	assert.Equal(t, "tasks", ch.queues[0])
	assert.Equal(t, uint8(amqp.Persistent), ch.published[0].DeliveryMode)
	assert.Equal(t, "application/json", ch.published[0].ContentType)
	assert.Contains(t, string(ch.published[0].Body), `"prompt":"a shield of oak leaves"`)
}

func TestPublishTaskCarriesTraceHeader(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisher(&fakeProvider{ch: ch}, "tasks", "results", nil)

	ctx := logger.WithTraceID(context.Background(), "trace-123")
	require.NoError(t, p.PublishTask(ctx, validTask()))

	require.Len(t, ch.published, 1)
	assert.Equal(t, "trace-123", ch.published[0].Headers["trace_id"])
}

func TestPublishTaskRejectsInvalidMessage(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisher(&fakeProvider{ch: ch}, "tasks", "results", nil)

	msg := validTask()
	msg.Params.Prompt = ""

	err := p.PublishTask(context.Background(), msg)
	assert.ErrorIs(t, err, ErrMalformedMessage)
	assert.Empty(t, ch.published)
}

func TestPublishResultRoutesToResultQueue(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisher(&fakeProvider{ch: ch}, "tasks", "results", nil)

	err := p.PublishResult(context.Background(), NewFailedResult(uuid.New()))
	require.NoError(t, err)

	require.Len(t, ch.queues, 1)
	assert.Equal(t, "results", ch.queues[0])
}

func TestPublishSurfacesChannelUnavailable(t *testing.T) {
	p := NewPublisher(&fakeProvider{err: ErrNotConnected}, "tasks", "results", nil)

	err := p.PublishTask(context.Background(), validTask())
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestPublishSurfacesPublishFailure(t *testing.T) {
	ch := &fakeChannel{publishErr: errors.New("channel/connection is not open")}
	p := NewPublisher(&fakeProvider{ch: ch}, "tasks", "results", nil)

	err := p.PublishResult(context.Background(), NewFailedResult(uuid.New()))
	assert.ErrorIs(t, err, ErrNotConnected)
}
