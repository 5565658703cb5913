package eventbus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grachmannico95/bank-ledger/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingConsumer struct {
	mu       sync.Mutex
	events   []Event
	failures int32
	delay    time.Duration
	workers  int
}

func (c *recordingConsumer) Consume(ctx context.Context, event Event) error {
	if atomic.AddInt32(&c.failures, -1) >= 0 {
		return errors.New("transient")
	}
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *recordingConsumer) GetWorkerCount() int {
	return c.workers
}

func (c *recordingConsumer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func newTestBus() EventBus {
	return New(logger.NewNop(), &Config{ChannelBuffer: 10, MaxRetries: 3, RetryDelay: time.Millisecond})
}

func TestEventBus_ShutdownDrainsQueuedEvents(t *testing.T) {
	bus := newTestBus()
	consumer := &recordingConsumer{workers: 1, delay: 5 * time.Millisecond}
	require.NoError(t, bus.Subscribe(EventTypeImportFinished, consumer))
	require.NoError(t, bus.Start(context.Background()))

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(context.Background(), Event{ID: "e", Type: EventTypeImportFinished}))
	}

	require.NoError(t, bus.Shutdown(context.Background()))
	assert.Equal(t, 5, consumer.count())
}

func TestEventBus_RetriesTransientFailures(t *testing.T) {
	bus := newTestBus()
	consumer := &recordingConsumer{workers: 1, failures: 2}
	require.NoError(t, bus.Subscribe(EventTypeImportFinished, consumer))
	require.NoError(t, bus.Start(context.Background()))

	require.NoError(t, bus.Publish(context.Background(), Event{ID: "e1", Type: EventTypeImportFinished}))
	require.NoError(t, bus.Shutdown(context.Background()))

	assert.Equal(t, 1, consumer.count())
}

func TestEventBus_PublishAfterShutdown(t *testing.T) {
	bus := newTestBus()
	require.NoError(t, bus.Subscribe(EventTypeImportFinished, &recordingConsumer{workers: 1}))
	require.NoError(t, bus.Start(context.Background()))
	require.NoError(t, bus.Shutdown(context.Background()))

	err := bus.Publish(context.Background(), Event{ID: "late", Type: EventTypeImportFinished})
	assert.ErrorIs(t, err, ErrBusClosed)

	// second shutdown is a no-op
	assert.NoError(t, bus.Shutdown(context.Background()))
}

func TestEventBus_PublishWithoutSubscriber(t *testing.T) {
	bus := newTestBus()
	assert.NoError(t, bus.Publish(context.Background(), Event{ID: "x", Type: EventType("unknown")}))
}

func TestEventBus_ShutdownTimeout(t *testing.T) {
	bus := newTestBus()
	consumer := &recordingConsumer{workers: 1, delay: 200 * time.Millisecond}
	require.NoError(t, bus.Subscribe(EventTypeImportFinished, consumer))
	require.NoError(t, bus.Start(context.Background()))

	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Publish(context.Background(), Event{ID: "slow", Type: EventTypeImportFinished}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := bus.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEventBus_InvalidPayloadIsNotRetried(t *testing.T) {
	bus := newTestBus()

	var calls int32
	consumer := ConsumerFunc(func(ctx context.Context, event Event) error {
		atomic.AddInt32(&calls, 1)
		return ErrInvalidPayload
	})
	require.NoError(t, bus.Subscribe(EventTypeImportFinished, consumer))
	require.NoError(t, bus.Start(context.Background()))

	require.NoError(t, bus.Publish(context.Background(), Event{ID: "bad", Type: EventTypeImportFinished}))
	require.NoError(t, bus.Shutdown(context.Background()))

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
