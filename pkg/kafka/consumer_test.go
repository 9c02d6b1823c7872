package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeReader serves queued messages and then blocks until the context ends.
type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []kafka.Message
	closed    int
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	return nil
}

func (r *fakeReader) committedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func productDeletedMessage(t *testing.T) kafka.Message {
	t.Helper()
	event, err := NewEvent("product.deleted", "prod-1", "product", "product-service", map[string]string{"product_id": "prod-1"})
	require.NoError(t, err)
	b, err := event.Marshal()
	require.NoError(t, err)
	return kafka.Message{Topic: "ecommerce.product.deleted", Partition: 2, Offset: 41, Key: []byte("prod-1"), Value: b}
}

func testConsumer(r messageReader, handler Handler) *Consumer {
	c := newConsumer(r, ConsumerConfig{Topic: "ecommerce.product.deleted", GroupID: "review-service", MaxRetries: 3}, handler, discardLogger())
	c.backoff = time.Millisecond
	return c
}

func TestConsumer_Process_Success(t *testing.T) {
	var got *Event
	c := testConsumer(&fakeReader{}, func(_ context.Context, e *Event) error {
		got = e
		return nil
	})

	err := c.process(context.Background(), productDeletedMessage(t))

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "prod-1", got.AggregateID)
}

func TestConsumer_Process_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	c := testConsumer(&fakeReader{}, func(context.Context, *Event) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	err := c.process(context.Background(), productDeletedMessage(t))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestConsumer_Process_ExhaustedGoesToDLQ(t *testing.T) {
	calls := 0
	w := &fakeWriter{}
	c := testConsumer(&fakeReader{}, func(context.Context, *Event) error {
		calls++
		return errors.New("boom")
	}).WithDLQ(&DLQProducer{writer: w, logger: discardLogger()})
	msg := productDeletedMessage(t)

	err := c.process(context.Background(), msg)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	require.Len(t, w.msgs, 1)
	parked := w.msgs[0]
	assert.Equal(t, "ecommerce.dlq.ecommerce.product.deleted", parked.Topic)
	assert.Equal(t, msg.Value, parked.Value)

	headers := map[string]string{}
	for _, h := range parked.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "boom", headers["dlq.error"])
	assert.Equal(t, "review-service", headers["dlq.consumer_group"])
	assert.Equal(t, "2", headers["dlq.original_partition"])
	assert.Equal(t, "41", headers["dlq.original_offset"])
}

func TestConsumer_Process_DLQFailureIsReturned(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	c := testConsumer(&fakeReader{}, func(context.Context, *Event) error {
		return errors.New("boom")
	}).WithDLQ(&DLQProducer{writer: w, logger: discardLogger()})

	err := c.process(context.Background(), productDeletedMessage(t))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestConsumer_Process_UndecodableIsSkipped(t *testing.T) {
	called := false
	c := testConsumer(&fakeReader{}, func(context.Context, *Event) error {
		called = true
		return nil
	})

	err := c.process(context.Background(), kafka.Message{Topic: "ecommerce.product.deleted", Value: []byte("{not json")})

	require.NoError(t, err)
	assert.False(t, called)
}

func TestConsumer_Start_CommitsAndStops(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{productDeletedMessage(t), productDeletedMessage(t)}}
	handled := make(chan struct{}, 2)
	c := testConsumer(r, func(context.Context, *Event) error {
		handled <- struct{}{}
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- c.Start(ctx) }()
	<-handled
	<-handled
	require.Eventually(t, func() bool { return r.committedCount() == 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
	require.NoError(t, c.Close())
	assert.Equal(t, 1, r.closed)
}
