package eventbus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/config"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/observability"
)

type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	fetchErrs []error
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.fetchErrs) > 0 {
		err := r.fetchErrs[0]
		r.fetchErrs = r.fetchErrs[1:]
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.messages) > 0 {
		msg := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func TestConsumer_CommitsAfterHandling(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{
		{Offset: 1, Value: []byte(`{"type":"created"}`)},
		{Offset: 2, Value: []byte(`not json`)},
		{Offset: 3, Value: []byte(`{"type":"updated"}`)},
	}}

	var mu sync.Mutex
	var seen []string
	handler := HandlerFunc(func(ctx context.Context, key, value []byte) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, string(value))
		if string(value) == "not json" {
			return errors.New("invalid payload")
		}
		if string(value) == `{"type":"updated"}` {
			panic("handler bug")
		}
		return nil
	})

	metrics := observability.NewTestMetrics()
	c := NewConsumer(reader, handler, observability.NewNopLogger(), metrics)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return len(reader.commits()) == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{1, 2, 3}, reader.commits())
	mu.Lock()
	assert.Len(t, seen, 3)
	mu.Unlock()

	require.NoError(t, c.Close())
	assert.True(t, reader.closed)
}

func TestConsumer_RetriesFetchErrors(t *testing.T) {
	reader := &fakeReader{
		fetchErrs: []error{errors.New("broker unavailable")},
		messages:  []kafka.Message{{Offset: 9, Value: []byte(`{}`)}},
	}
	c := NewConsumer(reader, HandlerFunc(func(ctx context.Context, key, value []byte) error { return nil }), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return len(reader.commits()) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestNewReader(t *testing.T) {
	r := NewReader(&config.KafkaConfig{
		Brokers: []string{"localhost:9092"},
		Topic:   "session-events",
		GroupID: "absence-scheduler",
	})
	defer r.Close()

	cfg := r.Config()
	assert.Equal(t, "session-events", cfg.Topic)
	assert.Equal(t, "absence-scheduler", cfg.GroupID)
	assert.Equal(t, time.Duration(0), cfg.CommitInterval)
}
