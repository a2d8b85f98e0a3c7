package messaging_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/serroba/rate-limiter-go/internal/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEvent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type mockSubscriber struct {
	msgChan      chan *message.Message
	subscribeErr error
	mu           sync.Mutex
	closed       bool
}

func newMockSubscriber() *mockSubscriber {
	return &mockSubscriber{
		msgChan: make(chan *message.Message, 10),
	}
}

func (m *mockSubscriber) Subscribe(_ context.Context, _ string) (<-chan *message.Message, error) {
	if m.subscribeErr != nil {
		return nil, m.subscribeErr
	}

	return m.msgChan, nil
}

func (m *mockSubscriber) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.msgChan)
	}

	return nil
}

func noopHandler(context.Context, *testEvent) error { return nil }

// deliver sends msg and reports whether it was acked (true) or nacked (false).
func deliver(t *testing.T, sub *mockSubscriber, msg *message.Message) bool {
	t.Helper()

	sub.msgChan <- msg

	select {
	case <-msg.Acked():
		return true
	case <-msg.Nacked():
		return false
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for ack or nack")

		return false
	}
}

func TestConsumer_Start(t *testing.T) {
	t.Run("starts successfully", func(t *testing.T) {
		sub := newMockSubscriber()
		consumer := messaging.NewConsumer(sub, "limits.denied", noopHandler, zap.NewNop())

		require.NoError(t, consumer.Start(context.Background()))
		assert.Equal(t, "limits.denied", consumer.Topic())

		require.NoError(t, consumer.Shutdown())
	})

	t.Run("returns error when subscribe fails", func(t *testing.T) {
		sub := &mockSubscriber{subscribeErr: errors.New("subscribe error")}
		consumer := messaging.NewConsumer(sub, "limits.denied", noopHandler, zap.NewNop())

		assert.Error(t, consumer.Start(context.Background()))
		assert.NoError(t, consumer.Shutdown(), "shutdown after failed start must not block")
	})
}

func TestConsumer_HandleMessage(t *testing.T) {
	t.Run("acks on successful handling", func(t *testing.T) {
		sub := newMockSubscriber()
		received := make(chan *testEvent, 1)

		consumer := messaging.NewConsumer(sub, "limits.denied",
			func(_ context.Context, event *testEvent) error {
				received <- event

				return nil
			},
			zap.NewNop(),
		)
		require.NoError(t, consumer.Start(context.Background()))

		defer func() { _ = consumer.Shutdown() }()

		payload, _ := json.Marshal(&testEvent{ID: "123", Name: "alice"})

		assert.True(t, deliver(t, sub, message.NewMessage(uuid.NewString(), payload)))

		event := <-received
		assert.Equal(t, "123", event.ID)
		assert.Equal(t, "alice", event.Name)
	})

	t.Run("nacks on unmarshal error", func(t *testing.T) {
		sub := newMockSubscriber()
		consumer := messaging.NewConsumer(sub, "limits.denied", noopHandler, zap.NewNop())
		require.NoError(t, consumer.Start(context.Background()))

		defer func() { _ = consumer.Shutdown() }()

		assert.False(t, deliver(t, sub, message.NewMessage(uuid.NewString(), []byte("invalid json"))))
	})

	t.Run("nacks on handler error", func(t *testing.T) {
		sub := newMockSubscriber()
		consumer := messaging.NewConsumer(sub, "limits.denied",
			func(context.Context, *testEvent) error { return errors.New("handler error") },
			zap.NewNop(),
		)
		require.NoError(t, consumer.Start(context.Background()))

		defer func() { _ = consumer.Shutdown() }()

		payload, _ := json.Marshal(&testEvent{ID: "123"})

		assert.False(t, deliver(t, sub, message.NewMessage(uuid.NewString(), payload)))
	})
}

func TestConsumer_StopsWhenSubscriberCloses(t *testing.T) {
	sub := newMockSubscriber()
	consumer := messaging.NewConsumer(sub, "limits.denied", noopHandler, zap.NewNop())
	require.NoError(t, consumer.Start(context.Background()))

	require.NoError(t, sub.Close())

	done := make(chan struct{})

	go func() {
		_ = consumer.Shutdown()

		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("shutdown did not return")
	}
}
