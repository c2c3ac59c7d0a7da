package mq

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cropconnect/globals"
)

type memBroker struct {
	mu   sync.Mutex
	subs []chan []byte
	sent [][]byte
}

func (b *memBroker) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if channel != globals.EventsChannel {
		return nil
	}
	b.sent = append(b.sent, payload)
	for _, s := range b.subs {
		s <- payload
	}
	return nil
}

func (b *memBroker) Subscribe(ctx context.Context, _ string) <-chan []byte {
	ch := make(chan []byte, 8)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		close(ch)
		b.subs = nil
	}()
	return ch
}

func TestPublisherSkipsEventsWithoutRecipient(t *testing.T) {
	b := &memBroker{}
	NewPublisher(b).Emit(context.Background(), Event{Type: OrderCreated})
	assert.Empty(t, b.sent)
}

func TestPublisherStampsCreatedAt(t *testing.T) {
	b := &memBroker{}
	NewPublisher(b).Emit(context.Background(), Event{Type: OrderCreated, UserID: "seller-1"})
	require.Len(t, b.sent, 1)

	var evt Event
	require.NoError(t, json.Unmarshal(b.sent[0], &evt))
	assert.Equal(t, "seller-1", evt.UserID)
	assert.False(t, evt.CreatedAt.IsZero())
}

func TestConsumeDeliversUntilCancelled(t *testing.T) {
	b := &memBroker{}
	ctx, cancel := context.WithCancel(context.Background())

	got := make(chan Event, 1)
	done := make(chan struct{})
	go func() {
		Consume(ctx, b, func(_ context.Context, e Event) { got <- e })
		close(done)
	}()

	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return len(b.subs) == 1
	}, time.Second, 5*time.Millisecond)

	NewPublisher(b).Emit(ctx, Event{Type: BidAccepted, UserID: "worker-1"})
	select {
	case e := <-got:
		assert.Equal(t, BidAccepted, e.Type)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}
