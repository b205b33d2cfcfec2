// ABOUTME: Tests for the UI event broadcaster
// ABOUTME: Covers fan-out, slow-subscriber drops, and context cleanup

package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish_FanOut(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx := context.Background()
	ch1, _ := b.Subscribe(ctx)
	ch2, _ := b.Subscribe(ctx)

	b.Publish(&Event{Type: "message", Text: "hello"})

	for _, ch := range []<-chan *Event{ch1, ch2} {
		select {
		case event := <-ch:
			assert.Equal(t, "hello", event.Text)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestPublish_DropsWhenBufferFull(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, _ := b.Subscribe(context.Background())

	for i := 0; i < subscriberBufferSize+10; i++ {
		b.Publish(&Event{Type: "message", Text: "x"})
	}

	// Buffer holds exactly subscriberBufferSize; the rest were dropped.
	assert.Len(t, ch, subscriberBufferSize)
}

func TestUnsubscribe_ClosesChannel(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, subID := b.Subscribe(context.Background())
	b.Unsubscribe(subID)

	_, open := <-ch
	assert.False(t, open)

	// Publishing after unsubscribe must not panic.
	b.Publish(&Event{Type: "message"})
}

func TestSubscribe_ContextCancelCleansUp(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := b.Subscribe(ctx)
	cancel()

	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancellation")
	}
}

func TestPublish_ConcurrentWithUnsubscribe(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			b.Publish(&Event{Type: "message", Text: "x"})
		}
	}()

	// Subscriber churn while publishing must never panic on a closed channel.
	for i := 0; i < 200; i++ {
		_, subID := b.Subscribe(context.Background())
		b.Unsubscribe(subID)
	}
	<-done
}

func TestClose_ClosesAllSubscribers(t *testing.T) {
	b := NewBroadcaster(nil)

	ch1, _ := b.Subscribe(context.Background())
	ch2, _ := b.Subscribe(context.Background())
	b.Close()

	_, open := <-ch1
	require.False(t, open)
	_, open = <-ch2
	require.False(t, open)
}
