package pubsub

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestBrokerSubscribePublish(t *testing.T) {
	t.Run("single subscriber receives events", func(t *testing.T) {
		broker := NewBroker[string]("test")
		defer broker.Shutdown()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events := broker.Subscribe(ctx)

		broker.Publish(EventCreated, "hello")

		select {
		case event := <-events:
			if event.Type != EventCreated || event.Payload != "hello" {
				t.Errorf("unexpected event: %+v", event)
			}
		case <-time.After(100 * time.Millisecond):
			t.Error("timeout waiting for event")
		}
	})

	t.Run("multiple subscribers receive same event", func(t *testing.T) {
		broker := NewBroker[int]("test")
		defer broker.Shutdown()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sub1 := broker.Subscribe(ctx)
		sub2 := broker.Subscribe(ctx)

		broker.Publish(EventUpdated, 42)

		for i, sub := range []<-chan Event[int]{sub1, sub2} {
			select {
			case event := <-sub:
				if event.Payload != 42 {
					t.Errorf("subscriber %d: expected 42, got %d", i, event.Payload)
				}
			case <-time.After(100 * time.Millisecond):
				t.Errorf("subscriber %d: timeout", i)
			}
		}
	})

	t.Run("cancelled context unsubscribes", func(t *testing.T) {
		broker := NewBroker[string]("test")
		defer broker.Shutdown()

		ctx, cancel := context.WithCancel(context.Background())

		events := broker.Subscribe(ctx)

		if broker.SubscriberCount() != 1 {
			t.Errorf("expected 1 subscriber, got %d", broker.SubscriberCount())
		}

		cancel()
		time.Sleep(50 * time.Millisecond) // Allow cleanup goroutine to run

		if broker.SubscriberCount() != 0 {
			t.Errorf("expected 0 subscribers after cancel, got %d", broker.SubscriberCount())
		}

		// Channel should be closed
		_, ok := <-events
		if ok {
			t.Error("expected channel to be closed")
		}
	})

	t.Run("shutdown closes all subscribers", func(t *testing.T) {
		broker := NewBroker[string]("test")

		ctx := context.Background()
		sub1 := broker.Subscribe(ctx)
		sub2 := broker.Subscribe(ctx)

		broker.Shutdown()

		if _, ok := <-sub1; ok {
			t.Error("sub1 should be closed")
		}
		if _, ok := <-sub2; ok {
			t.Error("sub2 should be closed")
		}
	})

	t.Run("publish after shutdown is no-op", func(t *testing.T) {
		broker := NewBroker[string]("test")
		broker.Shutdown()

		// Should not panic
		broker.Publish(EventCreated, "test")
	})

	t.Run("subscribe after shutdown returns closed channel", func(t *testing.T) {
		broker := NewBroker[string]("test")
		broker.Shutdown()

		ch := broker.Subscribe(context.Background())

		_, ok := <-ch
		if ok {
			t.Error("channel should be closed")
		}
	})
}

func TestBrokerSlowSubscriberDrops(t *testing.T) {
	broker := NewBroker[int]("test")
	defer broker.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Never read from the subscription; once the buffer fills, further
	// publishes must drop instead of blocking.
	broker.Subscribe(ctx)

	for i := 0; i < DefaultBufferSize+10; i++ {
		broker.Publish(EventProgress, i)
	}

	m := broker.Metrics()
	if m.DropCount != 10 {
		t.Errorf("drop count = %d, want 10", m.DropCount)
	}
	if m.PublishCount != int64(DefaultBufferSize+10) {
		t.Errorf("publish count = %d, want %d", m.PublishCount, DefaultBufferSize+10)
	}
}

func TestBrokerConcurrentPublish(t *testing.T) {
	broker := NewBroker[int]("test")
	defer broker.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := broker.Subscribe(ctx)

	// Stay under the subscriber buffer so nothing is dropped even if
	// the reader lags.
	const total = 50

	received := make(chan struct{})
	go func() {
		count := 0
		for range events {
			count++
			if count == total {
				close(received)
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < total/10; j++ {
				broker.Publish(EventProgress, j)
			}
		}()
	}
	wg.Wait()

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Error("timeout waiting for concurrent publishes")
	}
}

func TestBrokerIsShutdown(t *testing.T) {
	broker := NewBroker[string]("test")
	if broker.IsShutdown() {
		t.Error("fresh broker should not be shut down")
	}
	broker.Shutdown()
	if !broker.IsShutdown() {
		t.Error("broker should report shut down")
	}
	// Second shutdown is a no-op.
	broker.Shutdown()
}
