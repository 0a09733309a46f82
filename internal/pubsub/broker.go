package pubsub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBufferSize is the channel buffer given to each subscriber.
const DefaultBufferSize = 64

// Broker is a typed pub/sub broker. It is safe for concurrent use and
// ties each subscription to a context. Slow subscribers have events
// dropped rather than blocking the publisher: the engine's dispatch
// path must never stall behind a UI reader.
type Broker[T any] struct {
	name string
	subs map[chan Event[T]]struct{}
	mu   sync.RWMutex
	done chan struct{}

	publishCount atomic.Int64
	dropCount    atomic.Int64
	subCount     atomic.Int32
}

// NewBroker creates a broker named for debugging output.
func NewBroker[T any](name string) *Broker[T] {
	return &Broker[T]{
		name: name,
		subs: make(map[chan Event[T]]struct{}),
		done: make(chan struct{}),
	}
}

// Name returns the broker's name.
func (b *Broker[T]) Name() string {
	return b.name
}

// Subscribe returns a channel receiving events until ctx is cancelled
// or the broker shuts down, at which point the channel is closed.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		ch := make(chan Event[T])
		close(ch)
		return ch
	default:
	}

	sub := make(chan Event[T], DefaultBufferSize)
	b.subs[sub] = struct{}{}
	b.subCount.Add(1)

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
		}

		b.mu.Lock()
		defer b.mu.Unlock()

		// Already removed during shutdown.
		if _, ok := b.subs[sub]; !ok {
			return
		}

		delete(b.subs, sub)
		close(sub)
		b.subCount.Add(-1)
	}()

	return sub
}

// Publish delivers an event to every subscriber, dropping it for any
// subscriber whose buffer is full.
func (b *Broker[T]) Publish(eventType EventType, payload T) {
	b.mu.RLock()

	select {
	case <-b.done:
		b.mu.RUnlock()
		return
	default:
	}

	subscribers := make([]chan Event[T], 0, len(b.subs))
	for sub := range b.subs {
		subscribers = append(subscribers, sub)
	}
	b.mu.RUnlock()

	if len(subscribers) == 0 {
		return
	}

	event := Event[T]{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	b.publishCount.Add(1)

	for _, sub := range subscribers {
		select {
		case sub <- event:
		default:
			b.dropCount.Add(1)
		}
	}
}

// Shutdown closes all subscriber channels. Further publishes are no-ops.
func (b *Broker[T]) Shutdown() {
	select {
	case <-b.done:
		return
	default:
		close(b.done)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
	b.subCount.Store(0)
}

// IsShutdown returns true once Shutdown has been called.
func (b *Broker[T]) IsShutdown() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// SubscriberCount returns the current number of subscribers.
func (b *Broker[T]) SubscriberCount() int {
	return int(b.subCount.Load())
}

// Metrics returns the broker's counters for debugging.
func (b *Broker[T]) Metrics() BrokerMetrics {
	return BrokerMetrics{
		Name:            b.name,
		PublishCount:    b.publishCount.Load(),
		DropCount:       b.dropCount.Load(),
		SubscriberCount: int(b.subCount.Load()),
	}
}

// BrokerMetrics contains broker statistics for debugging.
type BrokerMetrics struct {
	Name            string
	PublishCount    int64
	DropCount       int64
	SubscriberCount int
}
