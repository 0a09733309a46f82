package pubsub

import (
	"sync"

	"github.com/mstanton/ragline/internal/events"
)

// Hub is the central container for all domain brokers. The engine
// publishes into it; the UI layer subscribes without ever touching the
// transport or the stores directly.
type Hub struct {
	Chat    *Broker[events.ChatEvent]
	Session *Broker[events.SessionEvent]
	Status  *Broker[events.StatusEvent]

	registry *Registry
	done     chan struct{}
}

// NewHub creates a new Hub with all domain brokers initialized.
func NewHub() *Hub {
	h := &Hub{
		Chat:     NewBroker[events.ChatEvent]("chat"),
		Session:  NewBroker[events.SessionEvent]("session"),
		Status:   NewBroker[events.StatusEvent]("status"),
		registry: NewRegistry(),
		done:     make(chan struct{}),
	}

	h.registry.Register("chat", h.Chat)
	h.registry.Register("session", h.Session)
	h.registry.Register("status", h.Status)

	return h
}

// Shutdown gracefully shuts down all brokers.
func (h *Hub) Shutdown() {
	select {
	case <-h.done:
		return
	default:
		close(h.done)
	}

	var wg sync.WaitGroup
	wg.Add(3)

	go func() { defer wg.Done(); h.Chat.Shutdown() }()
	go func() { defer wg.Done(); h.Session.Shutdown() }()
	go func() { defer wg.Done(); h.Status.Shutdown() }()

	wg.Wait()
}

// IsShutdown returns true if the hub has been shut down.
func (h *Hub) IsShutdown() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Done returns a channel that's closed when the hub is shut down.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Registry returns the debug registry for introspection.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// AllMetrics returns metrics for all brokers.
func (h *Hub) AllMetrics() []BrokerMetrics {
	return []BrokerMetrics{
		h.Chat.Metrics(),
		h.Session.Metrics(),
		h.Status.Metrics(),
	}
}

// DebugString returns a formatted debug string for all brokers.
func (h *Hub) DebugString() string {
	return h.registry.DebugString()
}
