package pubsub

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// BrokerInfo provides debug information about a registered broker.
type BrokerInfo interface {
	Name() string
	SubscriberCount() int
	IsShutdown() bool
	Metrics() BrokerMetrics
}

// Registry tracks all brokers for debugging and introspection.
type Registry struct {
	brokers map[string]BrokerInfo
	mu      sync.RWMutex
}

// NewRegistry creates a new broker registry.
func NewRegistry() *Registry {
	return &Registry{
		brokers: make(map[string]BrokerInfo),
	}
}

// Register adds a broker to the registry.
func (r *Registry) Register(name string, broker BrokerInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.brokers[name] = broker
}

// Get retrieves a broker by name.
func (r *Registry) Get(name string) (BrokerInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.brokers[name]
	return b, ok
}

// List returns all registered broker names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.brokers))
	for name := range r.brokers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DebugString renders one line per broker with its counters.
func (r *Registry) DebugString() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.brokers))
	for name := range r.brokers {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		m := r.brokers[name].Metrics()
		fmt.Fprintf(&sb, "%s: published=%d dropped=%d subscribers=%d\n",
			m.Name, m.PublishCount, m.DropCount, m.SubscriberCount)
	}
	return sb.String()
}
