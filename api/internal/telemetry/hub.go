package telemetry

import (
	"sync"

	"github.com/irgordon/hostpanel/api/internal/core/domain"
)

const subscriberBuffer = 64

// Hub fans lifecycle events out to live UI clients, keyed by topic.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string][]chan domain.LifecycleEvent
}

var _ domain.EventPublisher = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string][]chan domain.LifecycleEvent),
	}
}

// Subscribe adds a new client to a topic.
func (h *Hub) Subscribe(topic string) chan domain.LifecycleEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan domain.LifecycleEvent, subscriberBuffer)
	h.subscribers[topic] = append(h.subscribers[topic], ch)
	return ch
}

// Unsubscribe removes and closes a client channel.
func (h *Hub) Unsubscribe(topic string, ch chan domain.LifecycleEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subscribers[topic]
	for i, sub := range subs {
		if sub == ch {
			h.subscribers[topic] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}
	if len(h.subscribers[topic]) == 0 {
		delete(h.subscribers, topic)
	}
}

// Broadcast never blocks; a subscriber with a full buffer misses the event.
func (h *Hub) Broadcast(topic string, event domain.LifecycleEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subscribers[topic] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribers reports how many clients are attached to a topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[topic])
}
