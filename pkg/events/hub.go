// Package events is the in-process notification fabric between the
// supervisor and the streaming API: typed payloads fanned out to
// subscriber channels, best-effort with drop-on-overflow.
package events

import (
	"log/slog"
	"sync"
)

// subscriberBuffer is the per-subscriber channel capacity. A subscriber
// that falls this far behind starts losing events rather than slowing
// publishers down.
const subscriberBuffer = 100

// Hub fans events out to subscribers. Safe for concurrent use.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[int]chan Event
	nextID      int
	dropped     int64
	logger      *slog.Logger
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[int]chan Event),
		logger:      slog.With("component", "events"),
	}
}

// Subscribe registers a new subscriber and returns its id and channel. The
// caller must Unsubscribe when done.
func (h *Hub) Subscribe() (int, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Event, subscriberBuffer)
	h.subscribers[id] = ch

	h.logger.Debug("Subscriber registered", "id", id, "total", len(h.subscribers))
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subscribers[id]; ok {
		delete(h.subscribers, id)
		close(ch)
		h.logger.Debug("Subscriber removed", "id", id, "total", len(h.subscribers))
	}
}

// Publish delivers an event to every subscriber without blocking. Slow
// subscribers lose events; the hub never applies backpressure to
// publishers.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	// Snapshot so channel sends happen outside map iteration concerns.
	channels := make([]chan Event, 0, len(h.subscribers))
	for _, ch := range h.subscribers {
		channels = append(channels, ch)
	}
	h.mu.RUnlock()

	for _, ch := range channels {
		select {
		case ch <- event:
		default:
			h.mu.Lock()
			h.dropped++
			dropped := h.dropped
			h.mu.Unlock()
			h.logger.Warn("Subscriber buffer full, dropping event",
				"channel", event.Channel, "total_dropped", dropped)
		}
	}
}

// SubscriberCount returns the current subscriber count.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Dropped returns how many events have been dropped since start.
func (h *Hub) Dropped() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}
