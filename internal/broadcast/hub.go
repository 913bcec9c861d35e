// Package broadcast is the single in-process fan-out point for push
// events. Publishing is fire-and-forget into per-subscriber bounded
// buffers: a subscriber that stops draining is dropped rather than ever
// slowing a publisher. There is no replay; new subscribers only see events
// published after they subscribed and are expected to pull current
// snapshots to catch up.
package broadcast

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Kind tags the event stream an event belongs to.
type Kind string

const (
	KindTaskResult  Kind = "task_result"
	KindQueueUpdate Kind = "task_queue_update"
	KindCartStatus  Kind = "cart_status"
	KindAlert       Kind = "alert"
)

// Event is a single push notification.
type Event struct {
	Kind      Kind      `json:"kind"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// DefaultBufferSize is the per-subscriber outbound buffer when the hub is
// constructed with a non-positive size.
const DefaultBufferSize = 64

// Subscription is one observer's handle on the hub. Events arrive on
// Events() in publish order. The channel is closed when the subscription is
// closed or the hub drops it on overflow.
type Subscription struct {
	id     uint64
	events chan Event
	hub    *Hub
}

// Events returns the subscriber's event channel.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close detaches the subscription from the hub. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.remove(s.id)
}

// Hub fans events out to all active subscriptions.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	buffer int
	logger zerolog.Logger
}

// New creates a hub with the given per-subscriber buffer size.
func New(buffer int, logger zerolog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	return &Hub{
		subs:   make(map[uint64]*Subscription),
		buffer: buffer,
		logger: logger.With().Str("component", "broadcast").Logger(),
	}
}

// Subscribe registers a new observer.
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{
		id:     h.nextID,
		events: make(chan Event, h.buffer),
		hub:    h,
	}
	h.subs[sub.id] = sub
	subscriberCount.Set(float64(len(h.subs)))
	return sub
}

// SubscriberCount returns the number of active subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish delivers an event to every active subscription. Delivery never
// blocks: subscribers whose buffer is full are dropped and must resync via
// the pull APIs. Per-subscriber ordering follows publish order.
func (h *Hub) Publish(kind Kind, payload any) {
	evt := Event{Kind: kind, Payload: payload, Timestamp: time.Now().UTC()}
	eventsPublished.WithLabelValues(string(kind)).Inc()

	var overflowed []uint64
	h.mu.RLock()
	for id, sub := range h.subs {
		select {
		case sub.events <- evt:
		default:
			overflowed = append(overflowed, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range overflowed {
		if h.remove(id) {
			subscribersDropped.Inc()
			h.logger.Warn().
				Uint64("subscriber_id", id).
				Str("kind", string(kind)).
				Msg("Dropping slow subscriber on buffer overflow")
		}
	}
}

// remove detaches a subscription and closes its channel. Returns false when
// the id was already gone. The channel is only closed here, under the write
// lock, so it can never race a publisher's send.
func (h *Hub) remove(id uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subs[id]
	if !ok {
		return false
	}
	delete(h.subs, id)
	close(sub.events)
	subscriberCount.Set(float64(len(h.subs)))
	return true
}
