package controller

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/blueprint-desktop/exthost/internal/infrastructure/logging"
	"github.com/blueprint-desktop/exthost/internal/shared/types"
)

// subscriberBuffer bounds how far a slow consumer may lag before
// events are dropped for it.
const subscriberBuffer = 64

// Hub fans controller events out to subscribers (the WebSocket layer,
// tests). Publishing never blocks: a subscriber that stops draining
// its channel loses events rather than stalling the controller.
type Hub struct {
	log *logging.Logger

	mu   sync.RWMutex
	subs map[int]chan types.Event
	next int
}

// NewHub creates an empty hub
func NewHub(log *logging.Logger) *Hub {
	return &Hub{
		log:  log.Component("events"),
		subs: make(map[int]chan types.Event),
	}
}

// Subscribe registers a new consumer. The returned cancel func must be
// called to release the subscription.
func (h *Hub) Subscribe() (<-chan types.Event, func()) {
	h.mu.Lock()
	id := h.next
	h.next++
	ch := make(chan types.Event, subscriberBuffer)
	h.subs[id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber. The timestamp is
// stamped here if the caller left it zero.
func (h *Hub) Publish(ev types.Event) {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.log.Warn("Dropping event for slow subscriber",
				zap.Int("subscriber", id),
				zap.String("type", ev.Type))
		}
	}
}

// Emit publishes a loosely typed event. Providers use this shape to
// surface notifications without depending on the controller.
func (h *Hub) Emit(event string, payload map[string]interface{}) {
	h.Publish(types.Event{Type: event, Data: payload})
}

// Subscribers returns the current subscriber count
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subs)
}
