package fanout

import (
	"sync"

	"chatsink/pkg/logger"
)

// subscriber buffer depth. A subscriber that falls this far behind starts
// losing events rather than stalling the hub.
const subBuffer = 64

// Hub is the in-process broadcaster backing the websocket endpoint. Every
// subscriber receives every event; filtering by conversation is the
// consumer's business.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: map[chan Event]struct{}{}}
}

// Subscribe registers a new subscriber and returns its event channel plus a
// cancel function. Cancel is idempotent and closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Broadcast delivers the event to every subscriber without blocking; a full
// subscriber buffer drops the event for that subscriber only.
func (h *Hub) Broadcast(event, waID string, payload any) {
	ev := Event{Event: event, WaID: waID, Payload: payload}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			logger.Warn("fanout_subscriber_lagging", "event", event, "wa_id", waID)
		}
	}
}

// Len reports the current subscriber count.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
