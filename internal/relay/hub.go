// Package relay implements the real-time monitoring relay: the in-memory
// session store, the single-active-session policy, the event broadcaster,
// and the activity driver that manufactures autofill events.
package relay

import (
	"context"
	"log/slog"
	"sync"
)

// Sender delivers one named event to a single connected observer.
// The production implementation wraps a WebSocket connection; tests
// substitute an in-memory recorder.
type Sender interface {
	Send(ctx context.Context, event string, data any) error
}

// Hub fans events out to every currently connected observer, independent of
// which session produced them. Delivery is best effort, at most once per
// observer; there is no queuing or replay for late joiners.
type Hub struct {
	mu        sync.RWMutex
	observers map[string]Sender
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		observers: make(map[string]Sender),
	}
}

// Register adds an observer under the given connection id, replacing any
// previous observer with the same id.
func (h *Hub) Register(connID string, s Sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observers[connID] = s
	slog.Info("Observer registered", "conn_id", connID, "observers", len(h.observers))
}

// Unregister removes an observer. Safe to call for unknown ids.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.observers[connID]; ok {
		delete(h.observers, connID)
		slog.Info("Observer unregistered", "conn_id", connID, "observers", len(h.observers))
	}
}

// Count returns the number of connected observers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

// Broadcast sends an event to all connected observers. Broadcasting to zero
// observers is a no-op. A failed send only logs; the transport layer owns
// connection teardown.
func (h *Hub) Broadcast(ctx context.Context, event string, data any) {
	h.mu.RLock()
	targets := make(map[string]Sender, len(h.observers))
	for id, s := range h.observers {
		targets[id] = s
	}
	h.mu.RUnlock()

	for id, s := range targets {
		if err := s.Send(ctx, event, data); err != nil {
			slog.Debug("Broadcast send failed", "conn_id", id, "event", event, "error", err)
		}
	}
}

// SendTo sends an event to a single observer. Unknown connection ids are
// ignored (the owner may already have disconnected).
func (h *Hub) SendTo(ctx context.Context, connID, event string, data any) {
	h.mu.RLock()
	s, ok := h.observers[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if err := s.Send(ctx, event, data); err != nil {
		slog.Debug("Targeted send failed", "conn_id", connID, "event", event, "error", err)
	}
}
