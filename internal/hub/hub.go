// Package hub tracks connected observers and fans events out to them.
//
// Delivery is best-effort multicast: each event is encoded once and offered
// to every observer without waiting. Observers that are closed or whose
// queue is full miss the event; there is no replay.
package hub

import (
	"log/slog"
	"sync"

	"github.com/jpalmerr/rollcall/internal/event"
	"github.com/jpalmerr/rollcall/internal/metrics"
)

// Observer is a live outbound channel to one client.
//
// Implementations must be safe for concurrent use and Send must not block.
type Observer interface {
	// Send queues an encoded message and reports whether it was accepted.
	Send(msg []byte) bool

	// Open reports whether the channel can still deliver messages.
	Open() bool
}

// Hub is the registry of connected observers and the broadcast dispatcher.
type Hub struct {
	mu        sync.RWMutex
	observers map[Observer]struct{}
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates an empty [Hub]. m may be nil.
func New(m *metrics.Metrics, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		observers: make(map[Observer]struct{}),
		metrics:   m,
		logger:    logger,
	}
}

// Add registers an observer. Adding the same observer twice is a no-op.
func (h *Hub) Add(o Observer) {
	h.mu.Lock()
	h.observers[o] = struct{}{}
	n := len(h.observers)
	h.mu.Unlock()

	h.metrics.SetObservers(n)
}

// Remove unregisters an observer. Safe to call with an unknown observer.
func (h *Hub) Remove(o Observer) {
	h.mu.Lock()
	delete(h.observers, o)
	n := len(h.observers)
	h.mu.Unlock()

	h.metrics.SetObservers(n)
}

// Len returns the number of registered observers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

// Publish encodes e once and offers it to every registered observer.
//
// Observers whose channel is not open are skipped but stay registered until
// their owner calls [Hub.Remove]. Publish never blocks on an observer.
func (h *Hub) Publish(e event.Event) {
	data, err := event.Encode(e)
	if err != nil {
		h.logger.Error("failed to encode event", "type", e.EventType(), "error", err)
		return
	}

	// iterate a copy so Add/Remove during delivery cannot race the loop
	h.mu.RLock()
	targets := make([]Observer, 0, len(h.observers))
	for o := range h.observers {
		targets = append(targets, o)
	}
	h.mu.RUnlock()

	for _, o := range targets {
		h.deliver(o, data)
	}
	h.metrics.EventPublished(string(e.EventType()))
}

// Send encodes e and offers it to a single observer, bypassing the registry.
// It reports whether the observer accepted the message.
func (h *Hub) Send(o Observer, e event.Event) bool {
	data, err := event.Encode(e)
	if err != nil {
		h.logger.Error("failed to encode event", "type", e.EventType(), "error", err)
		return false
	}
	return h.deliver(o, data)
}

func (h *Hub) deliver(o Observer, data []byte) bool {
	if !o.Open() {
		h.metrics.DeliveryDropped(metrics.DropClosed)
		return false
	}
	if !o.Send(data) {
		h.metrics.DeliveryDropped(metrics.DropFull)
		return false
	}
	return true
}
