// Package events broadcasts job lifecycle notifications to connected
// subscribers. Delivery is best effort: subscribers that fall behind
// are skipped rather than blocking publishers.
package events

import (
	"sync"
	"time"

	"github.com/jobboardhq/jobboard/pkg/logger"
)

// Event types published by the job service.
const (
	TypeJobCreated = "job.created"
	TypeJobUpdated = "job.updated"
	TypeJobDeleted = "job.deleted"
)

// Event is a single broadcast notification.
type Event struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data,omitempty"`
}

// subscriberBuffer is the per-subscriber queue depth before events are
// dropped for that subscriber.
const subscriberBuffer = 16

// Hub fans events out to subscribers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	closed bool
	count  func(eventType string)
	log    *logger.Logger
}

// New constructs an empty hub.
func New(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewDefault("events")
	}
	return &Hub{subs: make(map[chan Event]struct{}), log: log}
}

// Instrument registers a hook bumped once per published event.
// Call before the hub is shared.
func (h *Hub) Instrument(fn func(eventType string)) {
	h.count = fn
}

// Subscribe registers a new subscriber. The returned cancel func must
// be called when the subscriber goes away; the channel is closed by
// cancel or by Hub.Close.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber that has queue room.
// A zero At is stamped with the current time.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	if h.count != nil {
		h.count(ev.Type)
	}
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.log.WithField("type", ev.Type).Debug("subscriber backlogged, event dropped")
		}
	}
}

// SubscriberCount reports the number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close shuts the hub down and closes all subscriber channels.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
		delete(h.subs, ch)
	}
}
