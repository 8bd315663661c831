// Package realtime fans booking changes out to live subscribers.
package realtime

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	EventBooked              = "booking.booked"
	EventCancelled           = "booking.cancelled"
	EventAvailabilityChanged = "availability.changed"
)

// Event describes one change a client may want to re-render for.
type Event struct {
	Type       string    `json:"type"`
	ShopID     string    `json:"shop_id"`
	StaffID    string    `json:"staff_id"`
	BookingID  string    `json:"booking_id,omitempty"`
	Date       string    `json:"date,omitempty"`
	StartTime  string    `json:"start_time,omitempty"`
	EndTime    string    `json:"end_time,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Filter selects events by shop and, optionally, staff member. Empty fields match anything.
type Filter struct {
	ShopID  string
	StaffID string
}

func (f Filter) Match(e Event) bool {
	if f.ShopID != "" && f.ShopID != e.ShopID {
		return false
	}
	if f.StaffID != "" && f.StaffID != e.StaffID {
		return false
	}
	return true
}

// Hub owns the set of live subscriptions. Publish never blocks on a slow subscriber;
// events that do not fit the subscriber's buffer are dropped and counted.
type Hub struct {
	logger *slog.Logger
	buffer int

	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*Subscription
	closed bool
}

type HubOption func(*Hub)

func WithBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

func WithLogger(l *slog.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		logger: slog.New(slog.DiscardHandler),
		buffer: 32,
		subs:   map[uint64]*Subscription{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscription is the handle returned by Subscribe. Close it when the consumer goes away.
type Subscription struct {
	id      uint64
	hub     *Hub
	filter  Filter
	events  chan Event
	dropped atomic.Int64
	once    sync.Once
}

func (s *Subscription) Events() <-chan Event { return s.events }

func (s *Subscription) Filter() Filter { return s.filter }

// Dropped reports how many events were discarded because the buffer was full.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Close unregisters the subscription and closes its channel. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s.id)
	})
}

func (h *Hub) Subscribe(f Filter) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{
		id:     h.nextID,
		hub:    h,
		filter: f,
		events: make(chan Event, h.buffer),
	}
	if h.closed {
		close(sub.events)
		sub.once.Do(func() {})
		return sub
	}
	h.subs[sub.id] = sub
	return sub
}

func (h *Hub) Publish(e Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if !sub.filter.Match(e) {
			continue
		}
		select {
		case sub.events <- e:
		default:
			if sub.dropped.Add(1) == 1 {
				h.logger.Warn("realtime subscriber too slow, dropping events",
					"shop_id", sub.filter.ShopID, "staff_id", sub.filter.StaffID)
			}
		}
	}
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription; later Subscribe calls get an already closed handle.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.events)
	}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	close(sub.events)
}
