package detect

import (
	"sync"
	"time"

	"phiguard/core"
)

// DefaultWindowCapacity bounds the event window when no capacity is
// configured.
const DefaultWindowCapacity = 1000

// EventWindow is a fixed-capacity ring buffer of recently observed access
// events, used for short-horizon correlation. Once full, the oldest entry
// is evicted on push, bounding memory regardless of traffic. Entries are
// never mutated after insertion.
//
// Queries are linear scans over the bounded buffer; the fixed capacity
// keeps the inline evaluation path free of external dependencies.
type EventWindow struct {
	mu       sync.RWMutex
	events   []core.AccessEvent
	next     int
	size     int
	capacity int
}

// NewEventWindow creates a window holding at most capacity events.
func NewEventWindow(capacity int) *EventWindow {
	if capacity <= 0 {
		capacity = DefaultWindowCapacity
	}
	return &EventWindow{
		events:   make([]core.AccessEvent, capacity),
		capacity: capacity,
	}
}

// Push appends an event, evicting the oldest entry when full.
func (w *EventWindow) Push(ev core.AccessEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events[w.next] = ev
	w.next = (w.next + 1) % w.capacity
	if w.size < w.capacity {
		w.size++
	}
}

// Len returns the number of events currently held.
func (w *EventWindow) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.size
}

// Capacity returns the fixed window capacity.
func (w *EventWindow) Capacity() int {
	return w.capacity
}

// CountSince returns how many events for userID arrived at or after since.
func (w *EventWindow) CountSince(userID string, since time.Time) int {
	count := 0
	w.scan(func(ev *core.AccessEvent) {
		if ev.UserID == userID && !ev.Timestamp.Before(since) {
			count++
		}
	})
	return count
}

// ElementsSince returns the set of distinct data elements touched by userID
// at or after since.
func (w *EventWindow) ElementsSince(userID string, since time.Time) map[string]struct{} {
	elements := make(map[string]struct{})
	w.scan(func(ev *core.AccessEvent) {
		if ev.UserID == userID && !ev.Timestamp.Before(since) {
			for _, el := range ev.DataElements {
				elements[el] = struct{}{}
			}
		}
	})
	return elements
}

// ActionsSince returns the actions performed by userID at or after since,
// oldest first.
func (w *EventWindow) ActionsSince(userID string, since time.Time) []string {
	var actions []string
	w.scan(func(ev *core.AccessEvent) {
		if ev.UserID == userID && !ev.Timestamp.Before(since) {
			actions = append(actions, ev.Action)
		}
	})
	return actions
}

// scan visits every held event oldest first under the read lock.
func (w *EventWindow) scan(visit func(*core.AccessEvent)) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	start := 0
	if w.size == w.capacity {
		start = w.next
	}
	for i := 0; i < w.size; i++ {
		visit(&w.events[(start+i)%w.capacity])
	}
}
