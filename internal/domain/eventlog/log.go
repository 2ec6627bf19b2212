// Package eventlog keeps a bounded in-memory window of pipeline events and
// mirrors each append onto the event bus for persistence and live feeds.
package eventlog

import (
	"sync"
	"time"

	"sentrycam-go/internal/domain/eventbus"
)

// DefaultCapacity is the number of events retained in memory.
const DefaultCapacity = 100

// Event is a single pipeline occurrence. Data carries type-specific detail
// such as the image path or the confirmation description.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      string            `json:"type"`
	Data      map[string]string `json:"data,omitempty"`
}

// Log is the bounded event window. Appends evict the oldest entry once the
// capacity is reached.
type Log struct {
	mu       sync.Mutex
	events   []Event
	capacity int
	bus      *eventbus.Bus
	clock    func() time.Time
}

// New creates an event log publishing appends to bus. A nil bus disables
// publication, which tests use.
func New(bus *eventbus.Bus, capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		events:   make([]Event, 0, capacity),
		capacity: capacity,
		bus:      bus,
		clock:    time.Now,
	}
}

// Emit appends an event with the current timestamp and publishes it.
func (l *Log) Emit(eventType string, data map[string]string) {
	event := Event{
		Timestamp: l.clock(),
		Type:      eventType,
		Data:      data,
	}

	l.mu.Lock()
	if len(l.events) >= l.capacity {
		copy(l.events, l.events[1:])
		l.events = l.events[:len(l.events)-1]
	}
	l.events = append(l.events, event)
	l.mu.Unlock()

	if l.bus != nil {
		l.bus.PublishAsync(TopicAppend, event)
	}
}

// Recent returns up to limit events in chronological order. limit <= 0
// returns the full window.
func (l *Log) Recent(limit int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.events)
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]Event, limit)
	copy(out, l.events[n-limit:])
	return out
}

// Last returns the most recent event and whether one exists.
func (l *Log) Last() (Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) == 0 {
		return Event{}, false
	}
	return l.events[len(l.events)-1], true
}

// Len reports the number of retained events.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}
