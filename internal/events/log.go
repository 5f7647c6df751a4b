package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity is the number of events kept when no capacity is given.
const DefaultCapacity = 100

// Log is a bounded, most-recent-first activity log.
//
// Once full, each new event evicts the oldest. All methods are safe for
// concurrent use.
type Log struct {
	mu   sync.RWMutex
	ring []Event
	head int // index of the next write
	size int

	bus *Bus
	now func() time.Time
}

// NewLog creates a log holding at most capacity events.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		ring: make([]Event, capacity),
		now:  time.Now,
	}
}

// SetBus makes every recorded event also publish on TopicEvent.
func (l *Log) SetBus(bus *Bus) {
	l.mu.Lock()
	l.bus = bus
	l.mu.Unlock()
}

// SetClock replaces the timestamp source.
func (l *Log) SetClock(now func() time.Time) {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
}

// Record appends an event and returns it. An unknown severity is stored as
// info.
func (l *Log) Record(severity Severity, message string, data map[string]any) Event {
	if !severity.Valid() {
		severity = SeverityInfo
	}

	l.mu.Lock()
	ev := Event{
		ID:        uuid.New().String(),
		Severity:  severity,
		Message:   message,
		Data:      data,
		Timestamp: l.now().UTC(),
	}
	l.ring[l.head] = ev
	l.head = (l.head + 1) % len(l.ring)
	if l.size < len(l.ring) {
		l.size++
	}
	bus := l.bus
	l.mu.Unlock()

	if bus != nil {
		bus.Publish(TopicEvent, ev)
	}
	return ev
}

// List returns up to limit events, newest first. A limit of zero or less
// returns everything held.
func (l *Log) List(limit int) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := l.size
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]Event, 0, n)
	for i := 1; i <= n; i++ {
		idx := (l.head - i + len(l.ring)) % len(l.ring)
		out = append(out, l.ring[idx])
	}
	return out
}

// Len returns the number of events held.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// Capacity returns the maximum number of events held.
func (l *Log) Capacity() int {
	return len(l.ring)
}

// Clear discards every event, then records that the log was cleared.
func (l *Log) Clear() {
	l.mu.Lock()
	for i := range l.ring {
		l.ring[i] = Event{}
	}
	l.head = 0
	l.size = 0
	l.mu.Unlock()

	l.Record(SeverityInfo, "Event log cleared", nil)
}
