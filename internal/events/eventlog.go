// Package events provides the audit log of the sleep vote.
// It records who went to bed, who left, and every night that got skipped.
package events

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of an event.
type EventType string

const (
	EventTypeBedEnter        EventType = "BED_ENTER"
	EventTypeBedLeave        EventType = "BED_LEAVE"
	EventTypePlayerQuit      EventType = "PLAYER_QUIT"
	EventTypeNightSkipped    EventType = "NIGHT_SKIPPED"
	EventTypeSettingsApplied EventType = "SETTINGS_APPLIED"
)

// DefaultRetention is how many events the in-memory log keeps.
const DefaultRetention = 1024

// persistQueueSize bounds how many events may wait for the persister.
const persistQueueSize = 1024

// ErrClosed is reported through OnPersistError for events appended after Close.
var ErrClosed = errors.New("events: log closed")

// NightSkippedPayload is attached to EventTypeNightSkipped.
type NightSkippedPayload struct {
	Reason   string `json:"reason"` // "quorum" or "timeout"
	Sleeping int    `json:"sleeping"`
	Eligible int    `json:"eligible"`
	Required int    `json:"required"`
}

// Event is an immutable record of something that happened to the vote.
type Event struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"type"`
	ActorID   string      `json:"actor_id"` // Player UUID or "SYSTEM"
	WorldID   string      `json:"world_id"`
	Payload   interface{} `json:"payload"`
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event Event) error
}

// EventLog is a bounded in-memory append-only log. With a persister, every
// event is also written through by a single writer goroutine, in append order.
type EventLog struct {
	mu        sync.RWMutex
	events    []Event
	retention int
	persister EventPersister
	onError   func(error)

	// sendMu guards queue against Close.
	sendMu    sync.RWMutex
	closed    bool
	queue     chan Event
	flushed   chan struct{}
	closeOnce sync.Once
}

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(persister EventPersister) *EventLog {
	el := &EventLog{
		events:    make([]Event, 0),
		retention: DefaultRetention,
		persister: persister,
	}
	if persister != nil {
		el.queue = make(chan Event, persistQueueSize)
		el.flushed = make(chan struct{})
		go el.writeLoop()
	}
	return el
}

func (el *EventLog) writeLoop() {
	defer close(el.flushed)
	for e := range el.queue {
		if err := el.persister.Append(e); err != nil {
			el.reportError(err)
		}
	}
}

func (el *EventLog) reportError(err error) {
	el.mu.RLock()
	onError := el.onError
	el.mu.RUnlock()
	if onError != nil {
		onError(err)
	}
}

// Close stops accepting write-throughs and waits until every queued event
// reached the persister. The in-memory log stays readable. Safe to call twice.
func (el *EventLog) Close() {
	el.closeOnce.Do(func() {
		el.sendMu.Lock()
		el.closed = true
		if el.queue != nil {
			close(el.queue)
		}
		el.sendMu.Unlock()
	})
	if el.flushed != nil {
		<-el.flushed
	}
}

// SetRetention changes how many events are kept in memory.
func (el *EventLog) SetRetention(n int) {
	el.mu.Lock()
	defer el.mu.Unlock()
	if n < 1 {
		n = 1
	}
	el.retention = n
	el.trim()
}

// OnPersistError registers a callback for failed write-throughs.
func (el *EventLog) OnPersistError(fn func(error)) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.onError = fn
}

// Append adds a new event to the log, filling in the ID and timestamp if missing.
func (el *EventLog) Append(event Event) Event {
	if event.ID == "" {
		event.ID = GenerateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	el.mu.Lock()
	el.events = append(el.events, event)
	el.trim()
	el.mu.Unlock()

	if el.queue != nil {
		el.sendMu.RLock()
		closed := el.closed
		if !closed {
			// A full queue makes the caller wait for the writer.
			el.queue <- event
		}
		el.sendMu.RUnlock()
		if closed {
			el.reportError(ErrClosed)
		}
	}
	return event
}

func (el *EventLog) trim() {
	if over := len(el.events) - el.retention; over > 0 {
		el.events = append(el.events[:0:0], el.events[over:]...)
	}
}

// ByType returns every retained event of the given type.
func (el *EventLog) ByType(t EventType) []Event {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []Event
	for _, e := range el.events {
		if e.Type == t {
			result = append(result, e)
		}
	}
	return result
}

// ByWorld returns every retained event that happened in a world.
func (el *EventLog) ByWorld(worldID string) []Event {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []Event
	for _, e := range el.events {
		if e.WorldID == worldID {
			result = append(result, e)
		}
	}
	return result
}

// ByWorldAndType returns every retained event of a type in a world.
func (el *EventLog) ByWorldAndType(worldID string, t EventType) []Event {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []Event
	for _, e := range el.events {
		if e.WorldID == worldID && e.Type == t {
			result = append(result, e)
		}
	}
	return result
}

// Recent returns up to n of the newest events, oldest first.
func (el *EventLog) Recent(n int) []Event {
	el.mu.RLock()
	defer el.mu.RUnlock()

	if n <= 0 || n > len(el.events) {
		n = len(el.events)
	}
	out := make([]Event, n)
	copy(out, el.events[len(el.events)-n:])
	return out
}

// GenerateEventID creates a unique event identifier.
func GenerateEventID() string {
	return uuid.NewString()
}
