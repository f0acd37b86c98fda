// Package sleeper defines who is in bed, where, and since when.
// This package is PURE and must NOT import any infrastructure packages (network, events, platform).
package sleeper

import (
	"time"

	"github.com/google/uuid"
)

// ParticipantID identifies a player for the lifetime of their session.
type ParticipantID = uuid.UUID

// WorldID identifies an isolated group in which the vote is held.
type WorldID string

// Entry records one sleep session.
type Entry struct {
	Participant ParticipantID `json:"participant"`
	World       WorldID       `json:"world"`
	Since       time.Time     `json:"since"`
}

// Tracker holds the open sleep sessions, keyed by world.
// It is not safe for concurrent use; the owner serializes access.
type Tracker struct {
	byWorld map[WorldID]map[ParticipantID]Entry
	worldOf map[ParticipantID]WorldID
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		byWorld: make(map[WorldID]map[ParticipantID]Entry),
		worldOf: make(map[ParticipantID]WorldID),
	}
}

// Begin opens a session for id in world, replacing any session it already had.
func (t *Tracker) Begin(world WorldID, id ParticipantID, since time.Time) {
	t.End(id)

	sessions, ok := t.byWorld[world]
	if !ok {
		sessions = make(map[ParticipantID]Entry)
		t.byWorld[world] = sessions
	}
	sessions[id] = Entry{Participant: id, World: world, Since: since}
	t.worldOf[id] = world
}

// End closes the session of id. It returns false if there was none.
func (t *Tracker) End(id ParticipantID) bool {
	world, ok := t.worldOf[id]
	if !ok {
		return false
	}
	delete(t.worldOf, id)

	sessions := t.byWorld[world]
	delete(sessions, id)
	if len(sessions) == 0 {
		delete(t.byWorld, world)
	}
	return true
}

// IsSleeping reports whether id has an open session.
func (t *Tracker) IsSleeping(id ParticipantID) bool {
	_, ok := t.worldOf[id]
	return ok
}

// Get returns the open session of id.
func (t *Tracker) Get(id ParticipantID) (Entry, bool) {
	world, ok := t.worldOf[id]
	if !ok {
		return Entry{}, false
	}
	e, ok := t.byWorld[world][id]
	return e, ok
}

// Duration returns how long id has been in bed at now.
func (t *Tracker) Duration(id ParticipantID, now time.Time) (time.Duration, bool) {
	e, ok := t.Get(id)
	if !ok {
		return 0, false
	}
	return now.Sub(e.Since), true
}

// Active returns every sleeping participant accepted by filter.
// A nil filter accepts everyone.
func (t *Tracker) Active(filter func(Entry) bool) []ParticipantID {
	var ids []ParticipantID
	for _, sessions := range t.byWorld {
		for id, e := range sessions {
			if filter == nil || filter(e) {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// ActiveIn returns the open sessions of a single world.
func (t *Tracker) ActiveIn(world WorldID) []Entry {
	sessions := t.byWorld[world]
	entries := make([]Entry, 0, len(sessions))
	for _, e := range sessions {
		entries = append(entries, e)
	}
	return entries
}

// Len returns the number of open sessions.
func (t *Tracker) Len() int {
	return len(t.worldOf)
}

// Clear drops every session.
func (t *Tracker) Clear() {
	t.byWorld = make(map[WorldID]map[ParticipantID]Entry)
	t.worldOf = make(map[ParticipantID]WorldID)
}
