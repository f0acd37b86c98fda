package engine

import (
	"time"

	"github.com/staryears/sleepplus/internal/domain/sleeper"
)

// BedResult is the host's verdict on a bed-enter attempt.
type BedResult string

const (
	BedResultOK              BedResult = "OK"
	BedResultNotPossibleNow  BedResult = "NOT_POSSIBLE_NOW"
	BedResultNotPossibleHere BedResult = "NOT_POSSIBLE_HERE"
	BedResultNotSafe         BedResult = "NOT_SAFE"
	BedResultTooFarAway      BedResult = "TOO_FAR_AWAY"
)

// BedEnter is reported by the host whenever a player tries to use a bed.
type BedEnter struct {
	Participant sleeper.ParticipantID
	World       sleeper.WorldID
	Result      BedResult
	At          time.Time
}

// EventSink receives bed activity from the host.
type EventSink interface {
	OnBeginSleep(ev BedEnter)
	OnLeaveSleep(id sleeper.ParticipantID)
	OnDisconnect(id sleeper.ParticipantID)
}

// HostQuery is the read side of the game server.
type HostQuery interface {
	// SleepWorlds lists the worlds in which players can sleep.
	SleepWorlds() []sleeper.WorldID
	// EligibleCount counts online players in world that are not ignoring sleep.
	EligibleCount(world sleeper.WorldID) int
	WorldTime(world sleeper.WorldID) int64
	IsThundering(world sleeper.WorldID) bool
	HasStorm(world sleeper.WorldID) bool
	// Locate returns the world an online player is currently in.
	Locate(id sleeper.ParticipantID) (sleeper.WorldID, bool)
	// IsLiveSleeping reports the host's own view of whether id is asleep right now.
	IsLiveSleeping(id sleeper.ParticipantID) bool
	DisplayName(id sleeper.ParticipantID) string
}

// HostActions is the write side of the game server.
type HostActions interface {
	SetWorldTime(world sleeper.WorldID, t int64)
	SetStorm(world sleeper.WorldID, storm bool)
	SetThundering(world sleeper.WorldID, thundering bool)
	Broadcast(text string)
}

// Host is a game server as seen by the engine.
type Host interface {
	HostQuery
	HostActions
}
