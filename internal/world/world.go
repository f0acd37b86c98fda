// Package world is an in-memory game server: worlds with a day cycle and
// weather, players who join, sleep and quit. It plays the host for the sleep
// engine and reports every bed action to an engine.EventSink.
package world

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/staryears/sleepplus/internal/domain/rules"
	"github.com/staryears/sleepplus/internal/domain/sleeper"
	"github.com/staryears/sleepplus/internal/engine"
	"github.com/staryears/sleepplus/internal/platform/logger"
)

// Dimension is the environment of a world. Only overworlds have beds that work.
type Dimension string

const (
	DimensionOverworld Dimension = "overworld"
	DimensionNether    Dimension = "nether"
	DimensionEnd       Dimension = "the_end"
)

// GameTicksPerSecond is the speed of the simulated clock.
const GameTicksPerSecond = 20

var (
	ErrUnknownWorld  = errors.New("world: unknown world")
	ErrUnknownPlayer = errors.New("world: unknown player")
)

// Broadcaster delivers chat text to connected players.
type Broadcaster interface {
	BroadcastText(text string)
}

// World is the state of one world.
type World struct {
	ID         sleeper.WorldID `json:"id"`
	Dimension  Dimension       `json:"dimension"`
	Time       int64           `json:"time"`
	Storm      bool            `json:"storm"`
	Thundering bool            `json:"thundering"`
}

// Player is the state of one player.
type Player struct {
	ID              sleeper.ParticipantID `json:"id"`
	Name            string                `json:"name"`
	World           sleeper.WorldID       `json:"world"`
	Online          bool                  `json:"online"`
	Sleeping        bool                  `json:"sleeping"`
	SleepingIgnored bool                  `json:"sleeping_ignored"`
}

// Server is the simulated host. It is safe for concurrent use.
type Server struct {
	mu      sync.RWMutex
	worlds  map[sleeper.WorldID]*World
	players map[sleeper.ParticipantID]*Player

	sink        engine.EventSink
	broadcaster Broadcaster
	logger      *logger.Logger
	now         func() time.Time
}

var _ engine.Host = (*Server)(nil)

// NewServer creates an empty server.
func NewServer(log *logger.Logger) *Server {
	return &Server{
		worlds:  make(map[sleeper.WorldID]*World),
		players: make(map[sleeper.ParticipantID]*Player),
		logger:  log,
		now:     time.Now,
	}
}

// SetSink wires the engine that receives bed activity.
func (s *Server) SetSink(sink engine.EventSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

// SetBroadcaster wires the chat transport.
func (s *Server) SetBroadcaster(b Broadcaster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcaster = b
}

// AddWorld creates a world, or resets an existing one.
func (s *Server) AddWorld(id sleeper.WorldID, dim Dimension, t int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.worlds[id] = &World{ID: id, Dimension: dim, Time: t}
}

// Worlds returns a snapshot of every world, sorted by ID.
func (s *Server) Worlds() []World {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]World, 0, len(s.worlds))
	for _, w := range s.worlds {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Player returns a snapshot of one player.
func (s *Server) Player(id sleeper.ParticipantID) (Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[id]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// SetWeather starts or ends a storm. Thunder needs a storm.
func (s *Server) SetWeather(id sleeper.WorldID, storm, thundering bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.worlds[id]
	if !ok {
		return ErrUnknownWorld
	}
	w.Storm = storm
	w.Thundering = storm && thundering
	return nil
}

// Join brings a player online in a world. Rejoining keeps the player's ID.
func (s *Server) Join(id sleeper.ParticipantID, name string, world sleeper.WorldID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.worlds[world]; !ok {
		return ErrUnknownWorld
	}
	p, ok := s.players[id]
	if !ok {
		p = &Player{ID: id}
		s.players[id] = p
	}
	p.Name = name
	p.World = world
	p.Online = true
	p.Sleeping = false
	s.logger.Infof("%s joined %s.", name, world)
	return nil
}

// EnterBed tries to put a player to sleep and reports the attempt to the sink.
func (s *Server) EnterBed(id sleeper.ParticipantID) (engine.BedResult, error) {
	s.mu.Lock()
	p, ok := s.players[id]
	if !ok {
		s.mu.Unlock()
		return "", ErrUnknownPlayer
	}

	result := engine.BedResultOK
	w := s.worlds[p.World]
	switch {
	case !p.Online || w == nil || w.Dimension != DimensionOverworld:
		result = engine.BedResultNotPossibleHere
	case p.Sleeping:
		// Already in bed; nothing changes and nothing is reported.
		s.mu.Unlock()
		return engine.BedResultOK, nil
	case !rules.NeedsSkipCheck(w.Time, w.Thundering):
		result = engine.BedResultNotPossibleNow
	}
	if result == engine.BedResultOK {
		p.Sleeping = true
	}
	ev := engine.BedEnter{Participant: id, World: p.World, Result: result, At: s.now()}
	sink := s.sink
	s.mu.Unlock()

	// Never call out while holding the lock: the engine reads us back.
	if sink != nil {
		sink.OnBeginSleep(ev)
	}
	return result, nil
}

// LeaveBed wakes a player up.
func (s *Server) LeaveBed(id sleeper.ParticipantID) error {
	s.mu.Lock()
	p, ok := s.players[id]
	if !ok {
		s.mu.Unlock()
		return ErrUnknownPlayer
	}
	wasSleeping := p.Sleeping
	p.Sleeping = false
	sink := s.sink
	s.mu.Unlock()

	if wasSleeping && sink != nil {
		sink.OnLeaveSleep(id)
	}
	return nil
}

// Quit takes a player offline.
func (s *Server) Quit(id sleeper.ParticipantID) error {
	s.mu.Lock()
	p, ok := s.players[id]
	if !ok || !p.Online {
		s.mu.Unlock()
		if !ok {
			return ErrUnknownPlayer
		}
		return nil
	}
	p.Online = false
	p.Sleeping = false
	name := p.Name
	sink := s.sink
	s.mu.Unlock()

	s.logger.Infof("%s left the game.", name)
	if sink != nil {
		sink.OnDisconnect(id)
	}
	return nil
}

// SetSleepingIgnored excludes a player from the eligible count, or includes them again.
func (s *Server) SetSleepingIgnored(id sleeper.ParticipantID, ignored bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[id]
	if !ok {
		return ErrUnknownPlayer
	}
	p.SleepingIgnored = ignored
	return nil
}

// Teleport moves a player to another world. A sleeping player gets out of bed first.
func (s *Server) Teleport(id sleeper.ParticipantID, world sleeper.WorldID) error {
	s.mu.Lock()
	p, ok := s.players[id]
	if !ok {
		s.mu.Unlock()
		return ErrUnknownPlayer
	}
	if _, ok := s.worlds[world]; !ok {
		s.mu.Unlock()
		return ErrUnknownWorld
	}
	wasSleeping := p.Sleeping
	p.Sleeping = false
	p.World = world
	sink := s.sink
	s.mu.Unlock()

	if wasSleeping && sink != nil {
		sink.OnLeaveSleep(id)
	}
	return nil
}

// Advance moves every world's clock forward. Sleepers whose world reaches
// daylight with clear skies get out of bed, as a real server would do.
func (s *Server) Advance(gameTicks int64) {
	s.mu.Lock()
	for _, w := range s.worlds {
		w.Time = (w.Time + gameTicks) % rules.DayLength
	}
	woke := s.wakeUpLocked()
	sink := s.sink
	s.mu.Unlock()

	s.notifyWoke(sink, woke)
}

// wakeUpLocked gets every sleeper out of bed whose world no longer allows sleeping.
func (s *Server) wakeUpLocked() []sleeper.ParticipantID {
	var woke []sleeper.ParticipantID
	for id, p := range s.players {
		if !p.Sleeping {
			continue
		}
		w := s.worlds[p.World]
		if w == nil || !rules.NeedsSkipCheck(w.Time, w.Thundering) {
			p.Sleeping = false
			woke = append(woke, id)
		}
	}
	return woke
}

func (s *Server) notifyWoke(sink engine.EventSink, woke []sleeper.ParticipantID) {
	if sink == nil {
		return
	}
	for _, id := range woke {
		sink.OnLeaveSleep(id)
	}
}

// Run advances the clock in real time until ctx is done.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second / GameTicksPerSecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("World clock stopped.")
			return
		case <-ticker.C:
			s.Advance(1)
		}
	}
}
