package world

import (
	"sort"

	"github.com/staryears/sleepplus/internal/domain/sleeper"
)

// SleepWorlds lists the overworlds, sorted by ID.
func (s *Server) SleepWorlds() []sleeper.WorldID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []sleeper.WorldID
	for id, w := range s.worlds {
		if w.Dimension == DimensionOverworld {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// EligibleCount counts online players in world that do not ignore sleep.
func (s *Server) EligibleCount(world sleeper.WorldID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.players {
		if p.Online && p.World == world && !p.SleepingIgnored {
			n++
		}
	}
	return n
}

// WorldTime returns the clock of a world, or 0 if it does not exist.
func (s *Server) WorldTime(world sleeper.WorldID) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if w, ok := s.worlds[world]; ok {
		return w.Time
	}
	return 0
}

// IsThundering reports whether a world has a thunderstorm.
func (s *Server) IsThundering(world sleeper.WorldID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.worlds[world]
	return ok && w.Thundering
}

// HasStorm reports whether it rains in a world.
func (s *Server) HasStorm(world sleeper.WorldID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.worlds[world]
	return ok && w.Storm
}

// Locate returns the world of an online player.
func (s *Server) Locate(id sleeper.ParticipantID) (sleeper.WorldID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[id]
	if !ok || !p.Online {
		return "", false
	}
	return p.World, true
}

// IsLiveSleeping reports whether a player is in bed right now.
func (s *Server) IsLiveSleeping(id sleeper.ParticipantID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[id]
	return ok && p.Online && p.Sleeping
}

// DisplayName returns a player's name, falling back to the ID.
func (s *Server) DisplayName(id sleeper.ParticipantID) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.players[id]; ok && p.Name != "" {
		return p.Name
	}
	return id.String()
}

// SetWorldTime sets a world's clock. Players get out of bed if it is now day.
// The engine calls this from its own loop, so the wake-ups are reported
// asynchronously instead of re-entering the engine.
func (s *Server) SetWorldTime(world sleeper.WorldID, t int64) {
	s.mu.Lock()
	if w, ok := s.worlds[world]; ok {
		w.Time = t
	}
	s.wakeAndUnlock()
}

// SetStorm starts or stops rain.
func (s *Server) SetStorm(world sleeper.WorldID, storm bool) {
	s.mu.Lock()
	if w, ok := s.worlds[world]; ok {
		w.Storm = storm
		if !storm {
			w.Thundering = false
		}
	}
	s.wakeAndUnlock()
}

// SetThundering starts or stops thunder.
func (s *Server) SetThundering(world sleeper.WorldID, thundering bool) {
	s.mu.Lock()
	if w, ok := s.worlds[world]; ok {
		w.Thundering = thundering
	}
	s.wakeAndUnlock()
}

// wakeAndUnlock releases s.mu after getting out of bed everyone who can no
// longer sleep. The sink hears about it on another goroutine because these
// setters are called from the engine loop.
func (s *Server) wakeAndUnlock() {
	woke := s.wakeUpLocked()
	sink := s.sink
	s.mu.Unlock()

	if len(woke) > 0 {
		go s.notifyWoke(sink, woke)
	}
}

// Broadcast sends chat text to everyone.
func (s *Server) Broadcast(text string) {
	s.mu.RLock()
	b := s.broadcaster
	s.mu.RUnlock()

	s.logger.Info("[CHAT] " + text)
	if b != nil {
		b.BroadcastText(text)
	}
}
