package engine

import (
	"sync"

	"github.com/google/uuid"

	"github.com/staryears/sleepplus/internal/domain/sleeper"
)

type fakeWorld struct {
	time       int64
	thundering bool
	storm      bool
	eligible   int
	// frozen makes SetWorldTime a no-op, like a host that applies time changes late.
	frozen bool
}

type fakePlayer struct {
	name     string
	world    sleeper.WorldID
	sleeping bool
	online   bool
}

// fakeHost is an in-memory Host for tests. Eligible counts are set directly
// so that scenarios do not need to create every player.
type fakeHost struct {
	mu         sync.Mutex
	worlds     map[sleeper.WorldID]*fakeWorld
	order      []sleeper.WorldID
	players    map[sleeper.ParticipantID]*fakePlayer
	broadcasts []string
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		worlds:  make(map[sleeper.WorldID]*fakeWorld),
		players: make(map[sleeper.ParticipantID]*fakePlayer),
	}
}

func (h *fakeHost) addWorld(id sleeper.WorldID, time int64, eligible int) *fakeWorld {
	h.mu.Lock()
	defer h.mu.Unlock()
	w := &fakeWorld{time: time, eligible: eligible}
	h.worlds[id] = w
	h.order = append(h.order, id)
	return w
}

func (h *fakeHost) addPlayer(name string, world sleeper.WorldID) sleeper.ParticipantID {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := uuid.New()
	h.players[id] = &fakePlayer{name: name, world: world, online: true}
	return id
}

func (h *fakeHost) setSleeping(id sleeper.ParticipantID, sleeping bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.players[id].sleeping = sleeping
}

func (h *fakeHost) setOnline(id sleeper.ParticipantID, online bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.players[id].online = online
}

func (h *fakeHost) world(id sleeper.WorldID) fakeWorld {
	h.mu.Lock()
	defer h.mu.Unlock()
	return *h.worlds[id]
}

func (h *fakeHost) update(id sleeper.WorldID, fn func(w *fakeWorld)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h.worlds[id])
}

func (h *fakeHost) messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.broadcasts...)
}

func (h *fakeHost) SleepWorlds() []sleeper.WorldID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]sleeper.WorldID(nil), h.order...)
}

func (h *fakeHost) EligibleCount(world sleeper.WorldID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if w, ok := h.worlds[world]; ok {
		return w.eligible
	}
	return 0
}

func (h *fakeHost) WorldTime(world sleeper.WorldID) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.worlds[world].time
}

func (h *fakeHost) IsThundering(world sleeper.WorldID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.worlds[world].thundering
}

func (h *fakeHost) HasStorm(world sleeper.WorldID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.worlds[world].storm
}

func (h *fakeHost) Locate(id sleeper.ParticipantID) (sleeper.WorldID, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.players[id]
	if !ok || !p.online {
		return "", false
	}
	return p.world, true
}

func (h *fakeHost) IsLiveSleeping(id sleeper.ParticipantID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.players[id]
	return ok && p.online && p.sleeping
}

func (h *fakeHost) DisplayName(id sleeper.ParticipantID) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := h.players[id]; ok {
		return p.name
	}
	return id.String()
}

func (h *fakeHost) SetWorldTime(world sleeper.WorldID, t int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if w := h.worlds[world]; !w.frozen {
		w.time = t
	}
}

func (h *fakeHost) SetStorm(world sleeper.WorldID, storm bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.worlds[world].storm = storm
}

func (h *fakeHost) SetThundering(world sleeper.WorldID, thundering bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.worlds[world].thundering = thundering
}

func (h *fakeHost) Broadcast(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcasts = append(h.broadcasts, text)
}
