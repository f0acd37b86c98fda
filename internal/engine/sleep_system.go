package engine

import (
	"fmt"
	"time"

	"github.com/staryears/sleepplus/internal/domain/rules"
	"github.com/staryears/sleepplus/internal/domain/sleeper"
	"github.com/staryears/sleepplus/internal/events"
	"github.com/staryears/sleepplus/internal/platform/logger"
	"github.com/staryears/sleepplus/internal/platform/metrics"
)

// Broadcast texts.
const (
	MessagePrefix  = "[SleepPlus] "
	SkippedMessage = MessagePrefix + "The night has been skipped. Good morning!"
)

// Reason explains why a night was skipped.
type Reason string

const (
	ReasonNone    Reason = ""
	ReasonQuorum  Reason = "quorum"
	ReasonTimeout Reason = "timeout"
)

// Settings are the tunables of the vote.
type Settings struct {
	ThresholdPercentage float64
	TimeoutEnabled      bool
	Timeout             time.Duration
	// ResolveLatch stops a world from being skipped twice in the same night
	// when the host is slow to report that it is morning.
	ResolveLatch bool
}

// DefaultSettings mirrors the stock config file.
func DefaultSettings() Settings {
	return Settings{
		ThresholdPercentage: 50.0,
		TimeoutEnabled:      true,
		Timeout:             30 * time.Second,
		ResolveLatch:        true,
	}
}

// Status is the vote tally of a world.
type Status struct {
	World    sleeper.WorldID `json:"world"`
	Sleeping int             `json:"sleeping"`
	Eligible int             `json:"eligible"`
	Required int             `json:"required"`
}

// Decision is the outcome of evaluating one world on one tick.
type Decision struct {
	Status
	Reason  Reason `json:"reason,omitempty"`
	Latched bool   `json:"latched,omitempty"`
}

// SleepSystem tracks who is in bed and skips the night once enough players
// sleep or one of them has waited long enough.
// It is not safe for concurrent use; the Ticker owns it.
type SleepSystem struct {
	tracker  *sleeper.Tracker
	host     Host
	eventLog *events.EventLog
	logger   *logger.Logger
	metrics  *metrics.Collector
	settings Settings
	resolved map[sleeper.WorldID]bool
}

var _ EventSink = (*SleepSystem)(nil)

// NewSleepSystem creates the vote over a host.
func NewSleepSystem(host Host, eventLog *events.EventLog, log *logger.Logger, m *metrics.Collector, settings Settings) *SleepSystem {
	if m == nil {
		m = metrics.New()
	}
	return &SleepSystem{
		tracker:  sleeper.NewTracker(),
		host:     host,
		eventLog: eventLog,
		logger:   log,
		metrics:  m,
		settings: settings,
		resolved: make(map[sleeper.WorldID]bool),
	}
}

// Tracker exposes the sleep ledger for inspection.
func (s *SleepSystem) Tracker() *sleeper.Tracker {
	return s.tracker
}

// Settings returns the active settings.
func (s *SleepSystem) Settings() Settings {
	return s.settings
}

// ApplySettings swaps the tunables. Open sleep sessions are kept.
func (s *SleepSystem) ApplySettings(settings Settings) {
	s.settings = settings
	if !settings.ResolveLatch {
		s.resolved = make(map[sleeper.WorldID]bool)
	}
	s.eventLog.Append(events.Event{
		Type:    events.EventTypeSettingsApplied,
		ActorID: "SYSTEM",
		Payload: settings,
	})
}

// OnBeginSleep records an accepted bed entry and tells everyone the new tally.
func (s *SleepSystem) OnBeginSleep(ev BedEnter) {
	if ev.Result != BedResultOK {
		return
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	s.tracker.Begin(ev.World, ev.Participant, at)
	s.metrics.RecordBedEnter()
	s.eventLog.Append(events.Event{
		Timestamp: at,
		Type:      events.EventTypeBedEnter,
		ActorID:   ev.Participant.String(),
		WorldID:   string(ev.World),
	})

	st := s.Status(ev.World)
	s.host.Broadcast(fmt.Sprintf("%s%s is sleeping. (%d/%d, required: %d)",
		MessagePrefix, s.host.DisplayName(ev.Participant), st.Sleeping, st.Eligible, st.Required))
}

// OnLeaveSleep closes the sleep session of id, if any.
func (s *SleepSystem) OnLeaveSleep(id sleeper.ParticipantID) {
	if s.end(id, events.EventTypeBedLeave) {
		s.metrics.RecordBedLeave()
	}
}

// OnDisconnect has the same effect on the ledger as OnLeaveSleep.
func (s *SleepSystem) OnDisconnect(id sleeper.ParticipantID) {
	if s.end(id, events.EventTypePlayerQuit) {
		s.metrics.RecordDisconnect()
	}
}

func (s *SleepSystem) end(id sleeper.ParticipantID, t events.EventType) bool {
	entry, ok := s.tracker.Get(id)
	if !ok {
		return false
	}
	s.tracker.End(id)
	s.eventLog.Append(events.Event{
		Type:    t,
		ActorID: id.String(),
		WorldID: string(entry.World),
	})
	return true
}

// Status returns the current tally of a world.
func (s *SleepSystem) Status(world sleeper.WorldID) Status {
	eligible := s.host.EligibleCount(world)
	return Status{
		World:    world,
		Sleeping: len(s.liveSleepers(world)),
		Eligible: eligible,
		Required: rules.RequiredCount(eligible, s.settings.ThresholdPercentage),
	}
}

// liveSleepers returns the ledger entries of world whose players the host
// still reports as asleep in that world. The host is authoritative: a player
// can wake up before the leave event reaches us.
func (s *SleepSystem) liveSleepers(world sleeper.WorldID) []sleeper.Entry {
	entries := s.tracker.ActiveIn(world)
	live := entries[:0]
	for _, e := range entries {
		at, online := s.host.Locate(e.Participant)
		if online && at == world && s.host.IsLiveSleeping(e.Participant) {
			live = append(live, e)
		}
	}
	return live
}

// Tick evaluates every sleepable world once and skips the night where due.
// It returns the decision of every world that was evaluated.
func (s *SleepSystem) Tick(now time.Time) []Decision {
	var decisions []Decision
	for _, world := range s.host.SleepWorlds() {
		d, evaluated := s.evaluate(world, now)
		if !evaluated {
			continue
		}
		if d.Reason != ReasonNone {
			s.skipNight(d)
		}
		decisions = append(decisions, d)
	}
	return decisions
}

func (s *SleepSystem) evaluate(world sleeper.WorldID, now time.Time) (Decision, bool) {
	if !rules.NeedsSkipCheck(s.host.WorldTime(world), s.host.IsThundering(world)) {
		// Morning has been observed; the world may be skipped again next night.
		delete(s.resolved, world)
		return Decision{}, false
	}

	eligible := s.host.EligibleCount(world)
	if eligible <= 0 {
		return Decision{Status: Status{World: world}}, true
	}

	live := s.liveSleepers(world)
	d := Decision{Status: Status{
		World:    world,
		Sleeping: len(live),
		Eligible: eligible,
		Required: rules.RequiredCount(eligible, s.settings.ThresholdPercentage),
	}}

	if s.settings.ResolveLatch && s.resolved[world] {
		d.Latched = true
		return d, true
	}

	if rules.QuorumReached(d.Sleeping, d.Required) {
		d.Reason = ReasonQuorum
		return d, true
	}

	if s.settings.TimeoutEnabled && d.Sleeping > 0 {
		for _, e := range live {
			if rules.TimedOut(now.Sub(e.Since), s.settings.Timeout) {
				d.Reason = ReasonTimeout
				break
			}
		}
	}
	return d, true
}

// skipNight moves a world to morning, clears its weather and tells everyone.
func (s *SleepSystem) skipNight(d Decision) {
	world := d.World
	s.host.SetWorldTime(world, rules.MorningTime)
	if s.host.HasStorm(world) {
		s.host.SetStorm(world, false)
		s.host.SetThundering(world, false)
	}
	s.host.Broadcast(SkippedMessage)

	if s.settings.ResolveLatch {
		s.resolved[world] = true
	}

	s.metrics.RecordSkip(string(d.Reason))
	s.eventLog.Append(events.Event{
		Type:    events.EventTypeNightSkipped,
		ActorID: "SYSTEM",
		WorldID: string(world),
		Payload: events.NightSkippedPayload{
			Reason:   string(d.Reason),
			Sleeping: d.Sleeping,
			Eligible: d.Eligible,
			Required: d.Required,
		},
	})
	s.logger.Event("NIGHT_SKIPPED", string(world),
		fmt.Sprintf("reason=%s sleeping=%d/%d required=%d", d.Reason, d.Sleeping, d.Eligible, d.Required))
}

// Reset drops every sleep session and latch.
func (s *SleepSystem) Reset() {
	s.tracker.Clear()
	s.resolved = make(map[sleeper.WorldID]bool)
}
