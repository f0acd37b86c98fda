package world

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staryears/sleepplus/internal/domain/rules"
	"github.com/staryears/sleepplus/internal/domain/sleeper"
	"github.com/staryears/sleepplus/internal/engine"
	"github.com/staryears/sleepplus/internal/platform/logger"
)

type recordingSink struct {
	mu     sync.Mutex
	begins []engine.BedEnter
	leaves []sleeper.ParticipantID
	quits  []sleeper.ParticipantID
}

func (r *recordingSink) OnBeginSleep(ev engine.BedEnter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.begins = append(r.begins, ev)
}

func (r *recordingSink) OnLeaveSleep(id sleeper.ParticipantID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaves = append(r.leaves, id)
}

func (r *recordingSink) OnDisconnect(id sleeper.ParticipantID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quits = append(r.quits, id)
}

func (r *recordingSink) leaveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.leaves)
}

type recordingBroadcaster struct {
	texts []string
}

func (b *recordingBroadcaster) BroadcastText(text string) {
	b.texts = append(b.texts, text)
}

func newTestServer(t *testing.T) (*Server, *recordingSink) {
	t.Helper()
	s := NewServer(logger.Discard())
	s.AddWorld("world", DimensionOverworld, 18000)
	s.AddWorld("world_nether", DimensionNether, 18000)
	sink := &recordingSink{}
	s.SetSink(sink)
	return s, sink
}

func TestEnterBedAtNight(t *testing.T) {
	s, sink := newTestServer(t)
	id := uuid.New()
	require.NoError(t, s.Join(id, "Alex", "world"))

	result, err := s.EnterBed(id)
	require.NoError(t, err)
	assert.Equal(t, engine.BedResultOK, result)
	assert.True(t, s.IsLiveSleeping(id))

	require.Len(t, sink.begins, 1)
	assert.Equal(t, engine.BedResultOK, sink.begins[0].Result)
	assert.Equal(t, sleeper.WorldID("world"), sink.begins[0].World)
	assert.False(t, sink.begins[0].At.IsZero())
}

func TestEnterBedRejections(t *testing.T) {
	s, sink := newTestServer(t)
	s.AddWorld("sunny", DimensionOverworld, 6000)

	day, nether := uuid.New(), uuid.New()
	require.NoError(t, s.Join(day, "Day", "sunny"))
	require.NoError(t, s.Join(nether, "Nether", "world_nether"))

	result, err := s.EnterBed(day)
	require.NoError(t, err)
	assert.Equal(t, engine.BedResultNotPossibleNow, result)

	result, err = s.EnterBed(nether)
	require.NoError(t, err)
	assert.Equal(t, engine.BedResultNotPossibleHere, result)

	assert.False(t, s.IsLiveSleeping(day))
	assert.False(t, s.IsLiveSleeping(nether))
	assert.Len(t, sink.begins, 2, "rejections are still reported")

	_, err = s.EnterBed(uuid.New())
	assert.ErrorIs(t, err, ErrUnknownPlayer)
}

func TestThunderstormAllowsDaySleep(t *testing.T) {
	s, _ := newTestServer(t)
	s.AddWorld("sunny", DimensionOverworld, 6000)
	require.NoError(t, s.SetWeather("sunny", true, true))
	id := uuid.New()
	require.NoError(t, s.Join(id, "Alex", "sunny"))

	result, err := s.EnterBed(id)
	require.NoError(t, err)
	assert.Equal(t, engine.BedResultOK, result)
}

func TestLeaveBedAndQuitNotifySink(t *testing.T) {
	s, sink := newTestServer(t)
	a, b := uuid.New(), uuid.New()
	require.NoError(t, s.Join(a, "Alex", "world"))
	require.NoError(t, s.Join(b, "Steve", "world"))
	_, _ = s.EnterBed(a)
	_, _ = s.EnterBed(b)

	require.NoError(t, s.LeaveBed(a))
	require.NoError(t, s.LeaveBed(a)) // not sleeping any more, not reported again
	require.NoError(t, s.Quit(b))
	require.NoError(t, s.Quit(b))

	assert.Equal(t, []sleeper.ParticipantID{a}, sink.leaves)
	assert.Equal(t, []sleeper.ParticipantID{b}, sink.quits)

	_, online := s.Locate(b)
	assert.False(t, online)
	assert.Equal(t, 1, s.EligibleCount("world"))
}

func TestEligibleCountSkipsIgnoredAndOtherWorlds(t *testing.T) {
	s, _ := newTestServer(t)
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	require.NoError(t, s.Join(a, "Alex", "world"))
	require.NoError(t, s.Join(b, "AFK", "world"))
	require.NoError(t, s.Join(c, "Miner", "world_nether"))
	require.NoError(t, s.SetSleepingIgnored(b, true))

	assert.Equal(t, 1, s.EligibleCount("world"))
	assert.Equal(t, 1, s.EligibleCount("world_nether"))
	assert.Equal(t, []sleeper.WorldID{"world"}, s.SleepWorlds())
}

func TestTeleportGetsSleeperOutOfBed(t *testing.T) {
	s, sink := newTestServer(t)
	id := uuid.New()
	require.NoError(t, s.Join(id, "Alex", "world"))
	_, _ = s.EnterBed(id)

	require.NoError(t, s.Teleport(id, "world_nether"))
	at, ok := s.Locate(id)
	require.True(t, ok)
	assert.Equal(t, sleeper.WorldID("world_nether"), at)
	assert.Equal(t, []sleeper.ParticipantID{id}, sink.leaves)
	assert.ErrorIs(t, s.Teleport(id, "missing"), ErrUnknownWorld)
}

func TestAdvanceWakesSleepersAtDawn(t *testing.T) {
	s, sink := newTestServer(t)
	s.AddWorld("late", DimensionOverworld, rules.NightEnd-10)
	id := uuid.New()
	require.NoError(t, s.Join(id, "Alex", "late"))
	_, _ = s.EnterBed(id)

	s.Advance(5)
	assert.True(t, s.IsLiveSleeping(id))

	s.Advance(10)
	assert.False(t, s.IsLiveSleeping(id))
	assert.Equal(t, 1, sink.leaveCount())
}

func TestAdvanceWrapsDay(t *testing.T) {
	s, _ := newTestServer(t)
	s.AddWorld("wrap", DimensionOverworld, rules.DayLength-1)
	s.Advance(2)
	assert.Equal(t, int64(1), s.WorldTime("wrap"))
}

func TestSetWorldTimeWakesSleepersAsynchronously(t *testing.T) {
	s, sink := newTestServer(t)
	id := uuid.New()
	require.NoError(t, s.Join(id, "Alex", "world"))
	_, _ = s.EnterBed(id)

	s.SetWorldTime("world", rules.MorningTime)
	assert.False(t, s.IsLiveSleeping(id))
	assert.Eventually(t, func() bool { return sink.leaveCount() == 1 }, time.Second, time.Millisecond)
}

func TestSetStormClearsThunder(t *testing.T) {
	s, _ := newTestServer(t)
	require.NoError(t, s.SetWeather("world", true, true))
	assert.True(t, s.HasStorm("world"))
	assert.True(t, s.IsThundering("world"))

	s.SetStorm("world", false)
	assert.False(t, s.HasStorm("world"))
	assert.False(t, s.IsThundering("world"))
}

func TestClearingWeatherWakesSleepersAfterMorning(t *testing.T) {
	s, sink := newTestServer(t)
	require.NoError(t, s.SetWeather("world", true, true))
	id := uuid.New()
	require.NoError(t, s.Join(id, "Alex", "world"))
	_, _ = s.EnterBed(id)
	require.True(t, s.IsLiveSleeping(id))

	// Thunder still allows sleeping in the morning.
	s.SetWorldTime("world", rules.MorningTime)
	assert.True(t, s.IsLiveSleeping(id))

	s.SetStorm("world", false)
	assert.False(t, s.IsLiveSleeping(id))
	assert.Eventually(t, func() bool { return sink.leaveCount() == 1 }, time.Second, time.Millisecond)
}

func TestStoppingThunderWakesSleepers(t *testing.T) {
	s, sink := newTestServer(t)
	s.AddWorld("stormy", DimensionOverworld, rules.MorningTime)
	require.NoError(t, s.SetWeather("stormy", true, true))
	id := uuid.New()
	require.NoError(t, s.Join(id, "Steve", "stormy"))
	_, _ = s.EnterBed(id)
	require.True(t, s.IsLiveSleeping(id))

	s.SetThundering("stormy", false)
	assert.False(t, s.IsLiveSleeping(id))
	assert.True(t, s.HasStorm("stormy"))
	assert.Eventually(t, func() bool { return sink.leaveCount() == 1 }, time.Second, time.Millisecond)
}

func TestBroadcastReachesBroadcaster(t *testing.T) {
	s, _ := newTestServer(t)
	b := &recordingBroadcaster{}
	s.SetBroadcaster(b)

	s.Broadcast("[SleepPlus] hello")
	assert.Equal(t, []string{"[SleepPlus] hello"}, b.texts)
}

func TestDisplayNameFallsBackToID(t *testing.T) {
	s, _ := newTestServer(t)
	id := uuid.New()
	assert.Equal(t, id.String(), s.DisplayName(id))
	require.NoError(t, s.Join(id, "Alex", "world"))
	assert.Equal(t, "Alex", s.DisplayName(id))
}
