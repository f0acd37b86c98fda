package engine

import (
	"context"
	"time"

	"github.com/staryears/sleepplus/internal/domain/sleeper"
	"github.com/staryears/sleepplus/internal/events"
	"github.com/staryears/sleepplus/internal/platform/logger"
	"github.com/staryears/sleepplus/internal/platform/metrics"
)

// Engine is the central orchestrator: it owns the SleepSystem and serializes
// everything that touches it onto the Ticker goroutine.
type Engine struct {
	eventLog *events.EventLog
	logger   *logger.Logger
	metrics  *metrics.Collector
	ticker   *Ticker
	system   *SleepSystem
}

var _ EventSink = (*Engine)(nil)

// NewEngine wires the vote to a host. It does nothing until Start.
func NewEngine(host Host, eventLog *events.EventLog, log *logger.Logger, m *metrics.Collector, settings Settings, interval time.Duration) *Engine {
	if m == nil {
		m = metrics.New()
	}
	e := &Engine{
		eventLog: eventLog,
		logger:   log,
		metrics:  m,
		system:   NewSleepSystem(host, eventLog, log, m, settings),
	}
	e.ticker = NewTicker(interval, e.tick, log)
	return e
}

// Start spawns the heartbeat.
func (e *Engine) Start(ctx context.Context) {
	e.logger.Infof("Starting sleep engine (threshold=%.1f%%, timeout skip=%t, timeout=%s).",
		e.system.settings.ThresholdPercentage, e.system.settings.TimeoutEnabled, e.system.settings.Timeout)
	e.ticker.Start(ctx)
}

// Stop halts the heartbeat and forgets every sleeper. Safe to call twice.
func (e *Engine) Stop() {
	e.ticker.Stop()
	// The loop has exited, so nothing else touches the system any more.
	e.system.Reset()
	e.logger.Info("Sleep engine stopped.")
}

func (e *Engine) tick(now time.Time) {
	start := time.Now()
	e.system.Tick(now)
	e.metrics.RecordTick(time.Since(start))
}

// OnBeginSleep queues an accepted bed entry.
func (e *Engine) OnBeginSleep(ev BedEnter) {
	e.submit("bed enter", func() { e.system.OnBeginSleep(ev) })
}

// OnLeaveSleep queues a bed leave.
func (e *Engine) OnLeaveSleep(id sleeper.ParticipantID) {
	e.submit("bed leave", func() { e.system.OnLeaveSleep(id) })
}

// OnDisconnect queues a player quit.
func (e *Engine) OnDisconnect(id sleeper.ParticipantID) {
	e.submit("disconnect", func() { e.system.OnDisconnect(id) })
}

// ApplySettings swaps the tunables between two ticks.
func (e *Engine) ApplySettings(settings Settings) error {
	if err := e.ticker.Do(func() { e.system.ApplySettings(settings) }); err != nil {
		return err
	}
	e.logger.Infof("Settings queued: threshold=%.1f%%, timeout skip=%t, timeout=%s, latch=%t.",
		settings.ThresholdPercentage, settings.TimeoutEnabled, settings.Timeout, settings.ResolveLatch)
	return nil
}

// Status returns the tally of one world.
func (e *Engine) Status(ctx context.Context, world sleeper.WorldID) (Status, error) {
	return query(ctx, e.ticker, func() Status { return e.system.Status(world) })
}

// Statuses returns the tally of every sleepable world.
func (e *Engine) Statuses(ctx context.Context) ([]Status, error) {
	return query(ctx, e.ticker, func() []Status {
		worlds := e.system.host.SleepWorlds()
		out := make([]Status, 0, len(worlds))
		for _, w := range worlds {
			out = append(out, e.system.Status(w))
		}
		return out
	})
}

func (e *Engine) submit(what string, fn func()) {
	if err := e.ticker.Do(fn); err != nil {
		e.logger.Warnf("Dropped %s: %v", what, err)
	}
}

// query runs fn on the loop goroutine and waits for its result.
func query[T any](ctx context.Context, t *Ticker, fn func() T) (T, error) {
	var zero T
	reply := make(chan T, 1)
	if err := t.Do(func() { reply <- fn() }); err != nil {
		return zero, err
	}

	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-t.Done():
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrStopped
		}
	}
}
