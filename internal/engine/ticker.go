package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/staryears/sleepplus/internal/platform/logger"
)

// DefaultTickInterval is how often every world is evaluated.
const DefaultTickInterval = 1 * time.Second

// inboxSize bounds how many host events may queue between two ticks.
const inboxSize = 256

// ErrStopped is returned when work is submitted to a stopped Ticker.
var ErrStopped = errors.New("engine: ticker stopped")

// Ticker is the heartbeat. One goroutine fires onTick every interval and runs
// submitted work in between, so whatever the two touch needs no locking.
// A tick that overruns the interval makes the next ones get dropped; two ticks
// never run at the same time.
type Ticker struct {
	interval time.Duration
	onTick   func(now time.Time)
	logger   *logger.Logger

	inbox    chan func()
	stopChan chan struct{}
	done     chan struct{}

	mu        sync.Mutex
	started   bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewTicker creates a ticker calling onTick every interval once started.
func NewTicker(interval time.Duration, onTick func(now time.Time), log *logger.Logger) *Ticker {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Ticker{
		interval: interval,
		onTick:   onTick,
		logger:   log,
		inbox:    make(chan func(), inboxSize),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the loop. Calling it more than once has no effect.
func (t *Ticker) Start(ctx context.Context) {
	t.startOnce.Do(func() {
		t.mu.Lock()
		t.started = true
		t.mu.Unlock()
		go t.run(ctx)
	})
}

// Stop ends the loop and waits for it to exit. No tick starts after Stop
// returns. It is safe to call Stop more than once, and before Start.
func (t *Ticker) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopChan)
	})

	t.mu.Lock()
	started := t.started
	t.mu.Unlock()
	if started {
		<-t.done
	}
}

// Done is closed once the loop has exited.
func (t *Ticker) Done() <-chan struct{} {
	return t.done
}

// Do queues fn to run on the loop goroutine.
func (t *Ticker) Do(fn func()) error {
	select {
	case <-t.stopChan:
		return ErrStopped
	case <-t.done:
		return ErrStopped
	default:
	}

	select {
	case t.inbox <- fn:
		return nil
	case <-t.stopChan:
		return ErrStopped
	case <-t.done:
		return ErrStopped
	}
}

func (t *Ticker) run(ctx context.Context) {
	defer close(t.done)

	t.logger.Info(fmt.Sprintf("Sleep ticker started (every %s).", t.interval))

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("Sleep ticker stopped by context.")
			return
		case <-t.stopChan:
			t.logger.Info("Sleep ticker stopped manually.")
			return
		case fn := <-t.inbox:
			t.safely("event", fn)
		case now := <-ticker.C:
			if t.stopping(ctx) {
				return
			}
			start := time.Now()
			t.safely("tick", func() { t.onTick(now) })
			if took := time.Since(start); took > t.interval {
				t.logger.Warnf("Tick took %s, longer than the %s interval; ticks will be dropped.", took, t.interval)
			}
		}
	}
}

// stopping reports whether teardown began while a tick was already pending.
func (t *Ticker) stopping(ctx context.Context) bool {
	select {
	case <-t.stopChan:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// safely runs fn and turns a panic into a logged error, so a misbehaving host
// costs one tick and not the server.
func (t *Ticker) safely(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Errorf("Recovered from panic during %s: %v", what, r)
		}
	}()
	fn()
}
