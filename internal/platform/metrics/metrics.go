// Package metrics provides observability for the sleep server.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers runtime counters.
type Collector struct {
	// Tick metrics
	TickCount      int64
	TickLatencySum int64 // nanoseconds
	TickLatencyMax int64
	LastTickTime   time.Time

	// Sleep metrics
	BedEnters      int64
	BedLeaves      int64
	Disconnects    int64
	SkipsByQuorum  int64
	SkipsByTimeout int64

	// Event persistence
	EventWriteErrors int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesIn        int64
	WSMessagesOut       int64
	WSErrors            int64

	// System
	StartTime time.Time
	mu        sync.RWMutex
}

// Global collector instance
var collector = New()

// New creates an empty collector. Tests use their own; the server uses Get.
func New() *Collector {
	return &Collector{StartTime: time.Now()}
}

// Get returns the global collector.
func Get() *Collector {
	return collector
}

// RecordTick records a completed evaluation pass.
func (c *Collector) RecordTick(latency time.Duration) {
	atomic.AddInt64(&c.TickCount, 1)
	atomic.AddInt64(&c.TickLatencySum, int64(latency))

	// Update max (non-atomic but acceptable for metrics)
	if int64(latency) > atomic.LoadInt64(&c.TickLatencyMax) {
		atomic.StoreInt64(&c.TickLatencyMax, int64(latency))
	}

	c.mu.Lock()
	c.LastTickTime = time.Now()
	c.mu.Unlock()
}

// RecordBedEnter counts an accepted bed entry.
func (c *Collector) RecordBedEnter() {
	atomic.AddInt64(&c.BedEnters, 1)
}

// RecordBedLeave counts a bed leave.
func (c *Collector) RecordBedLeave() {
	atomic.AddInt64(&c.BedLeaves, 1)
}

// RecordDisconnect counts a player quitting.
func (c *Collector) RecordDisconnect() {
	atomic.AddInt64(&c.Disconnects, 1)
}

// RecordSkip counts a skipped night. reason is "quorum" or "timeout".
func (c *Collector) RecordSkip(reason string) {
	switch reason {
	case "quorum":
		atomic.AddInt64(&c.SkipsByQuorum, 1)
	case "timeout":
		atomic.AddInt64(&c.SkipsByTimeout, 1)
	}
}

// RecordEventWriteError counts a failed audit write.
func (c *Collector) RecordEventWriteError() {
	atomic.AddInt64(&c.EventWriteErrors, 1)
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if incoming {
		atomic.AddInt64(&c.WSMessagesIn, 1)
	} else {
		atomic.AddInt64(&c.WSMessagesOut, 1)
	}
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	atomic.AddInt64(&c.WSErrors, 1)
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tickCount := atomic.LoadInt64(&c.TickCount)

	var tickAvg float64
	if tickCount > 0 {
		tickAvg = float64(atomic.LoadInt64(&c.TickLatencySum)) / float64(tickCount) / 1e6 // ms
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"tick": map[string]interface{}{
			"count":          tickCount,
			"avg_latency_ms": tickAvg,
			"max_latency_ms": float64(atomic.LoadInt64(&c.TickLatencyMax)) / 1e6,
			"last_tick":      c.LastTickTime.Format(time.RFC3339),
		},

		"sleep": map[string]interface{}{
			"bed_enters":       atomic.LoadInt64(&c.BedEnters),
			"bed_leaves":       atomic.LoadInt64(&c.BedLeaves),
			"disconnects":      atomic.LoadInt64(&c.Disconnects),
			"skips_by_quorum":  atomic.LoadInt64(&c.SkipsByQuorum),
			"skips_by_timeout": atomic.LoadInt64(&c.SkipsByTimeout),
		},

		"events": map[string]interface{}{
			"write_errors": atomic.LoadInt64(&c.EventWriteErrors),
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_in":        atomic.LoadInt64(&c.WSMessagesIn),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"errors":             atomic.LoadInt64(&c.WSErrors),
		},
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")

		json.NewEncoder(w).Encode(c.Snapshot())
	}
}

// PrometheusHandler returns metrics in Prometheus text format.
func (c *Collector) PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		fmt.Fprintf(w, "# HELP sleepplus_tick_count Total evaluation passes\n")
		fmt.Fprintf(w, "# TYPE sleepplus_tick_count counter\n")
		fmt.Fprintf(w, "sleepplus_tick_count %d\n\n", atomic.LoadInt64(&c.TickCount))

		fmt.Fprintf(w, "# HELP sleepplus_tick_latency_max_ms Maximum tick latency\n")
		fmt.Fprintf(w, "# TYPE sleepplus_tick_latency_max_ms gauge\n")
		fmt.Fprintf(w, "sleepplus_tick_latency_max_ms %.2f\n\n", float64(atomic.LoadInt64(&c.TickLatencyMax))/1e6)

		fmt.Fprintf(w, "# HELP sleepplus_bed_events_total Bed enters and leaves\n")
		fmt.Fprintf(w, "# TYPE sleepplus_bed_events_total counter\n")
		fmt.Fprintf(w, "sleepplus_bed_events_total{kind=\"enter\"} %d\n", atomic.LoadInt64(&c.BedEnters))
		fmt.Fprintf(w, "sleepplus_bed_events_total{kind=\"leave\"} %d\n", atomic.LoadInt64(&c.BedLeaves))
		fmt.Fprintf(w, "sleepplus_bed_events_total{kind=\"disconnect\"} %d\n\n", atomic.LoadInt64(&c.Disconnects))

		fmt.Fprintf(w, "# HELP sleepplus_nights_skipped_total Nights skipped\n")
		fmt.Fprintf(w, "# TYPE sleepplus_nights_skipped_total counter\n")
		fmt.Fprintf(w, "sleepplus_nights_skipped_total{reason=\"quorum\"} %d\n", atomic.LoadInt64(&c.SkipsByQuorum))
		fmt.Fprintf(w, "sleepplus_nights_skipped_total{reason=\"timeout\"} %d\n\n", atomic.LoadInt64(&c.SkipsByTimeout))

		fmt.Fprintf(w, "# HELP sleepplus_event_write_errors Total audit write errors\n")
		fmt.Fprintf(w, "# TYPE sleepplus_event_write_errors counter\n")
		fmt.Fprintf(w, "sleepplus_event_write_errors %d\n\n", atomic.LoadInt64(&c.EventWriteErrors))

		fmt.Fprintf(w, "# HELP sleepplus_ws_connections Active WebSocket connections\n")
		fmt.Fprintf(w, "# TYPE sleepplus_ws_connections gauge\n")
		fmt.Fprintf(w, "sleepplus_ws_connections %d\n\n", atomic.LoadInt64(&c.WSConnectionsActive))

		fmt.Fprintf(w, "# HELP sleepplus_ws_messages_total Total WebSocket messages\n")
		fmt.Fprintf(w, "# TYPE sleepplus_ws_messages_total counter\n")
		fmt.Fprintf(w, "sleepplus_ws_messages_total{direction=\"in\"} %d\n", atomic.LoadInt64(&c.WSMessagesIn))
		fmt.Fprintf(w, "sleepplus_ws_messages_total{direction=\"out\"} %d\n", atomic.LoadInt64(&c.WSMessagesOut))
	}
}
