package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/staryears/sleepplus/internal/domain/rules"
	"github.com/staryears/sleepplus/internal/engine"
	"github.com/staryears/sleepplus/internal/events"
	"github.com/staryears/sleepplus/internal/infra/storage"
	"github.com/staryears/sleepplus/internal/network"
	"github.com/staryears/sleepplus/internal/platform/logger"
	"github.com/staryears/sleepplus/internal/platform/metrics"
	"github.com/staryears/sleepplus/internal/world"
)

const defaultHistoryLimit = 50

// WorldStatus is one row of /api/status.
type WorldStatus struct {
	engine.Status
	Time       int64 `json:"time"`
	Night      bool  `json:"night"`
	Thundering bool  `json:"thundering"`
}

// StatusResponse is the body of /api/status.
type StatusResponse struct {
	Worlds []WorldStatus `json:"worlds"`
}

type api struct {
	engine   *engine.Engine
	server   *world.Server
	eventLog *events.EventLog
	// repo is nil when the audit ledger is disabled.
	repo    storage.EventRepository
	hub     *network.Hub
	metrics *metrics.Collector
	logger  *logger.Logger
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Browser test clients run from other origins
	},
}

func (a *api) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", a.serveWs)
	mux.HandleFunc("/api/status", a.handleStatus)
	mux.HandleFunc("/api/history", a.handleHistory)
	mux.HandleFunc("/metrics", a.metrics.Handler())
	mux.HandleFunc("/metrics/prometheus", a.metrics.PrometheusHandler())
	return mux
}

// serveWs handles websocket requests from the peer.
func (a *api) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Error("Failed to upgrade websocket connection")
		return
	}

	client := network.NewClient(a.hub, conn)
	client.Register()

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.WritePump()
	go client.ReadPump()
}

func (a *api) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp, err := a.status(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, resp)
}

func (a *api) status(ctx context.Context) (StatusResponse, error) {
	tallies, err := a.engine.Statuses(ctx)
	if err != nil {
		return StatusResponse{}, err
	}
	snapshot := make(map[string]world.World)
	for _, w := range a.server.Worlds() {
		snapshot[string(w.ID)] = w
	}

	resp := StatusResponse{Worlds: make([]WorldStatus, 0, len(tallies))}
	for _, st := range tallies {
		w := snapshot[string(st.World)]
		resp.Worlds = append(resp.Worlds, WorldStatus{
			Status:     st,
			Time:       w.Time,
			Night:      rules.IsNight(w.Time),
			Thundering: w.Thundering,
		})
	}
	return resp, nil
}

// handleHistory serves the audit trail, from the ledger when there is one.
// Query parameters: world, type, limit.
func (a *api) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	limit := defaultHistoryLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	worldID, eventType := q.Get("world"), q.Get("type")

	if a.repo == nil {
		writeJSON(w, a.memoryHistory(worldID, eventType, limit))
		return
	}

	var (
		out []storage.AuditEvent
		err error
	)
	switch {
	case worldID != "" && eventType != "":
		out, err = a.repo.ByWorldAndType(r.Context(), worldID, eventType, limit)
	case worldID != "":
		out, err = a.repo.ByWorld(r.Context(), worldID, limit)
	case eventType != "":
		out, err = a.repo.ByEventType(r.Context(), eventType, limit)
	default:
		out, err = a.repo.Recent(r.Context(), limit)
	}
	if err != nil {
		a.logger.Errorf("History query failed: %v", err)
		http.Error(w, "History unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, out)
}

// memoryHistory filters the retained events, newest first like the ledger.
func (a *api) memoryHistory(worldID, eventType string, limit int) []events.Event {
	var src []events.Event
	switch {
	case worldID != "" && eventType != "":
		src = a.eventLog.ByWorldAndType(worldID, events.EventType(eventType))
	case worldID != "":
		src = a.eventLog.ByWorld(worldID)
	case eventType != "":
		src = a.eventLog.ByType(events.EventType(eventType))
	default:
		src = a.eventLog.Recent(limit)
	}

	out := make([]events.Event, 0, limit)
	for i := len(src) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, src[i])
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
