package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBotsDriveTheServer(t *testing.T) {
	a, server := newTestAPI(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.hub.Run(ctx)

	ts := httptest.NewServer(a.routes())
	defer ts.Close()

	cfg := botConfig{
		URL:      "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
		Bots:     3,
		World:    "world",
		Interval: 150 * time.Millisecond,
		Duration: 600 * time.Millisecond,
	}
	runCtx, stop := context.WithTimeout(ctx, cfg.Duration)
	defer stop()

	stats := runBots(runCtx, cfg)
	assert.Zero(t, stats.Errors.Load())
	assert.GreaterOrEqual(t, stats.Sent.Load(), int64(cfg.Bots))
	assert.Positive(t, stats.Received.Load())

	// Every bot left when its socket closed.
	assert.Eventually(t, func() bool {
		return server.EligibleCount("world") == 0
	}, 2*time.Second, 10*time.Millisecond)

	pterm.DisableColor()
	var out bytes.Buffer
	require.NoError(t, renderBotStats(&out, cfg, stats))
	assert.Contains(t, out.String(), "Rejected")
}

func TestBotsUnreachableServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	stats := runBots(ctx, botConfig{URL: "ws://127.0.0.1:1/ws", Bots: 2, World: "world", Interval: time.Second})
	assert.Equal(t, int64(2), stats.Errors.Load())
	assert.Zero(t, stats.Sent.Load())
}
