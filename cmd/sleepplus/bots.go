package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/staryears/sleepplus/internal/network"
)

// botConfig drives a crowd of fake players against a running server.
type botConfig struct {
	URL      string
	Bots     int
	World    string
	Interval time.Duration
	Duration time.Duration
}

// botStats tracks what the crowd did.
type botStats struct {
	Sent     atomic.Int64
	Received atomic.Int64
	Rejected atomic.Int64
	Errors   atomic.Int64
}

// botActions are picked at random once a bot has joined.
var botActions = []string{"bed_enter", "bed_enter", "bed_leave", "ignore_sleep"}

func newBotsCmd() *cobra.Command {
	cfg := botConfig{}

	cmd := &cobra.Command{
		Use:   "bots",
		Short: "Connect fake players that keep getting in and out of bed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.Bots <= 0 {
				return fmt.Errorf("--count must be positive")
			}
			if cfg.Interval <= 0 {
				return fmt.Errorf("--interval must be positive")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Duration)
			defer cancel()

			stats := runBots(ctx, cfg)
			return renderBotStats(cmd.OutOrStdout(), cfg, stats)
		},
	}
	cmd.Flags().StringVar(&cfg.URL, "url", "ws://localhost:8080/ws", "WebSocket URL of the server")
	cmd.Flags().IntVar(&cfg.Bots, "count", 10, "number of bots")
	cmd.Flags().StringVar(&cfg.World, "world", "world", "world the bots join")
	cmd.Flags().DurationVar(&cfg.Interval, "interval", 500*time.Millisecond, "time between two actions of one bot")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 30*time.Second, "how long the bots stay online")
	return cmd
}

func runBots(ctx context.Context, cfg botConfig) *botStats {
	stats := &botStats{}
	var wg sync.WaitGroup
	for i := 0; i < cfg.Bots; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			runBot(ctx, n, cfg, stats)
		}(i)
	}
	wg.Wait()
	return stats
}

func runBot(ctx context.Context, n int, cfg botConfig, stats *botStats) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		stats.Errors.Add(1)
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			stats.Received.Add(1)
			var reply network.Reply
			if json.Unmarshal(data, &reply) == nil && reply.Type == "result" && !reply.OK {
				stats.Rejected.Add(1)
			}
		}
	}()

	send := func(a network.PlayerAction) bool {
		if err := conn.WriteJSON(a); err != nil {
			stats.Errors.Add(1)
			return false
		}
		stats.Sent.Add(1)
		return true
	}

	name := "Bot" + strconv.Itoa(n+1)
	if !send(network.PlayerAction{Type: "join", Name: name, World: cfg.World}) {
		return
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
				time.Now().Add(time.Second))
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		case <-ticker.C:
			a := network.PlayerAction{Type: botActions[rand.IntN(len(botActions))]}
			if a.Type == "ignore_sleep" {
				a.Value = rand.IntN(2) == 0
			}
			if !send(a) {
				return
			}
		}
	}
}

func renderBotStats(w io.Writer, cfg botConfig, stats *botStats) error {
	data := pterm.TableData{
		{"Bots", "Sent", "Received", "Rejected", "Errors"},
		{
			strconv.Itoa(cfg.Bots),
			strconv.FormatInt(stats.Sent.Load(), 10),
			strconv.FormatInt(stats.Received.Load(), 10),
			strconv.FormatInt(stats.Rejected.Load(), 10),
			strconv.FormatInt(stats.Errors.Load(), 10),
		},
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("render bot stats: %w", err)
	}
	_, err = fmt.Fprintln(w, table)
	return err
}
