package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/staryears/sleepplus/internal/domain/sleeper"
	"github.com/staryears/sleepplus/internal/engine"
	"github.com/staryears/sleepplus/internal/events"
	"github.com/staryears/sleepplus/internal/infra/storage"
	"github.com/staryears/sleepplus/internal/network"
	"github.com/staryears/sleepplus/internal/platform/config"
	"github.com/staryears/sleepplus/internal/platform/logger"
	"github.com/staryears/sleepplus/internal/platform/metrics"
	"github.com/staryears/sleepplus/internal/world"
)

const shutdownTimeout = 5 * time.Second

// defaultWorlds are created at startup, like a fresh vanilla server.
var defaultWorlds = []struct {
	id  sleeper.WorldID
	dim world.Dimension
}{
	{"world", world.DimensionOverworld},
	{"world_nether", world.DimensionNether},
	{"world_the_end", world.DimensionEnd},
}

func newServeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the game server with the sleep vote",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, *cfgPath, logger.NewLogger())
		},
	}
}

func runServe(ctx context.Context, cfgPath string, appLogger *logger.Logger) error {
	appLogger.Info("Initializing SleepPlus server...")

	loader := config.NewLoader(cfgPath, appLogger)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	m := metrics.Get()

	var (
		persister events.EventPersister
		repo      storage.EventRepository
	)
	if cfg.Server.Database != "" {
		appLogger.Infof("Opening audit ledger %s...", cfg.Server.Database)
		db, err := storage.InitSQLite(cfg.Server.Database)
		if err != nil {
			return fmt.Errorf("open audit ledger: %w", err)
		}
		defer db.Close()
		sqliteRepo := storage.NewSQLiteEventRepository(db)
		repo = sqliteRepo
		persister = storage.NewEventPersister(sqliteRepo)
	} else {
		appLogger.Warn("Audit ledger disabled; history is kept in memory only.")
	}

	eventLog := events.NewEventLog(persister)
	defer eventLog.Close()
	eventLog.SetRetention(cfg.Server.HistoryRetention)
	eventLog.OnPersistError(func(err error) {
		m.RecordEventWriteError()
		appLogger.Errorf("Audit write failed: %v", err)
	})

	server := world.NewServer(appLogger)
	for _, w := range defaultWorlds {
		server.AddWorld(w.id, w.dim, 0)
	}

	eng := engine.NewEngine(server, eventLog, appLogger, m, cfg.Settings(), cfg.Server.TickInterval)
	server.SetSink(eng)

	hub := network.NewHub(server, appLogger, m)
	server.SetBroadcaster(hub)

	go hub.Run(ctx)
	go server.Run(ctx)
	eng.Start(ctx)
	defer eng.Stop()

	loader.Watch(func(c config.Config) {
		if err := eng.ApplySettings(c.Settings()); err != nil {
			appLogger.Warnf("Could not apply reloaded settings: %v", err)
		}
		if c.Server != cfg.Server {
			appLogger.Warn("Changes under server: take effect after a restart.")
		}
	})

	a := &api{
		engine:   eng,
		server:   server,
		eventLog: eventLog,
		repo:     repo,
		hub:      hub,
		metrics:  m,
		logger:   appLogger,
	}
	httpServer := &http.Server{Addr: cfg.Server.Addr, Handler: a.routes()}

	errCh := make(chan error, 1)
	go func() {
		appLogger.Infof("HTTP API & WS Server listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		appLogger.Info("Shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Warnf("HTTP shutdown: %v", err)
	}
	return nil
}
