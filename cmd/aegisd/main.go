package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/aegis/internal/api"
	"github.com/cuemby/aegis/internal/bridge"
	"github.com/cuemby/aegis/internal/config"
	"github.com/cuemby/aegis/internal/events"
	"github.com/cuemby/aegis/internal/log"
	"github.com/cuemby/aegis/internal/mission"
	"github.com/cuemby/aegis/internal/notify"
	"github.com/cuemby/aegis/internal/slot"
	"github.com/cuemby/aegis/internal/swarm"
	"github.com/cuemby/aegis/internal/types"
	"github.com/cuemby/aegis/internal/workspace"
)

func main() {
	configPath := flag.String("config", "", "Path to aegis.yaml configuration file")
	addr := flag.String("addr", "", "Override the control-plane listen address (e.g. :8080)")
	eventStorePath := flag.String("event-store", "", "Optional SQLite path for event replay; empty disables persistence")
	natsBridge := flag.Bool("nats-bridge", false, "Run an embedded NATS server and republish every event onto it")
	natsPort := flag.Int("nats-port", 4222, "Port for the embedded NATS server, when -nats-bridge is set")
	desktopNotify := flag.Bool("notify", false, "Show a desktop toast on mission completion/failure/cancellation (Windows-only, no-op elsewhere)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.API.ListenAddr = *addr
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.Log.Level),
		JSONOutput: cfg.Log.JSONOutput,
	})
	logger := log.WithComponent("aegisd")

	ws := workspace.New(
		cfg.Workspace.RootPath,
		cfg.Workspace.TempPath,
		cfg.Workspace.MaxFileBytes,
		time.Duration(cfg.Workspace.TTLMs)*time.Millisecond,
		time.Duration(cfg.Workspace.SweepIntervalMs)*time.Millisecond,
	)
	if err := ws.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start workspace store")
	}
	defer ws.Stop()

	var store events.Store
	if *eventStorePath != "" {
		sqliteStore, err := events.NewSQLiteStore(*eventStorePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open event store")
		}
		defer sqliteStore.Close()
		store = sqliteStore
	}
	bus := events.NewBus(store)

	newStrategy := simulatedStrategyFactory()
	if cfg.Container.Enabled {
		newStrategy = containerStrategyFactory(cfg.Container)
	}

	sw := swarm.New(
		cfg.Swarm.MaxWorkers,
		time.Duration(cfg.Swarm.TaskTimeoutMs)*time.Millisecond,
		time.Duration(cfg.Swarm.HealthCheckIntervalMs)*time.Millisecond,
		bus,
		newStrategy,
	)
	sw.Start()
	defer sw.Stop()

	registry := mission.NewRegistry(sw, ws, bus)
	registry.Start()
	defer registry.Stop()

	var natsServer *bridge.EmbeddedServer
	var evtBridge *bridge.Bridge
	if *natsBridge {
		natsServer, err = bridge.NewEmbeddedServer(bridge.ServerConfig{Port: *natsPort})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure embedded nats server")
		}
		if err := natsServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("failed to start embedded nats server")
		}
		defer natsServer.Shutdown()

		evtBridge, err = bridge.New(natsServer.URL(), bus)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect event bridge to nats")
		}
		evtBridge.Start()
		defer evtBridge.Stop()
		logger.Info().Str("url", natsServer.URL()).Msg("nats bridge active")
	}

	var notifier *notify.Notifier
	if *desktopNotify {
		dashboardURL := "http://localhost" + cfg.API.ListenAddr
		notifier = notify.New("Aegis", dashboardURL, bus)
		notifier.Start()
		defer notifier.Stop()
	}

	server := api.NewServer(registry, sw, bus, cfg.API.MaxRequestBodyBytes)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(cfg.API.ListenAddr)
	}()
	logger.Info().Str("addr", cfg.API.ListenAddr).Int("workers", cfg.Swarm.MaxWorkers).Msg("aegis orchestrator started")

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error().Err(err).Msg("control plane exited unexpectedly")
		}
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("control plane shutdown error")
	}
}

// simulatedStrategyFactory drives every task through the fixed simulated
// phase timeline (spec §4.2), for development and test environments without
// a container runtime.
func simulatedStrategyFactory() func(*types.Task) slot.ExecutionStrategy {
	return func(task *types.Task) slot.ExecutionStrategy {
		return slot.NewSimulatedStrategy(task.ID, 30*time.Second)
	}
}

// containerStrategyFactory runs each task inside docker/podman, bind
// mounting the mission's workspace (spec §4.2 containerised mode).
func containerStrategyFactory(cfg config.ContainerConfig) func(*types.Task) slot.ExecutionStrategy {
	return func(task *types.Task) slot.ExecutionStrategy {
		return &slot.ContainerStrategy{
			Image:      cfg.Image,
			Network:    cfg.Network,
			SocketPath: cfg.SocketPath,
			Name:       "aegis-" + task.ID + "-" + uuid.NewString()[:8],
		}
	}
}
