package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dwizi/hass-bridge/internal/config"
	"github.com/dwizi/hass-bridge/internal/connectors"
	"github.com/dwizi/hass-bridge/internal/connectors/discord"
	"github.com/dwizi/hass-bridge/internal/heartbeat"
	"github.com/dwizi/hass-bridge/internal/httpapi"
	"github.com/dwizi/hass-bridge/internal/scheduler"
	"github.com/dwizi/hass-bridge/internal/watcher"
)

type Runtime struct {
	cfg              config.Config
	logger           *slog.Logger
	core             *Core
	httpServer       *http.Server
	watcher          *watcher.Service
	scheduler        *scheduler.Service
	connectors       []connectors.Connector
	heartbeat        *heartbeat.Registry
	heartbeatMonitor *heartbeat.Monitor
}

type heartbeatAware interface {
	SetHeartbeatReporter(reporter heartbeat.Reporter)
}

// New validates the serve-time configuration and wires every long-running
// service around a fresh Core.
func New(cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	core, err := NewCore(cfg, logger)
	if err != nil {
		return nil, err
	}

	registry := heartbeat.NewRegistry()
	registry.Starting("runtime", "booting")
	registry.Starting("api", "initializing")
	registry.Starting(catalogComponent, "waiting for first refresh")
	core.SetHeartbeatReporter(registry)

	schedulerService, err := scheduler.New(cfg.CatalogRefreshCron, core.Refresher(TriggerSchedule), logger.With("component", "scheduler"))
	if err != nil {
		core.Close()
		return nil, fmt.Errorf("catalog refresh schedule: %w", err)
	}
	schedulerService.SetHeartbeatReporter(registry)

	var watchService *watcher.Service
	if cfg.WatchDirectory {
		watchService, err = watcher.New(cfg.DirectoryPath, logger.With("component", "watcher"), core.ReloadDirectory)
		if err != nil {
			core.Close()
			return nil, err
		}
		watchService.SetHeartbeatReporter(registry)
	} else {
		registry.Disabled("watcher", "directory watching turned off")
	}

	connectorList := []connectors.Connector{
		discord.New(
			cfg.DiscordToken,
			cfg.DiscordAPI,
			cfg.DiscordWSURL,
			cfg.DiscordChannelID,
			core.Gateway,
			logger.With("connector", "discord"),
		),
	}
	for _, connector := range connectorList {
		if aware, ok := connector.(heartbeatAware); ok {
			aware.SetHeartbeatReporter(registry)
		}
	}

	staleAfter := time.Duration(cfg.HeartbeatStaleSec) * time.Second
	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.Dependencies{
			Config:              cfg,
			Store:               core.Store,
			Catalog:             core.Catalog,
			Resolver:            core.Resolver,
			Logger:              logger.With("component", "api"),
			Heartbeat:           registry,
			HeartbeatStaleAfter: staleAfter,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	monitor := heartbeat.NewMonitor(registry, heartbeat.MonitorConfig{
		Interval:   time.Duration(cfg.HeartbeatIntervalSec) * time.Second,
		StaleAfter: staleAfter,
		Logger:     logger.With("component", "heartbeat-monitor"),
	})

	return &Runtime{
		cfg:              cfg,
		logger:           logger,
		core:             core,
		httpServer:       httpServer,
		watcher:          watchService,
		scheduler:        schedulerService,
		connectors:       connectorList,
		heartbeat:        registry,
		heartbeatMonitor: monitor,
	}, nil
}

func (r *Runtime) Core() *Core {
	return r.core
}

func (r *Runtime) Close() error {
	if r.core == nil {
		return nil
	}
	return r.core.Close()
}
