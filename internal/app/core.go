package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dwizi/hass-bridge/internal/catalog"
	"github.com/dwizi/hass-bridge/internal/config"
	"github.com/dwizi/hass-bridge/internal/directory"
	"github.com/dwizi/hass-bridge/internal/dispatcher"
	"github.com/dwizi/hass-bridge/internal/gateway"
	"github.com/dwizi/hass-bridge/internal/heartbeat"
	"github.com/dwizi/hass-bridge/internal/homeassistant"
	"github.com/dwizi/hass-bridge/internal/resolver"
	"github.com/dwizi/hass-bridge/internal/store"
)

// Core is everything needed to answer a chat line: directory, catalog,
// resolver, dispatcher and the command gateway on top. The serve runtime and
// the one-shot CLI commands share it.
type Core struct {
	Store         *store.Store
	Directory     *directory.Store
	HomeAssistant *homeassistant.Client
	Catalog       *catalog.Catalog
	Resolver      *resolver.Resolver
	Dispatcher    *dispatcher.Dispatcher
	Gateway       *gateway.Service

	logger   *slog.Logger
	reporter heartbeat.Reporter
}

func NewCore(cfg config.Config, logger *slog.Logger) (*Core, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DirectoryPath), 0o755); err != nil {
		return nil, fmt.Errorf("create directory file parent: %w", err)
	}

	sqlStore, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := sqlStore.AutoMigrate(context.Background()); err != nil {
		sqlStore.Close()
		return nil, err
	}

	core := &Core{
		Store:     sqlStore,
		Directory: directory.Open(cfg.DirectoryPath, logger.With("component", "directory")),
		HomeAssistant: homeassistant.New(homeassistant.Config{
			BaseURL:        cfg.HABaseURL,
			Token:          cfg.HAToken,
			WebhookID:      cfg.HAWebhookID,
			CatalogTimeout: cfg.CatalogTimeout(),
			CommandTimeout: cfg.CommandTimeout(),
		}),
		logger: logger,
	}
	core.Catalog = catalog.New(core.HomeAssistant, logger.With("component", "catalog"))
	core.Resolver = resolver.New(core.Directory, core.Catalog)
	core.Dispatcher = dispatcher.New(core.Resolver, core.HomeAssistant, sqlStore, logger.With("component", "dispatcher"))
	core.Gateway = gateway.New(
		core.Directory,
		core.Refresher(TriggerReload),
		core.Dispatcher,
		cfg.AllowedUserIDs,
		logger.With("component", "gateway"),
	)

	aliases, groups := core.Directory.Counts()
	logger.Info("directory loaded", "path", cfg.DirectoryPath, "aliases", aliases, "groups", groups)
	return core, nil
}

// SetHeartbeatReporter makes catalog refreshes report under the "catalog"
// component.
func (c *Core) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	c.reporter = reporter
}

// ReloadDirectory re-reads the alias and group file after an external edit.
func (c *Core) ReloadDirectory(ctx context.Context, path string) {
	if err := c.Directory.Reload(); err != nil {
		c.logger.Warn("directory reload failed, keeping previous directory", "path", path, "error", err)
		return
	}
	aliases, groups := c.Directory.Counts()
	c.logger.Info("directory reloaded", "path", path, "aliases", aliases, "groups", groups)
}

func (c *Core) Close() error {
	if c.Store == nil {
		return nil
	}
	return c.Store.Close()
}
