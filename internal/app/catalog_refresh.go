package app

import (
	"context"

	"github.com/dwizi/hass-bridge/internal/store"
)

const (
	TriggerStartup  = "startup"
	TriggerReload   = "reload"
	TriggerSchedule = "schedule"
	TriggerCLI      = "cli"

	catalogComponent = "catalog"
)

// CatalogRefresher refreshes the catalog and records the attempt, tagged with
// what triggered it. It satisfies both gateway.Catalog and
// scheduler.Refresher.
type CatalogRefresher struct {
	core    *Core
	trigger string
}

func (c *Core) Refresher(trigger string) *CatalogRefresher {
	return &CatalogRefresher{core: c, trigger: trigger}
}

func (c *Core) RefreshCatalog(ctx context.Context, trigger string) error {
	return c.Refresher(trigger).Refresh(ctx)
}

func (r *CatalogRefresher) Refresh(ctx context.Context) error {
	core := r.core
	err := core.Catalog.Refresh(ctx)
	input := store.RecordCatalogRefreshInput{
		Trigger:  r.trigger,
		Entities: core.Catalog.Snapshot().Len(),
	}
	if err != nil {
		input.Error = err.Error()
		if core.reporter != nil {
			core.reporter.Degrade(catalogComponent, r.trigger+" refresh failed", err)
		}
	} else if core.reporter != nil {
		core.reporter.Beat(catalogComponent, r.trigger+" refresh ok")
	}
	if core.Store != nil {
		if _, recordErr := core.Store.RecordCatalogRefresh(ctx, input); recordErr != nil {
			core.logger.Error("failed to record catalog refresh", "trigger", r.trigger, "error", recordErr)
		}
	}
	return err
}
