package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dwizi/hass-bridge/internal/heartbeat"
)

func (r *Runtime) Run(ctx context.Context) error {
	r.logger.Info("hass-bridge runtime starting",
		"addr", r.cfg.HTTPAddr,
		"directory_path", r.cfg.DirectoryPath,
		"home_assistant", r.cfg.HABaseURL,
	)
	r.heartbeat.Beat("runtime", "runtime loop started")

	group, groupCtx := errgroup.WithContext(ctx)

	// A failed first refresh is not fatal; names resolve through aliases and
	// groups until a later !reload or scheduled refresh succeeds.
	group.Go(func() error {
		if err := r.core.RefreshCatalog(groupCtx, TriggerStartup); err != nil {
			r.logger.Error("startup catalog refresh failed", "error", err)
		}
		return nil
	})
	if r.watcher != nil {
		group.Go(func() error {
			return r.watcher.Start(groupCtx)
		})
	}
	group.Go(func() error {
		return r.scheduler.Start(groupCtx)
	})
	for _, conn := range r.connectors {
		connector := conn
		group.Go(func() error {
			return connector.Start(groupCtx)
		})
	}
	group.Go(func() error {
		return runMonitored(groupCtx, r.heartbeat, "api", 20*time.Second, func(runCtx context.Context) error {
			err := r.httpServer.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	})
	group.Go(func() error {
		return r.heartbeatMonitor.Start(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		r.heartbeat.Stopped("runtime", "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return r.httpServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// runMonitored runs a component that does not report its own health,
// beating every beatInterval while it runs.
func runMonitored(
	ctx context.Context,
	reporter heartbeat.Reporter,
	component string,
	beatInterval time.Duration,
	run func(context.Context) error,
) error {
	if run == nil {
		return nil
	}
	component = strings.TrimSpace(component)
	if reporter != nil {
		reporter.Beat(component, "running")
	}

	stop := func() {}
	if reporter != nil && beatInterval > 0 {
		beatCtx, cancel := context.WithCancel(ctx)
		stop = cancel
		go func() {
			ticker := time.NewTicker(beatInterval)
			defer ticker.Stop()
			for {
				select {
				case <-beatCtx.Done():
					return
				case <-ticker.C:
					reporter.Beat(component, "running")
				}
			}
		}()
	}

	err := run(ctx)
	stop()
	if reporter == nil {
		return err
	}
	if err != nil && ctx.Err() == nil {
		reporter.Degrade(component, "component failed", err)
		return err
	}
	reporter.Stopped(component, "stopped")
	return err
}
