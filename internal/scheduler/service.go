package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dwizi/hass-bridge/internal/heartbeat"
)

const componentName = "scheduler"

var scheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Refresher is the job the scheduler runs.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Service refreshes the entity catalog on a cron schedule. An empty
// expression disables it.
type Service struct {
	expr      string
	schedule  cron.Schedule
	refresher Refresher
	logger    *slog.Logger
	reporter  heartbeat.Reporter
}

func New(expr string, refresher Refresher, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	service := &Service{
		expr:      normalizeCronExpr(expr),
		refresher: refresher,
		logger:    logger,
	}
	if service.expr == "" {
		return service, nil
	}
	schedule, err := ParseSchedule(service.expr)
	if err != nil {
		return nil, err
	}
	service.schedule = schedule
	return service, nil
}

// ParseSchedule accepts five-field cron expressions and descriptors such as
// @hourly or @every 10m.
func ParseSchedule(expr string) (cron.Schedule, error) {
	expr = normalizeCronExpr(expr)
	if expr == "" {
		return nil, fmt.Errorf("cron expression is empty")
	}
	schedule, err := scheduleParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression: %w", err)
	}
	return schedule, nil
}

// NextRun reports when expr next fires after from.
func NextRun(expr string, from time.Time) (time.Time, error) {
	schedule, err := ParseSchedule(expr)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(from.UTC()), nil
}

func (s *Service) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	s.reporter = reporter
}

func (s *Service) Enabled() bool {
	return s.schedule != nil && s.refresher != nil
}

func (s *Service) Start(ctx context.Context) error {
	if !s.Enabled() {
		if s.reporter != nil {
			s.reporter.Disabled(componentName, "no refresh schedule")
		}
		<-ctx.Done()
		return nil
	}
	if s.reporter != nil {
		s.reporter.Starting(componentName, "started")
	}
	s.logger.Info("scheduler started", "schedule", s.expr)

	for {
		next := s.schedule.Next(time.Now().UTC())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			if s.reporter != nil {
				s.reporter.Stopped(componentName, "stopped")
			}
			s.logger.Info("scheduler stopped")
			return nil
		case <-timer.C:
		}

		if err := s.refresher.Refresh(ctx); err != nil {
			if s.reporter != nil {
				s.reporter.Degrade(componentName, "scheduled catalog refresh failed", err)
			}
			s.logger.Error("scheduled catalog refresh failed", "error", err)
			continue
		}
		if s.reporter != nil {
			s.reporter.Beat(componentName, "catalog refreshed")
		}
	}
}

func normalizeCronExpr(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return strings.Join(strings.Fields(trimmed), " ")
}
