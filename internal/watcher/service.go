package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dwizi/hass-bridge/internal/heartbeat"
)

const (
	componentName   = "watcher"
	defaultDebounce = 250 * time.Millisecond
)

// Service watches one file and calls onChange after it settles. The parent
// directory is watched rather than the file itself so atomic rename-into-place
// writes are seen.
type Service struct {
	path     string
	logger   *slog.Logger
	onChange func(context.Context, string)
	debounce time.Duration
	watcher  *fsnotify.Watcher
	reporter heartbeat.Reporter
}

func New(path string, logger *slog.Logger, onChange func(context.Context, string)) (*Service, error) {
	absolute, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve watch path: %w", err)
	}
	fileWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		path:     filepath.Clean(absolute),
		logger:   logger,
		onChange: onChange,
		debounce: defaultDebounce,
		watcher:  fileWatcher,
	}, nil
}

func (s *Service) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	s.reporter = reporter
}

// SetDebounce overrides the quiet period before onChange fires.
func (s *Service) SetDebounce(debounce time.Duration) {
	if debounce > 0 {
		s.debounce = debounce
	}
}

func (s *Service) Start(ctx context.Context) error {
	defer s.watcher.Close()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create watch dir %s: %w", dir, err)
	}
	if err := s.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch path %s: %w", dir, err)
	}
	if s.reporter != nil {
		s.reporter.Beat(componentName, "watching "+s.path)
	}
	s.logger.Info("directory watcher started", "path", s.path)

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			if s.reporter != nil {
				s.reporter.Stopped(componentName, "stopped")
			}
			s.logger.Info("directory watcher stopped")
			return nil
		case event, ok := <-s.watcher.Events:
			if !ok {
				return nil
			}
			if !s.relevant(event) {
				continue
			}
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(s.debounce, func() {
				if ctx.Err() != nil {
					return
				}
				s.logger.Info("directory file changed", "path", s.path, "op", event.Op.String())
				if s.reporter != nil {
					s.reporter.Beat(componentName, "reloaded after change")
				}
				s.onChange(ctx, s.path)
			})
			mu.Unlock()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return nil
			}
			if err != nil {
				if s.reporter != nil {
					s.reporter.Degrade(componentName, "file watcher error", err)
				}
				s.logger.Error("file watcher error", "error", err)
			}
		}
	}
}

func (s *Service) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != s.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}
