package heartbeat

import (
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	StateStarting = "starting"
	StateHealthy  = "healthy"
	StateDegraded = "degraded"
	StateDisabled = "disabled"
	StateStopped  = "stopped"
	StateStale    = "stale"

	OverallIdle    = "idle"
	OverallUnknown = "unknown"
)

// Reporter is implemented by Registry and handed to every long-running
// component (connector, watcher, scheduler, HTTP API).
type Reporter interface {
	Starting(component, message string)
	Beat(component, message string)
	Degrade(component, message string, err error)
	Disabled(component, message string)
	Stopped(component, message string)
}

type ComponentStatus struct {
	Name           string `json:"name"`
	State          string `json:"state"`
	BaseState      string `json:"base_state"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
	LastBeatAtUnix int64  `json:"last_beat_at_unix,omitempty"`
	UpdatedAtUnix  int64  `json:"updated_at_unix"`
	Stale          bool   `json:"stale,omitempty"`
}

type Snapshot struct {
	GeneratedAtUnix int64             `json:"generated_at_unix"`
	Overall         string            `json:"overall"`
	Components      []ComponentStatus `json:"components"`
}

type entry struct {
	state     string
	message   string
	lastError string
	beatAt    time.Time
	updatedAt time.Time
}

type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		entries: map[string]entry{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *Registry) Starting(component, message string) {
	r.record(component, StateStarting, message, nil, false)
}

func (r *Registry) Beat(component, message string) {
	r.record(component, StateHealthy, message, nil, true)
}

func (r *Registry) Degrade(component, message string, err error) {
	r.record(component, StateDegraded, message, err, false)
}

func (r *Registry) Disabled(component, message string) {
	r.record(component, StateDisabled, message, nil, false)
}

func (r *Registry) Stopped(component, message string) {
	r.record(component, StateStopped, message, nil, false)
}

func (r *Registry) record(component, state, message string, err error, beat bool) {
	name := strings.ToLower(strings.TrimSpace(component))
	if name == "" {
		return
	}
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.entries[name]
	current.state = state
	current.message = strings.TrimSpace(message)
	current.lastError = ""
	if err != nil {
		current.lastError = strings.TrimSpace(err.Error())
	}
	current.updatedAt = now
	if beat || current.beatAt.IsZero() {
		current.beatAt = now
	}
	r.entries[name] = current
}

// Snapshot lists every component sorted by name. Healthy or starting
// components whose last beat is older than staleAfter are reported stale;
// staleAfter <= 0 disables that check.
func (r *Registry) Snapshot(staleAfter time.Duration) Snapshot {
	now := r.now()
	r.mu.RLock()
	defer r.mu.RUnlock()

	components := make([]ComponentStatus, 0, len(r.entries))
	for name, current := range r.entries {
		status := ComponentStatus{
			Name:           name,
			State:          current.state,
			BaseState:      current.state,
			Message:        current.message,
			Error:          current.lastError,
			LastBeatAtUnix: current.beatAt.Unix(),
			UpdatedAtUnix:  current.updatedAt.Unix(),
		}
		live := current.state == StateHealthy || current.state == StateStarting
		if staleAfter > 0 && live && now.Sub(current.beatAt) > staleAfter {
			status.State = StateStale
			status.Stale = true
		}
		components = append(components, status)
	}
	sort.Slice(components, func(i, j int) bool {
		return components[i].Name < components[j].Name
	})
	return Snapshot{
		GeneratedAtUnix: now.Unix(),
		Overall:         overall(components),
		Components:      components,
	}
}

func IsDegradedState(state string) bool {
	return state == StateDegraded || state == StateStale
}

// overall is degraded if anything is degraded or stale, starting while
// anything is still starting, idle when everything is disabled or stopped.
func overall(components []ComponentStatus) string {
	if len(components) == 0 {
		return OverallUnknown
	}
	starting, active := false, false
	for _, component := range components {
		switch component.State {
		case StateDegraded, StateStale:
			return StateDegraded
		case StateStarting:
			starting = true
			active = true
		case StateDisabled, StateStopped:
		default:
			active = true
		}
	}
	switch {
	case starting:
		return StateStarting
	case active:
		return StateHealthy
	default:
		return OverallIdle
	}
}
