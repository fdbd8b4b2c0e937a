// Package catalog keeps the point-in-time snapshot of Home Assistant entities
// used for fuzzy name resolution. A refresh builds a complete new snapshot and
// swaps it in atomically; readers holding the previous snapshot keep a
// consistent view.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dwizi/hass-bridge/internal/bridgeerr"
	"github.com/dwizi/hass-bridge/internal/homeassistant"
	"github.com/dwizi/hass-bridge/internal/names"
)

type Entity struct {
	ID              string
	Label           string
	Category        string
	NormalizedLabel string
	NormalizedID    string
}

// Source is the backend bulk read.
type Source interface {
	FetchStates(ctx context.Context) ([]homeassistant.State, error)
}

// Snapshot is immutable once built.
type Snapshot struct {
	entities    []Entity
	exact       map[string]string
	refreshedAt time.Time
}

// NewSnapshot builds the entity list and exact-match index from raw states.
// When two entities normalize to the same key the later one wins.
func NewSnapshot(states []homeassistant.State, refreshedAt time.Time) *Snapshot {
	snapshot := &Snapshot{
		entities:    make([]Entity, 0, len(states)),
		exact:       make(map[string]string, len(states)*2),
		refreshedAt: refreshedAt,
	}
	for _, state := range states {
		entityID := strings.TrimSpace(state.EntityID)
		if entityID == "" {
			continue
		}
		label := strings.TrimSpace(state.Attributes.FriendlyName)
		if label == "" {
			label = entityID
		}
		entity := Entity{
			ID:              entityID,
			Label:           label,
			Category:        Category(entityID),
			NormalizedLabel: names.Normalize(label),
			NormalizedID:    names.Normalize(entityID),
		}
		snapshot.entities = append(snapshot.entities, entity)
		if entity.NormalizedLabel != "" {
			snapshot.exact[entity.NormalizedLabel] = entityID
		}
		if entity.NormalizedID != "" {
			snapshot.exact[entity.NormalizedID] = entityID
		}
	}
	return snapshot
}

// Category returns the part of an entity id before its first '.'.
func Category(entityID string) string {
	category, _, found := strings.Cut(entityID, ".")
	if !found {
		return ""
	}
	return category
}

// Entities returns the entities in fetch order. The slice must not be
// modified.
func (s *Snapshot) Entities() []Entity {
	return s.entities
}

// Lookup consults the exact-match index with an already normalized key.
func (s *Snapshot) Lookup(normalized string) (string, bool) {
	if normalized == "" {
		return "", false
	}
	entityID, ok := s.exact[normalized]
	return entityID, ok
}

func (s *Snapshot) Len() int {
	return len(s.entities)
}

func (s *Snapshot) RefreshedAt() time.Time {
	return s.refreshedAt
}

type Catalog struct {
	source  Source
	logger  *slog.Logger
	current atomic.Pointer[Snapshot]
}

func New(source Source, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	catalog := &Catalog{source: source, logger: logger}
	catalog.current.Store(&Snapshot{exact: map[string]string{}})
	return catalog
}

// Snapshot returns the live snapshot. It is empty until the first successful
// refresh.
func (c *Catalog) Snapshot() *Snapshot {
	return c.current.Load()
}

// Replace installs a prebuilt snapshot.
func (c *Catalog) Replace(snapshot *Snapshot) {
	if snapshot == nil {
		return
	}
	c.current.Store(snapshot)
}

// Refresh fetches every entity and swaps in the new snapshot. On failure the
// previous snapshot stays live and the error wraps bridgeerr.ErrCatalogFetch.
func (c *Catalog) Refresh(ctx context.Context) error {
	if c.source == nil {
		return fmt.Errorf("%w: no source configured", bridgeerr.ErrCatalogFetch)
	}
	states, err := c.source.FetchStates(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", bridgeerr.ErrCatalogFetch, err)
	}
	snapshot := NewSnapshot(states, time.Now().UTC())
	c.current.Store(snapshot)
	c.logger.Info("entity catalog refreshed", "entities", snapshot.Len())
	return nil
}
