// Package resolver turns a free-text target phrase into Home Assistant entity
// ids. User-defined groups win over aliases, and both win over fuzzy matching
// against the entity catalog; a group or alias hit never falls through.
//
// Fuzzy matching runs in three passes over the catalog snapshot:
//
//  1. exact lookup of the normalized phrase against labels and ids;
//  2. substring containment of the normalized phrase, narrowed to the
//     controllable categories (light, switch, fan) when any of those match;
//  3. only if pass 2 found nothing, every whitespace token of the phrase must
//     appear in the lower-cased label.
//
// When no single entity is isolated the surviving candidates are returned so
// the caller can suggest close matches.
package resolver

import (
	"strings"
	"time"

	"github.com/dwizi/hass-bridge/internal/catalog"
	"github.com/dwizi/hass-bridge/internal/directory"
	"github.com/dwizi/hass-bridge/internal/names"
)

var emptySnapshot = catalog.NewSnapshot(nil, time.Time{})

var preferredCategories = map[string]struct{}{
	"light":  {},
	"switch": {},
	"fan":    {},
}

// Directory is the read side of the alias and group store.
type Directory interface {
	LookupAlias(name string) (directory.Alias, bool)
	LookupGroup(name string) (directory.Group, bool)
}

// Catalog supplies the current entity snapshot.
type Catalog interface {
	Snapshot() *catalog.Snapshot
}

type Resolution struct {
	EntityIDs  []string
	Candidates []catalog.Entity
	// Source records which layer produced the ids: "group", "alias",
	// "catalog", or "" when nothing matched.
	Source string
}

type Resolver struct {
	directory Directory
	catalog   Catalog
}

func New(directory Directory, catalog Catalog) *Resolver {
	return &Resolver{directory: directory, catalog: catalog}
}

// ResolveTarget resolves one phrase. A resolution pins a single catalog
// snapshot so a concurrent refresh cannot change the answer halfway through.
func (r *Resolver) ResolveTarget(phrase string) Resolution {
	snapshot := r.snapshot()

	if r.directory != nil {
		if group, ok := r.directory.LookupGroup(phrase); ok {
			return Resolution{
				EntityIDs: r.expandGroup(snapshot, group),
				Source:    "group",
			}
		}
		if alias, ok := r.directory.LookupAlias(phrase); ok {
			return Resolution{EntityIDs: []string{alias.EntityID}, Source: "alias"}
		}
	}

	entityID, candidates := matchCatalog(snapshot, phrase)
	if entityID == "" {
		return Resolution{Candidates: candidates}
	}
	return Resolution{EntityIDs: []string{entityID}, Source: "catalog"}
}

// ResolveAgainstCatalog runs only the fuzzy catalog passes.
func (r *Resolver) ResolveAgainstCatalog(name string) (string, []catalog.Entity) {
	return matchCatalog(r.snapshot(), name)
}

func (r *Resolver) snapshot() *catalog.Snapshot {
	if r.catalog == nil {
		return emptySnapshot
	}
	if snapshot := r.catalog.Snapshot(); snapshot != nil {
		return snapshot
	}
	return emptySnapshot
}

// expandGroup maps each member to an entity id: alias name first, then a
// literal entity id when the member contains a '.', then the single best
// catalog match. Duplicates are dropped keeping first occurrence.
func (r *Resolver) expandGroup(snapshot *catalog.Snapshot, group directory.Group) []string {
	expanded := make([]string, 0, len(group.Members))
	seen := make(map[string]struct{}, len(group.Members))
	add := func(entityID string) {
		if entityID == "" {
			return
		}
		if _, dup := seen[entityID]; dup {
			return
		}
		seen[entityID] = struct{}{}
		expanded = append(expanded, entityID)
	}
	for _, member := range group.Members {
		if alias, ok := r.directory.LookupAlias(member); ok {
			add(alias.EntityID)
			continue
		}
		if strings.Contains(member, ".") {
			add(member)
			continue
		}
		entityID, _ := matchCatalog(snapshot, member)
		add(entityID)
	}
	return expanded
}

func matchCatalog(snapshot *catalog.Snapshot, name string) (string, []catalog.Entity) {
	normalized := names.Normalize(name)
	if normalized == "" {
		return "", nil
	}
	if entityID, ok := snapshot.Lookup(normalized); ok {
		return entityID, nil
	}

	var candidates []catalog.Entity
	for _, entity := range snapshot.Entities() {
		if strings.Contains(entity.NormalizedLabel, normalized) || strings.Contains(entity.NormalizedID, normalized) {
			candidates = append(candidates, entity)
		}
	}
	if len(candidates) > 0 {
		var preferred []catalog.Entity
		for _, entity := range candidates {
			if _, ok := preferredCategories[entity.Category]; ok {
				preferred = append(preferred, entity)
			}
		}
		if len(preferred) == 1 {
			return preferred[0].ID, nil
		}
		if len(preferred) > 1 {
			candidates = preferred
		}
		return "", candidates
	}

	tokens := strings.Fields(strings.ToLower(name))
	if len(tokens) == 0 {
		return "", nil
	}
	for _, entity := range snapshot.Entities() {
		label := strings.ToLower(entity.Label)
		if containsAll(label, tokens) {
			candidates = append(candidates, entity)
		}
	}
	if len(candidates) == 1 {
		return candidates[0].ID, nil
	}
	return "", candidates
}

func containsAll(text string, tokens []string) bool {
	for _, token := range tokens {
		if !strings.Contains(text, token) {
			return false
		}
	}
	return true
}
