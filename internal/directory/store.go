package directory

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/dwizi/hass-bridge/internal/names"
)

type Alias struct {
	Name     string
	EntityID string
}

type Group struct {
	Name    string
	Members []string
}

// Store owns the directory file and the normalized lookups derived from it.
// Mutations hold the write lock across modify, save and rebuild so two admin
// commands can never interleave their read-modify-write of the file.
type Store struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	cfg     Config
	aliases map[string]Alias
	groups  map[string]Group
}

// Open loads the directory at path. Load problems are logged and the store
// starts empty; Open itself never fails.
func Open(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	store := &Store{path: path, logger: logger}
	cfg, err := Load(path)
	if err != nil {
		logger.Warn("directory load failed, starting empty", "path", path, "error", err)
	}
	store.apply(cfg)
	return store
}

func (s *Store) Path() string {
	return s.path
}

// Reload re-reads the file from disk, replacing the in-memory state. The read
// happens under the write lock so it cannot interleave with a mutation's save.
// A file that cannot be read or decoded leaves the current state live.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := Load(s.path)
	if err != nil {
		return err
	}
	s.apply(cfg)
	return nil
}

func (s *Store) UpsertAlias(name, entityID string) (Alias, error) {
	name = strings.TrimSpace(name)
	entityID = strings.TrimSpace(entityID)
	if name == "" || entityID == "" {
		return Alias{}, fmt.Errorf("alias name and entity id are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg.clone()
	if norm := names.Normalize(name); norm != "" {
		for existing := range next.Aliases {
			if names.Normalize(existing) == norm {
				delete(next.Aliases, existing)
			}
		}
	}
	next.Aliases[name] = entityID
	return Alias{Name: name, EntityID: entityID}, s.commit(next)
}

// DeleteAlias removes the alias whose normalized name matches. It reports
// false, and leaves the file untouched, when nothing matched.
func (s *Store) DeleteAlias(name string) (bool, error) {
	norm := names.Normalize(name)
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg.clone()
	deleted := false
	for existing := range next.Aliases {
		if names.Normalize(existing) == norm {
			delete(next.Aliases, existing)
			deleted = true
		}
	}
	if !deleted {
		return false, nil
	}
	return true, s.commit(next)
}

// Aliases lists aliases ordered by name.
func (s *Store) Aliases() []Alias {
	s.mu.RLock()
	defer s.mu.RUnlock()
	aliases := make([]Alias, 0, len(s.cfg.Aliases))
	for name, entityID := range s.cfg.Aliases {
		aliases = append(aliases, Alias{Name: name, EntityID: entityID})
	}
	sort.Slice(aliases, func(i, j int) bool {
		return lessName(aliases[i].Name, aliases[j].Name)
	})
	return aliases
}

func (s *Store) LookupAlias(name string) (Alias, bool) {
	norm := names.Normalize(name)
	if norm == "" {
		return Alias{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	alias, ok := s.aliases[norm]
	return alias, ok
}

// SetGroup replaces the members of a group, reusing the stored spelling of
// the name when one already normalizes the same way.
func (s *Store) SetGroup(name string, members []string) (Group, error) {
	return s.writeGroup(name, members, false)
}

// AppendGroup extends a group's member list, creating the group if needed.
func (s *Store) AppendGroup(name string, members []string) (Group, error) {
	return s.writeGroup(name, members, true)
}

func (s *Store) writeGroup(name string, members []string, appendMembers bool) (Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Group{}, fmt.Errorf("group name is required")
	}
	if len(members) == 0 {
		return Group{}, fmt.Errorf("group members are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg.clone()
	key := name
	if existing, ok := findKey(next.Groups, name); ok {
		key = existing
	}
	updated := append([]string(nil), members...)
	if appendMembers {
		updated = append(append([]string(nil), next.Groups[key]...), members...)
	}
	next.Groups[key] = updated
	return Group{Name: key, Members: append([]string(nil), updated...)}, s.commit(next)
}

func (s *Store) DeleteGroup(name string) (bool, error) {
	norm := names.Normalize(name)
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg.clone()
	deleted := false
	for existing := range next.Groups {
		if names.Normalize(existing) == norm {
			delete(next.Groups, existing)
			deleted = true
		}
	}
	if !deleted {
		return false, nil
	}
	return true, s.commit(next)
}

// LookupGroup finds a group by normalized name.
func (s *Store) LookupGroup(name string) (Group, bool) {
	norm := names.Normalize(name)
	if norm == "" {
		return Group{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	group, ok := s.groups[norm]
	if !ok {
		return Group{}, false
	}
	return Group{Name: group.Name, Members: append([]string(nil), group.Members...)}, true
}

// Groups lists groups ordered by name.
func (s *Store) Groups() []Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	groups := make([]Group, 0, len(s.cfg.Groups))
	for name, members := range s.cfg.Groups {
		groups = append(groups, Group{Name: name, Members: append([]string(nil), members...)})
	}
	sort.Slice(groups, func(i, j int) bool {
		return lessName(groups[i].Name, groups[j].Name)
	})
	return groups
}

func (s *Store) Counts() (aliases, groups int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.aliases), len(s.groups)
}

// commit persists next and makes it the live state. The in-memory state is
// replaced even when the save fails; the next successful save catches the
// file up. Callers must hold the write lock.
func (s *Store) commit(next Config) error {
	s.apply(next)
	if err := Save(s.path, next); err != nil {
		s.logger.Error("directory save failed", "path", s.path, "error", err)
		return err
	}
	return nil
}

// apply swaps in cfg and rebuilds the normalized lookups. Names are visited
// in sorted order so collisions in a hand-edited file resolve the same way on
// every load.
func (s *Store) apply(cfg Config) {
	s.cfg = cfg
	s.aliases = make(map[string]Alias, len(cfg.Aliases))
	s.groups = make(map[string]Group, len(cfg.Groups))
	for _, name := range sortedKeys(cfg.Aliases) {
		if norm := names.Normalize(name); norm != "" {
			s.aliases[norm] = Alias{Name: name, EntityID: cfg.Aliases[name]}
		}
	}
	for _, name := range sortedKeys(cfg.Groups) {
		if norm := names.Normalize(name); norm != "" {
			s.groups[norm] = Group{Name: name, Members: cfg.Groups[name]}
		}
	}
}

func findKey[V any](entries map[string]V, name string) (string, bool) {
	norm := names.Normalize(name)
	if norm == "" {
		return "", false
	}
	for _, existing := range sortedKeys(entries) {
		if names.Normalize(existing) == norm {
			return existing, true
		}
	}
	return "", false
}

func sortedKeys[V any](entries map[string]V) []string {
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func lessName(left, right string) bool {
	leftKey, rightKey := strings.ToLower(left), strings.ToLower(right)
	if leftKey == rightKey {
		return left < right
	}
	return leftKey < rightKey
}
