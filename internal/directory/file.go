package directory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
)

// Config is the persisted directory document:
//
//	{"aliases": {"Pretty Name": "light.id"}, "groups": {"Pretty Name": ["member", ...]}}
type Config struct {
	Aliases map[string]string   `json:"aliases"`
	Groups  map[string][]string `json:"groups"`
}

func Empty() Config {
	return Config{
		Aliases: map[string]string{},
		Groups:  map[string][]string{},
	}
}

func (c Config) clone() Config {
	out := Empty()
	for name, entityID := range c.Aliases {
		out.Aliases[name] = entityID
	}
	for name, members := range c.Groups {
		out.Groups[name] = append([]string(nil), members...)
	}
	return out
}

// Load reads the directory file. The returned Config is always usable: a
// missing file yields an empty config with no error, and an unreadable or
// malformed file yields an empty config plus the error for logging. Sections
// of the wrong shape are defaulted individually. Comments and trailing commas
// are accepted so the file can be edited by hand.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Empty(), nil
		}
		return Empty(), fmt.Errorf("read directory file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Empty(), nil
	}

	var sections map[string]json.RawMessage
	if err := json.Unmarshal(jsonc.ToJSON(data), &sections); err != nil {
		return Empty(), fmt.Errorf("decode directory file: %w", err)
	}
	cfg := Empty()
	if raw, ok := sections["aliases"]; ok {
		var aliases map[string]any
		if err := json.Unmarshal(raw, &aliases); err == nil {
			for name, value := range aliases {
				if entityID, ok := value.(string); ok {
					cfg.Aliases[name] = entityID
				}
			}
		}
	}
	if raw, ok := sections["groups"]; ok {
		var groups map[string]any
		if err := json.Unmarshal(raw, &groups); err == nil {
			for name, value := range groups {
				cfg.Groups[name] = stringMembers(value)
			}
		}
	}
	return cfg, nil
}

func stringMembers(value any) []string {
	items, ok := value.([]any)
	if !ok {
		return []string{}
	}
	members := make([]string, 0, len(items))
	for _, item := range items {
		if member, ok := item.(string); ok {
			members = append(members, member)
		}
	}
	return members
}

// Save overwrites the directory file with cfg. The write goes through a
// temporary file in the same directory so a crash never leaves a truncated
// document behind.
func Save(path string, cfg Config) error {
	if cfg.Aliases == nil {
		cfg.Aliases = map[string]string{}
	}
	if cfg.Groups == nil {
		cfg.Groups = map[string][]string{}
	}
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encode directory: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory folder: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".directory-*.json")
	if err != nil {
		return fmt.Errorf("create temp directory file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write directory file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close directory file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace directory file: %w", err)
	}
	return nil
}
