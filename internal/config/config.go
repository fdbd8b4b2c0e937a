package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dwizi/hass-bridge/internal/bridgeerr"
)

type Config struct {
	Environment   string
	HTTPAddr      string
	DataDir       string
	DirectoryPath string
	DBPath        string

	DiscordToken     string
	DiscordAPI       string
	DiscordWSURL     string
	DiscordChannelID string
	AllowedUserIDs   []string

	HABaseURL            string
	HAToken              string
	HAWebhookID          string
	HACatalogTimeoutSec  int
	HACommandTimeoutSec  int
	CatalogRefreshCron   string
	WatchDirectory       bool
	HeartbeatStaleSec    int
	HeartbeatIntervalSec int
}

func FromEnv() Config {
	dataDir := stringOrDefault("HASS_BRIDGE_DATA_DIR", "/data")
	return Config{
		Environment:   stringOrDefault("HASS_BRIDGE_ENV", "development"),
		HTTPAddr:      stringOrDefault("HASS_BRIDGE_HTTP_ADDR", ":8080"),
		DataDir:       dataDir,
		DirectoryPath: stringOrDefault("HASS_BRIDGE_DIRECTORY_PATH", filepath.Join(dataDir, "config.json")),
		DBPath:        stringOrDefault("HASS_BRIDGE_DB_PATH", filepath.Join(dataDir, "hass-bridge.sqlite")),

		DiscordToken:     strings.TrimSpace(os.Getenv("HASS_BRIDGE_DISCORD_TOKEN")),
		DiscordAPI:       stringOrDefault("HASS_BRIDGE_DISCORD_API_BASE", "https://discord.com/api/v10"),
		DiscordWSURL:     stringOrDefault("HASS_BRIDGE_DISCORD_GATEWAY_URL", "wss://gateway.discord.gg/?v=10&encoding=json"),
		DiscordChannelID: strings.TrimSpace(os.Getenv("HASS_BRIDGE_DISCORD_CHANNEL_ID")),
		AllowedUserIDs:   csvList(os.Getenv("HASS_BRIDGE_ALLOWED_USER_IDS")),

		HABaseURL:            strings.TrimRight(stringOrDefault("HASS_BRIDGE_HA_BASE_URL", "http://homeassistant.local:8123"), "/"),
		HAToken:              strings.TrimSpace(os.Getenv("HASS_BRIDGE_HA_TOKEN")),
		HAWebhookID:          stringOrDefault("HASS_BRIDGE_HA_WEBHOOK_ID", "discord_command_bot"),
		HACatalogTimeoutSec:  intOrDefault("HASS_BRIDGE_HA_CATALOG_TIMEOUT_SECONDS", 12),
		HACommandTimeoutSec:  intOrDefault("HASS_BRIDGE_HA_COMMAND_TIMEOUT_SECONDS", 10),
		CatalogRefreshCron:   strings.TrimSpace(os.Getenv("HASS_BRIDGE_CATALOG_REFRESH_SCHEDULE")),
		WatchDirectory:       boolOrDefault("HASS_BRIDGE_WATCH_DIRECTORY", true),
		HeartbeatStaleSec:    intOrDefault("HASS_BRIDGE_HEARTBEAT_STALE_SECONDS", 120),
		HeartbeatIntervalSec: intOrDefault("HASS_BRIDGE_HEARTBEAT_INTERVAL_SECONDS", 30),
	}
}

// Validate checks the settings the serve command cannot run without.
func (c Config) Validate() error {
	missing := make([]string, 0, 3)
	if c.DiscordToken == "" {
		missing = append(missing, "HASS_BRIDGE_DISCORD_TOKEN")
	}
	if c.DiscordChannelID == "" {
		missing = append(missing, "HASS_BRIDGE_DISCORD_CHANNEL_ID")
	}
	if c.HAToken == "" {
		missing = append(missing, "HASS_BRIDGE_HA_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", bridgeerr.ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}

func (c Config) CatalogTimeout() time.Duration {
	return time.Duration(c.HACatalogTimeoutSec) * time.Second
}

func (c Config) CommandTimeout() time.Duration {
	return time.Duration(c.HACommandTimeoutSec) * time.Second
}

func stringOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func intOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}

func boolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func csvList(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	seen := map[string]struct{}{}
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		values = append(values, value)
	}
	return values
}
