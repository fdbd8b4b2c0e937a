package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/dwizi/hass-bridge/internal/cli"
)

func main() {
	level := slog.LevelInfo
	if strings.EqualFold(strings.TrimSpace(os.Getenv("HASS_BRIDGE_LOG_LEVEL")), "debug") {
		level = slog.LevelDebug
	}
	// Logs go to stderr so exec and resolve output stays clean on stdout.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	if err := cli.NewRoot(logger).Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
