// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns the project-standard slog logger.
// - env=dev: text handler with source locations
// - env=prod: JSON handler without source locations
// The level comes from configuration (debug/info/warn/error), default info.
func NewLogger(env, level string) *slog.Logger {
	parsed := parseLevel(level)

	if strings.EqualFold(strings.TrimSpace(env), "prod") {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     parsed,
			AddSource: false,
		}))
	}

	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:     parsed,
		AddSource: true,
	}))
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info", "":
		return slog.LevelInfo
	default:
		return slog.LevelInfo
	}
}
