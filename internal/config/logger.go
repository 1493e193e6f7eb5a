package config

import (
	"io"
	"log/slog"
	"strings"
)

// ParseLevel maps a LOG_LEVEL value to a slog level.  ok is false for
// unknown values, which fall back to info.
func ParseLevel(s string) (level slog.Level, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// SetupLogger builds the JSON logger for the configured level, installs it
// as the slog default and returns it.
func SetupLogger(c Config, w io.Writer) *slog.Logger {
	level, ok := ParseLevel(c.LogLevel)
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	if !ok {
		logger.Warn("invalid log level configured, using default level",
			"configured_level", c.LogLevel, "default_level", "info")
	}
	return logger.With("env", c.Env)
}
