package main

import (
	"log/slog"

	"github.com/videlboga/scenarium/internal/logging"
)

func newLogger() *slog.Logger {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")

	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return logging.New(lvl)
}
