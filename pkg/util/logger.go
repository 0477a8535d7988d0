package util

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns the process logger. Development gets text output,
// everything else JSON. level overrides the env default (debug in
// development, info otherwise) when it names a slog level.
func NewLogger(env, level string) *slog.Logger {
	return newLogger(os.Stdout, env, level)
}

func newLogger(w io.Writer, env, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(env, level)}

	var handler slog.Handler = slog.NewJSONHandler(w, opts)
	if env == "development" {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With("app", "site-visitor-dash")
}

func parseLevel(env, level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err == nil {
		return l
	}
	if env == "development" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// NopLogger discards everything. Used by tests and by components built
// without an explicit logger.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
