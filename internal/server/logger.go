package server

import (
	"io"
	"log/slog"

	"github.com/lmittmann/tint"
)

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newLogger builds a tint text logger or a JSON logger writing to w.
func newLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = tint.NewHandler(w, &tint.Options{Level: opts.Level})
	}
	return slog.New(handler)
}
