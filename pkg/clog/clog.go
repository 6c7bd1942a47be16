package clog

import (
	"io"
	"log/slog"
)

// New builds the process logger: text output for local development, JSON
// otherwise, always wrapped so context-carried attributes reach every record.
func New(w io.Writer, env string, level slog.Level) *slog.Logger {
	var handler slog.Handler
	if env == "local" {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	return slog.New(NewAttributesHandler(handler))
}
