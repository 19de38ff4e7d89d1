package logger

import (
	"io"
	"log/slog"
	"time"
)

// consoleTimeFormat is the timestamp layout used for console output
const consoleTimeFormat = "2006-01-02 15:04:05.000"

// newTextHandler creates a human-readable slog handler for console output.
// Timestamps are rendered in tz and the custom trace level is labelled TRACE.
func newTextHandler(w io.Writer, level slog.Level, tz *time.Location) slog.Handler {
	if tz == nil {
		tz = time.Local
	}
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.In(tz).Format(consoleTimeFormat))
				}
			case slog.LevelKey:
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl <= traceLevelValue {
					return slog.String(slog.LevelKey, "TRACE")
				}
			}
			return a
		},
	})
}
