package log

import (
	"io"
	"log/slog"
	"strings"
)

// Service identifies the process every log line is attributed to
type Service struct {
	Name    string
	Env     string
	Version string
}

// New returns a JSON logger writing to w at the given level. Each record
// carries the service's name, environment, and version
func New(w io.Writer, svc Service, lvl slog.Level) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	return slog.New(h).With(
		slog.String("service", svc.Name),
		slog.String("env", svc.Env),
		slog.String("version", svc.Version),
	)
}

// ParseLevel maps a level name to a slog.Level. Unknown names are info
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
