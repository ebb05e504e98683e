package internal

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/DukeRupert/mundo/internal/clock"
)

// redactedKeys never reach the log output, wherever they appear in a record.
var redactedKeys = map[string]struct{}{
	"password":       {},
	"password_hash":  {},
	"session_token":  {},
	"token":          {},
	"webhook_secret": {},
	"pix_br_code":    {},
}

// ParseLevel maps LOG_LEVEL to a slog level. Unknown values log at info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// NewLogger builds the process logger: human-readable text in development,
// JSON everywhere else. Timestamps are written in Brasília time so they line
// up with the quota reset boundaries users see.
func NewLogger(w io.Writer, env string, level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       ParseLevel(level),
		ReplaceAttr: replaceAttr,
	}

	var h slog.Handler
	if env == "development" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	return slog.New(h).With("service", "mundo")
}

func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if _, ok := redactedKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, "[REDACTED]")
	}
	if a.Key == slog.TimeKey && len(groups) == 0 && a.Value.Kind() == slog.KindTime {
		return slog.String(slog.TimeKey, clock.ToLocal(a.Value.Time()).Format(time.RFC3339))
	}
	return a
}
