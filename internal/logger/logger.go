package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// L is the process logger. It is usable before Init (text to stderr) so tests
// and library code never see a nil logger.
var L = slog.New(slog.NewTextHandler(os.Stderr, nil))

type contextKey string

const loggerKey contextKey = "logger"

// Init configures L as a JSON logger at the given level and installs it as
// the slog default.
func Init(levelStr string) {
	InitWriter(os.Stdout, levelStr)
}

func InitWriter(w io.Writer, levelStr string) {
	level, ok := ParseLevel(levelStr)

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format(time.RFC3339))
				}
			}
			return a
		},
	}

	L = slog.New(slog.NewJSONHandler(w, opts))
	slog.SetDefault(L)
	if !ok {
		L.Warn("invalid LOG_LEVEL, defaulting to info", "configured", levelStr)
	}
	L.Debug("logger initialized", "log_level", level.String())
}

func ParseLevel(s string) (slog.Level, bool) {
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

// FromContext returns the request-scoped logger, or L.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
			return l
		}
	}
	return L
}

func ToContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}
