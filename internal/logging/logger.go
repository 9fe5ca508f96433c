package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"bbw200-gateway/internal/config"
)

// New returns the process logger. Development builds get colored text with
// source locations; release builds emit one JSON object per line.
func New(cfg config.Config, version string, appName string) *slog.Logger {
	return newLogger(os.Stdout, cfg, version, appName)
}

func newLogger(w io.Writer, cfg config.Config, version string, appName string) *slog.Logger {
	var h slog.Handler
	attrs := []any{"app", appName}

	switch version {
	case "dev":
		h = tint.NewHandler(w, &tint.Options{
			Level:      cfg.LogLevel,
			AddSource:  true,
			TimeFormat: time.TimeOnly,
		})
	default:
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.LogLevel})
		attrs = append(attrs, "version", version, "env", cfg.AppEnv)
	}
	return slog.New(h).With(attrs...)
}
