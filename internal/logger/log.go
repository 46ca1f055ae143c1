package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/tgienger/reportbot/internal/config"

	"gopkg.in/lumberjack.v2"
)

// Init installs the process logger and returns it. Output goes to stdout
// and, when a file is configured, to a size-rotated log file.
func Init(cfg config.LogConfig) *slog.Logger {
	l := New(cfg, os.Stdout)
	slog.SetDefault(l)
	l.Info("logger initialized", "level", cfg.Level, "file", cfg.File)
	return l
}

// New builds a logger without touching the process default
func New(cfg config.LogConfig, console io.Writer) *slog.Logger {
	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, console)
	}
	if cfg.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			LocalTime:  true,
		})
	}
	if len(writers) == 0 {
		writers = append(writers, console)
	}

	w := io.MultiWriter(writers...)
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h)
}

// Discard returns a logger that drops everything, for tests and the TUI
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
