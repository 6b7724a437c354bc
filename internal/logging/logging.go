// Package logging builds the process logger from configuration.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/iconidentify/vidembed/internal/config"
)

// New returns a logger writing to stdout and, when cfg.File is set, to a
// rotated log file. The returned closer releases the file.
func New(cfg config.LogConfig) (*slog.Logger, io.Closer) {
	var out io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotator)
		closer = rotator
	}

	return NewWithWriter(out, cfg), closer
}

// NewWithWriter returns a logger writing to w.
func NewWithWriter(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h)
}

// ParseLevel maps a level name to a slog level. Unknown names are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
