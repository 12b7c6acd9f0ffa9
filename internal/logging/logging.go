// Package logging configures the process-wide slog logger: a console
// handler on stderr plus an optional file sink under ./log/.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"rcn2sql/internal/config"
)

// Setup builds a logger from cfg. When cfg.File is "auto" a timestamped
// file under ./log/ is created; any other non-empty relative name is
// placed there too.
func Setup(cfg config.LogConfig) (*slog.Logger, error) {
	level := parseLevel(cfg.Level)
	handlers := []slog.Handler{newHandler(os.Stderr, cfg.Format, level)}

	if cfg.File != "" {
		path := cfg.File
		if path == "auto" {
			path = time.Now().Format("2006-01-02_15-04-05") + ".log"
		}
		if !filepath.IsAbs(path) {
			logDir := filepath.Join(".", "log")
			if err := os.MkdirAll(logDir, 0o750); err != nil {
				return nil, fmt.Errorf("creating log dir: %w", err)
			}
			path = filepath.Join(logDir, path)
		}
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("creating log file: %w", err)
		}
		// File sink records everything regardless of console level.
		handlers = append(handlers, newHandler(f, cfg.Format, slog.LevelDebug))
	}

	if len(handlers) == 1 {
		return slog.New(handlers[0]), nil
	}
	return slog.New(fanout(handlers)), nil
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func parseLevel(s string) slog.Level {
	switch s {
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

// fanout duplicates records to every handler.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
