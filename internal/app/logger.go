package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
)

// NewLogger returns a slog.Logger writing to stdout at the configured level.
// When sink is non-nil, records at error level and above are also written to
// it as text.
func NewLogger(cfg *Config, sink io.Writer) *slog.Logger {
	return newLogger(cfg, os.Stdout, sink)
}

func newLogger(cfg *Config, stdout, sink io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil {
		if parsed, err := parseLevel(cfg.LogLevel); err == nil {
			level = parsed
		}
	}
	opts := &slog.HandlerOptions{AddSource: true, Level: level}
	var console slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		console = slog.NewJSONHandler(stdout, opts)
	} else {
		console = slog.NewTextHandler(stdout, opts)
	}
	if sink == nil {
		return slog.New(console)
	}
	file := slog.NewTextHandler(sink, &slog.HandlerOptions{AddSource: true, Level: slog.LevelError})
	return slog.New(fanoutHandler{console, file})
}

// fanoutHandler passes each record to every handler that accepts its level.
type fanoutHandler []slog.Handler

func (f fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
