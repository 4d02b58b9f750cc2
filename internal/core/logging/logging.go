// Package logging builds the service slog.Logger and carries it through
// context.Context.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Format is the log output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Config selects level, format and destination.
type Config struct {
	Level     string // debug, info, warn, error
	Format    string // text, json
	AddSource bool
	Writer    io.Writer
}

// New creates a logger from cfg.
func New(cfg Config) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if cfg.Writer == nil {
		return nil, fmt.Errorf("log writer is required")
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}
	switch Format(strings.ToLower(cfg.Format)) {
	case FormatText, "":
		return slog.New(slog.NewTextHandler(cfg.Writer, opts)), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(cfg.Writer, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (expected text or json)", cfg.Format)
	}
}

// ParseLevel maps a level name to slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

type key struct{}

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, key{}, logger)
}

// FromContext returns the context logger, or slog.Default when none is set.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(key{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
