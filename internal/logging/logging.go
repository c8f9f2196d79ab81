// Package logging provides utilities for structured logging across the system.
//
// Logging is dependency-injected, never global: each component receives an
// optional *slog.Logger in its Config, falls back to a discard logger, and
// scopes it once at construction time with a "component" attribute.
// Output format, level and destination belong to main() only.
//
// Logging is intentionally sparse. Lifecycle boundaries (store creation,
// GC passes, compaction, cache invalidation) are the intended log points;
// query hot paths log nothing.
package logging

import (
	"context"
	"log/slog"
)

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Discard returns a logger that discards all output.
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// Default returns the provided logger if non-nil, otherwise a discard logger.
// The standard pattern for optional logger parameters:
//
//	logger := logging.Default(cfg.Logger).With("component", "chunk-store")
func Default(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return Discard()
}
