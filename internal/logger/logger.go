// Package logger provides the structured logging used throughout the core:
// a single log/slog JSON handler with a "component" attribute identifying
// which actor emitted the record (engine, history, livefeed, presentation).
package logger

import (
	"log/slog"
	"os"
)

// New builds a component-scoped logger. Every core package takes a
// *slog.Logger at construction time rather than reaching for a package-level
// default, so tests can inject slog.New(slog.DiscardHandler) (or a
// NewTextHandler writing to io.Discard on older toolchains).
func New(component string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(handler).With(slog.String("component", component))
}

// Discard returns a logger that writes nowhere, for use in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
