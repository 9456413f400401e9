package gpu

import (
	"log/slog"
	"os"
	"sync/atomic"
)

var logger atomic.Pointer[slog.Logger]

// NewTextLogger creates a human-readable logger on stderr.
func NewTextLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewJSONLogger creates a JSON logger on stderr.
func NewJSONLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// SetLogger replaces the package logger. A nil logger discards all output.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	logger.Store(l)
}

// Logger returns the package logger. Until SetLogger or Init is called it
// logs warnings and errors to stderr.
func Logger() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	l := NewTextLogger(slog.LevelWarn)
	if logger.CompareAndSwap(nil, l) {
		return l
	}
	return logger.Load()
}
