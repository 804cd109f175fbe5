// Package diag provides quarry's internal structured logging and its
// user-facing diagnostic rendering. The two are independent: -v/-vv
// control only the zap-backed internal log stream, while Diagnostics
// are always rendered to stderr regardless of verbosity.
package diag

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the internal structured logger. verbosity 0 is info
// level, 1 or more is debug.
func NewLogger(verbosity int) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	switch {
	case verbosity >= 1:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("diag: building logger: %w", err)
	}
	return logger, nil
}

// Sync flushes the logger's sink, swallowing the common "invalid
// argument" error stderr/stdout return when they are a terminal.
func Sync(logger *zap.Logger) {
	if logger == nil {
		return
	}
	_ = logger.Sync()
}

// NewNop returns a logger that discards everything, for use in tests
// and library call sites that have not been given a real logger.
func NewNop() *zap.Logger {
	return zap.NewNop()
}
