package logging

import (
	"github.com/go-logr/zapr"
	"github.com/go-logr/logr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewZapLogger builds the process-wide zap logger. level is one of
// debug/info/warn/error; format is "json" or "console".
func NewZapLogger(level, format string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	}
	var zl zapcore.Level
	if err := zl.Set(level); err != nil {
		zl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(zl)
	return cfg.Build()
}

// NewLogr wraps a zap logger as a logr.Logger for components (the workflow
// runtime adapter) that depend only on the logr interface.
func NewLogr(z *zap.Logger) logr.Logger {
	return zapr.NewLogger(z)
}
