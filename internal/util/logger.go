package util

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName tags every log line, span and metric namespace of the service
const ServiceName = "picker-service"

// logger is a no-op until InitLogger runs, so components built in tests or
// before startup never race to create a fallback
var logger = zap.NewNop()

// InitLogger builds the global logger. Production emits JSON; anything else
// gets the colored console encoder. level overrides the preset's level when
// it parses.
func InitLogger(env, level string) error {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	if level != "" {
		if lvl, err := zapcore.ParseLevel(level); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(lvl)
		}
	}

	built, err := cfg.Build(zap.Fields(zap.String("service", ServiceName), zap.String("env", env)))
	if err != nil {
		return err
	}

	logger = built
	zap.ReplaceGlobals(logger)
	return nil
}

// GetLogger returns the global logger
func GetLogger() *zap.Logger {
	return logger
}

// Component returns the global logger named after a part of the service
func Component(name string) *zap.Logger {
	return GetLogger().Named(name)
}

// SyncLogger flushes buffered entries
func SyncLogger() {
	_ = logger.Sync()
}
