// Package logging builds the zap loggers used across glslive.
// Console output is meant for a human watching a live-coding session,
// so the default encoder is the development console encoder; debug mode
// lowers the level and adds caller annotations.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns the root logger. Components derive their own named
// loggers from it (log.Named("engine"), log.Named("osc"), ...).
func New(debug bool) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		cfg.DisableCaller = true
		cfg.DisableStacktrace = true
	}
	log, err := cfg.Build()
	if err != nil {
		// zap's development config only fails on bad option combinations.
		return zap.NewNop()
	}
	return log
}
