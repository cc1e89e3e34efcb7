// Package logx wires the bridge's components to a shared zap logger.
//
// Every component takes a *zap.Logger explicitly (constructor injection)
// rather than reaching for a package-level global, per the no-hidden-state
// design note. New only provides the one shared default construction path
// so main.go and tests build loggers the same way.
package logx

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a console-encoded zap logger. verbose enables debug level;
// otherwise the logger is set to info level.
func New(verbose bool) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger, nil
}

// Nop returns a logger that discards everything, for tests and library
// callers that don't want to configure logging.
func Nop() *zap.Logger {
	return zap.NewNop()
}
