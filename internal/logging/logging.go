// Package logging defines the logger used across the certificate manager.
// The concrete implementation wraps zap; library consumers that do not care
// about logging pass Nop.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging surface the certificate packages depend on.
// Trailing args are alternating key-value pairs.
type Logger interface {
	Error(message string, args ...any)
	Warn(message string, args ...any)
	Info(message string, args ...any)
	Debug(message string, args ...any)
}

type logger struct {
	zapLogger *zap.SugaredLogger
}

func (l *logger) Error(message string, args ...any) {
	l.zapLogger.Errorw(message, args...)
}

func (l *logger) Warn(message string, args ...any) {
	l.zapLogger.Warnw(message, args...)
}

func (l *logger) Info(message string, args ...any) {
	l.zapLogger.Infow(message, args...)
}

func (l *logger) Debug(message string, args ...any) {
	l.zapLogger.Debugw(message, args...)
}

// New builds a Logger writing to stderr. In dev mode the output is
// human-readable and includes debug level.
func New(devMode bool) (Logger, error) {
	var cfg zap.Config
	if devMode {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	cfg.OutputPaths = []string{"stderr"}

	zl, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &logger{zapLogger: zl.Sugar()}, nil
}

// Nop discards all log output.
var Nop Logger = &logger{zapLogger: zap.NewNop().Sugar()}
