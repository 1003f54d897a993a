// internal/logger/logger.go
// Package logger provides the shared zap logger for the application.
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	global *zap.SugaredLogger
	level  = zap.NewAtomicLevelAt(zap.InfoLevel)
)

func init() {
	global = New(level)
}

// New creates a console-format sugared logger writing to stdout.
func New(enab zapcore.LevelEnabler, options ...zap.Option) *zap.SugaredLogger {
	if enab == nil {
		enab = level
	}

	encoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey:     "message",
		LevelKey:       "level",
		TimeKey:        "time",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	})

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), enab)
	return zap.New(core, options...).Sugar()
}

// L returns the global logger.
func L() *zap.SugaredLogger {
	return global
}

// SetLevel sets the minimum level of the global logger.
func SetLevel(l zapcore.Level) {
	level.SetLevel(l)
}

// ParseLevel converts a config string to a zap level. Unknown strings fall
// back to info.
func ParseLevel(s string) (zapcore.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, true
	case "info":
		return zapcore.InfoLevel, true
	case "warn":
		return zapcore.WarnLevel, true
	case "error":
		return zapcore.ErrorLevel, true
	default:
		return zapcore.InfoLevel, false
	}
}
