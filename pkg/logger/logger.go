// Package logger provides structured logging for the token engine. It wraps
// zerolog behind a small surface so services depend on one logger type rather
// than a concrete backend.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Config controls logger construction.
type Config struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string
	// Pretty switches to human-readable console output.
	Pretty bool
	// Component tags every entry with a component name.
	Component string
	// Output overrides the destination. Defaults to stderr.
	Output io.Writer
}

// Logger is a leveled, structured logger.
type Logger struct {
	zl zerolog.Logger
}

// New constructs a logger from the given config.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	level := zerolog.InfoLevel
	switch strings.ToLower(strings.TrimSpace(cfg.Level)) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn", "warning":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zl := zerolog.New(out).Level(level).With().Timestamp()
	if cfg.Component != "" {
		zl = zl.Str("component", cfg.Component)
	}
	return &Logger{zl: zl.Logger()}
}

// NewDefault returns an info-level logger tagged with the component name.
func NewDefault(component string) *Logger {
	return New(Config{Component: component})
}

// WithField returns a logger with an additional field attached.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

// WithError returns a logger with the error attached.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{zl: l.zl.With().Err(err).Logger()}
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string) { l.zl.Debug().Msg(msg) }

// Debugf logs a formatted message at debug level.
func (l *Logger) Debugf(format string, args ...any) { l.zl.Debug().Msgf(format, args...) }

// Info logs at info level.
func (l *Logger) Info(msg string) { l.zl.Info().Msg(msg) }

// Infof logs a formatted message at info level.
func (l *Logger) Infof(format string, args ...any) { l.zl.Info().Msgf(format, args...) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string) { l.zl.Warn().Msg(msg) }

// Warnf logs a formatted message at warn level.
func (l *Logger) Warnf(format string, args ...any) { l.zl.Warn().Msgf(format, args...) }

// Error logs at error level.
func (l *Logger) Error(msg string) { l.zl.Error().Msg(msg) }

// Errorf logs a formatted message at error level.
func (l *Logger) Errorf(format string, args ...any) { l.zl.Error().Msgf(format, args...) }
