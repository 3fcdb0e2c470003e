// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package logging wraps charmbracelet/log with the Config/New convention
// used throughout the ingestion pipeline (e.g. logging.New(logging.DefaultConfig())).
package logging

import (
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// Config controls the behavior of a Logger.
type Config struct {
	Level     string // off, error, warn, info, debug, trace
	Component string // prefix attached to every log line
	TimeFmt   string
}

// DefaultConfig returns the logger configuration sourced from the
// LOG_LEVEL environment variable, defaulting to "off" when unset.
func DefaultConfig() Config {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "off"
	}
	return Config{Level: level, TimeFmt: "15:04:05"}
}

// Logger is a structured, leveled logger. trace maps onto charmbracelet/log's
// debug level, since that library only has five levels; output does not
// distinguish trace from debug.
type Logger struct {
	inner *charmlog.Logger
}

// New builds a Logger from Config.
func New(cfg Config) *Logger {
	l := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFmt,
		Prefix:          cfg.Component,
	})
	l.SetLevel(parseLevel(cfg.Level))
	return &Logger{inner: l}
}

func parseLevel(level string) charmlog.Level {
	switch strings.ToLower(level) {
	case "trace", "debug":
		return charmlog.DebugLevel
	case "info":
		return charmlog.InfoLevel
	case "warn", "warning":
		return charmlog.WarnLevel
	case "error":
		return charmlog.ErrorLevel
	case "off":
		return charmlog.FatalLevel + 1
	default:
		return charmlog.InfoLevel
	}
}

// With returns a child Logger that tags every line with the given key/values.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{inner: l.inner.With(kv...)}
}

func (l *Logger) Debug(msg string, kv ...any) { l.inner.Debug(msg, kv...) }
func (l *Logger) Info(msg string, kv ...any)  { l.inner.Info(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...any)  { l.inner.Warn(msg, kv...) }
func (l *Logger) Error(msg string, kv ...any) { l.inner.Error(msg, kv...) }

// Nop returns a Logger with output disabled, for tests that don't care about
// log output but still need a non-nil *Logger to pass to constructors.
func Nop() *Logger {
	return New(Config{Level: "off"})
}
