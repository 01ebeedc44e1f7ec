package logging

import (
	corelogger "github.com/platformbuilds/mirador-rollout/pkg/logger"
)

// Logger is the narrow logging surface the engine and services depend on.
// Internal packages import this instead of pkg/logger so the concrete logger
// stays a decision of the cmd/ binaries.
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Debug(msg string, fields ...interface{})
}

// FromCoreLogger adapts the project logger. A nil core yields a no-op logger.
func FromCoreLogger(core corelogger.Logger) Logger {
	if core == nil {
		return Nop()
	}
	return &coreAdapter{core: core}
}

// Nop discards everything; handy in tests and for the CLI's quiet mode.
func Nop() Logger { return nopLogger{} }

// With scopes a logger with fixed key/values when the implementation supports it.
func With(l Logger, fields ...interface{}) Logger {
	if ca, ok := l.(*coreAdapter); ok {
		return &coreAdapter{core: ca.core.With(fields...)}
	}
	return l
}

type coreAdapter struct {
	core corelogger.Logger
}

func (c *coreAdapter) Info(msg string, fields ...interface{})  { c.core.Info(msg, fields...) }
func (c *coreAdapter) Error(msg string, fields ...interface{}) { c.core.Error(msg, fields...) }
func (c *coreAdapter) Warn(msg string, fields ...interface{})  { c.core.Warn(msg, fields...) }
func (c *coreAdapter) Debug(msg string, fields ...interface{}) { c.core.Debug(msg, fields...) }

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Debug(string, ...interface{}) {}
