// Package log provides the default slog-backed logger provider.
//
// This file wires the Logger interface to Go's log/slog default logger so that
// pipeline components can obtain structured loggers without carrying an
// explicit provider. Tests can swap the provider with SetProvider to capture
// output through TestLoggerProvider.

package log

import (
	"context"
	"log/slog"
	"sync"
)

// slogLogger adapts *slog.Logger to the Logger interface.
type slogLogger struct {
	logger *slog.Logger
}

// Debug implements Logger.Debug.
func (s *slogLogger) Debug(msg string, fields ...any) {
	s.logger.Debug(msg, fields...)
}

// Info implements Logger.Info.
func (s *slogLogger) Info(msg string, fields ...any) {
	s.logger.Info(msg, fields...)
}

// Warn implements Logger.Warn.
func (s *slogLogger) Warn(msg string, fields ...any) {
	s.logger.Warn(msg, fields...)
}

// Error implements Logger.Error.
// If the first field is an error value it is converted to ErrAttr so the
// ErrFmtHandler can extract its stacktrace.
func (s *slogLogger) Error(msg string, fields ...any) {
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			rest := fields[1:]
			args := make([]any, 0, len(rest)+1)
			args = append(args, ErrAttr(err))
			args = append(args, rest...)
			s.logger.Error(msg, args...)
			return
		}
	}
	s.logger.Error(msg, fields...)
}

// With implements Logger.With.
func (s *slogLogger) With(fields ...any) Logger {
	return &slogLogger{logger: s.logger.With(fields...)}
}

// Enabled implements Logger.Enabled.
func (s *slogLogger) Enabled(ctx context.Context, level Level) bool {
	return s.logger.Enabled(ctx, slog.Level(level))
}

// defaultProvider serves slog-backed loggers bound to slog.Default().
type defaultProvider struct {
	mu    sync.RWMutex
	level Level
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *defaultProvider) GetLogger() Logger {
	return &slogLogger{logger: slog.Default()}
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *defaultProvider) GetLoggerWithName(name string) Logger {
	return &slogLogger{logger: slog.Default().With(ComponentKey, name)}
}

// SetLevel implements LoggerProvider.SetLevel.
// The effective level is controlled by the handler installed via SetupLogger;
// the stored value is only reported back through Enabled checks.
func (p *defaultProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = level
}

var (
	providerMu sync.RWMutex
	provider   LoggerProvider = &defaultProvider{}
)

// SetProvider replaces the package-level logger provider.
// Passing nil restores the default slog-backed provider.
func SetProvider(p LoggerProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	if p == nil {
		p = &defaultProvider{}
	}
	provider = p
}

// resetDefaultProvider restores the slog-backed provider after SetupLogger
// replaces the default slog handler.
func resetDefaultProvider() {
	SetProvider(nil)
}

// GetLogger returns the default logger from the current provider.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLogger()
}

// GetLoggerWithName returns a named component logger from the current provider.
//
// Example:
//
//	logger := log.GetLoggerWithName("training.trainer")
//	logger.Info("Iteration finished", log.IterationKey, 200)
func GetLoggerWithName(name string) Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLoggerWithName(name)
}
