// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pion/logging"
)

// levelTrace sits below slog.LevelDebug for pion's packet-level output.
const levelTrace = slog.LevelDebug - 4

// pionLoggerFactory routes pion's internal logging into slog. Every
// pion scope becomes a "scope" attribute. pion's Info output is noisy
// connection bookkeeping, so it is demoted to Debug.
type pionLoggerFactory struct {
	logger *slog.Logger
}

// NewPionLoggerFactory returns a pion LoggerFactory writing to logger.
func NewPionLoggerFactory(logger *slog.Logger) logging.LoggerFactory {
	return &pionLoggerFactory{logger: logger}
}

func (f *pionLoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &pionLogger{logger: f.logger.With("scope", "pion/"+scope)}
}

type pionLogger struct {
	logger *slog.Logger
}

func (l *pionLogger) log(level slog.Level, message string) {
	l.logger.Log(context.Background(), level, message)
}

func (l *pionLogger) logf(level slog.Level, format string, args ...any) {
	if !l.logger.Enabled(context.Background(), level) {
		return
	}
	l.logger.Log(context.Background(), level, fmt.Sprintf(format, args...))
}

func (l *pionLogger) Trace(message string) { l.log(levelTrace, message) }
func (l *pionLogger) Tracef(format string, args ...any) { l.logf(levelTrace, format, args...) }
func (l *pionLogger) Debug(message string) { l.log(slog.LevelDebug, message) }
func (l *pionLogger) Debugf(format string, args ...any) { l.logf(slog.LevelDebug, format, args...) }
func (l *pionLogger) Info(message string) { l.log(slog.LevelDebug, message) }
func (l *pionLogger) Infof(format string, args ...any) { l.logf(slog.LevelDebug, format, args...) }
func (l *pionLogger) Warn(message string) { l.log(slog.LevelWarn, message) }
func (l *pionLogger) Warnf(format string, args ...any) { l.logf(slog.LevelWarn, format, args...) }
func (l *pionLogger) Error(message string) { l.log(slog.LevelError, message) }
func (l *pionLogger) Errorf(format string, args ...any) { l.logf(slog.LevelError, format, args...) }
