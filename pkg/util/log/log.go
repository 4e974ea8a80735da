// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package log implements leveled, context-tagged logging on top of zap.
//
// Log messages are formatted with redact so that the arguments which are not
// marked safe can be stripped from logs that leave the machine. Tags attached
// to the context with logtags are prepended to every message, e.g.
//
//	ctx = logtags.AddTag(ctx, "op", "create")
//	log.Infof(ctx, "created %s", name)
//	// I... [op=create] created ‹foo›
package log

import (
	"context"
	"sync/atomic"

	"github.com/cockroachdb/redact"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Severity is the severity level of a log entry.
type Severity int8

const (
	// SeverityInfo is used for informational messages.
	SeverityInfo Severity = iota
	// SeverityWarning is used for situations which may require attention.
	SeverityWarning
	// SeverityError is used for failures.
	SeverityError
	// SeverityFatal terminates the process after logging.
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityFatal:
		return "FATAL"
	}
	return "UNKNOWN"
}

func (s Severity) zapLevel() zapcore.Level {
	switch s {
	case SeverityWarning:
		return zapcore.WarnLevel
	case SeverityError:
		return zapcore.ErrorLevel
	case SeverityFatal:
		return zapcore.FatalLevel
	}
	return zapcore.InfoLevel
}

// Level is a verbosity level. Messages logged through VEventf at a level
// above the configured verbosity are discarded.
type Level int32

var logging struct {
	logger     atomic.Pointer[zap.Logger]
	verbosity  atomic.Int32
	redactable atomic.Bool
}

func init() {
	logging.logger.Store(zap.NewNop())
}

func logger() *zap.Logger {
	return logging.logger.Load()
}

// V returns true if the logging verbosity is set to the specified level or
// higher.
func V(level Level) bool {
	return int32(level) <= logging.verbosity.Load()
}

// ExpensiveLogEnabled is used to test whether effort should be spent
// constructing a log message at the given verbosity. The context is
// accepted so that callers do not need to change if per-context verbosity
// is introduced.
func ExpensiveLogEnabled(_ context.Context, level Level) bool {
	return V(level)
}

// Infof logs to the INFO log.
func Infof(ctx context.Context, format string, args ...interface{}) {
	logDepth(ctx, 1, SeverityInfo, format, args)
}

// Info logs a constant message to the INFO log.
func Info(ctx context.Context, msg string) {
	logDepth(ctx, 1, SeverityInfo, msg, nil)
}

// Warningf logs to the WARNING log.
func Warningf(ctx context.Context, format string, args ...interface{}) {
	logDepth(ctx, 1, SeverityWarning, format, args)
}

// Errorf logs to the ERROR log.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	logDepth(ctx, 1, SeverityError, format, args)
}

// Fatalf logs to the FATAL log and then terminates the process.
func Fatalf(ctx context.Context, format string, args ...interface{}) {
	logDepth(ctx, 1, SeverityFatal, format, args)
}

// VEventf logs to the INFO log if the verbosity is at least level.
func VEventf(ctx context.Context, level Level, format string, args ...interface{}) {
	if V(level) {
		logDepth(ctx, 1, SeverityInfo, format, args)
	}
}

// logDepth expects the installed logger to skip two frames: logDepth itself
// and the exported entry point. Deeper callers pass depth > 1.
func logDepth(
	ctx context.Context, depth int, sev Severity, format string, args []interface{},
) {
	l := logger()
	if depth > 1 {
		l = l.WithOptions(zap.AddCallerSkip(depth - 1))
	}
	ce := l.Check(sev.zapLevel(), "")
	if ce == nil {
		return
	}
	msg := FormatWithContextTags(ctx, format, args...)
	if !logging.redactable.Load() {
		msg = redact.RedactableString(msg.StripMarkers())
	}
	ce.Message = string(msg)
	ce.Write()
}
