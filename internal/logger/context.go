// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package logger

import (
	"context"
	"fmt"
	"log/slog"
)

type contextKey struct{}

// WithLogger attaches l to ctx so downstream code can log without the
// logger being threaded through every function signature.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the Logger attached to ctx, or Default if none was
// attached.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(contextKey{}).(Logger); ok {
		return l
	}
	return Default
}

func fromContextSkip(ctx context.Context) (*logger, bool) {
	l, ok := FromContext(ctx).(*logger)
	return l, ok
}

// Debug logs at debug level using the Logger attached to ctx.
func Debug(ctx context.Context, msg string, args ...any) {
	if l, ok := fromContextSkip(ctx); ok {
		l.emitSkip(1, slog.LevelDebug, msg, args...)
		return
	}
	FromContext(ctx).Debug(msg, args...)
}

// Info logs at info level using the Logger attached to ctx.
func Info(ctx context.Context, msg string, args ...any) {
	if l, ok := fromContextSkip(ctx); ok {
		l.emitSkip(1, slog.LevelInfo, msg, args...)
		return
	}
	FromContext(ctx).Info(msg, args...)
}

// Warn logs at warn level using the Logger attached to ctx.
func Warn(ctx context.Context, msg string, args ...any) {
	if l, ok := fromContextSkip(ctx); ok {
		l.emitSkip(1, slog.LevelWarn, msg, args...)
		return
	}
	FromContext(ctx).Warn(msg, args...)
}

// Error logs at error level using the Logger attached to ctx.
func Error(ctx context.Context, msg string, args ...any) {
	if l, ok := fromContextSkip(ctx); ok {
		l.emitSkip(1, slog.LevelError, msg, args...)
		return
	}
	FromContext(ctx).Error(msg, args...)
}

// Debugf logs a formatted message at debug level using the Logger
// attached to ctx.
func Debugf(ctx context.Context, format string, args ...any) {
	if l, ok := fromContextSkip(ctx); ok {
		l.emitSkip(1, slog.LevelDebug, fmt.Sprintf(format, args...))
		return
	}
	FromContext(ctx).Debugf(format, args...)
}

// Infof logs a formatted message at info level using the Logger
// attached to ctx.
func Infof(ctx context.Context, format string, args ...any) {
	if l, ok := fromContextSkip(ctx); ok {
		l.emitSkip(1, slog.LevelInfo, fmt.Sprintf(format, args...))
		return
	}
	FromContext(ctx).Infof(format, args...)
}

// Warnf logs a formatted message at warn level using the Logger
// attached to ctx.
func Warnf(ctx context.Context, format string, args ...any) {
	if l, ok := fromContextSkip(ctx); ok {
		l.emitSkip(1, slog.LevelWarn, fmt.Sprintf(format, args...))
		return
	}
	FromContext(ctx).Warnf(format, args...)
}

// Errorf logs a formatted message at error level using the Logger
// attached to ctx.
func Errorf(ctx context.Context, format string, args ...any) {
	if l, ok := fromContextSkip(ctx); ok {
		l.emitSkip(1, slog.LevelError, fmt.Sprintf(format, args...))
		return
	}
	FromContext(ctx).Errorf(format, args...)
}
