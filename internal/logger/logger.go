// Copyright (C) 2024 The Dagu Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// Package logger provides the structured logger used across the job
// runner. It wraps log/slog so every component logs through the same
// interface, and fixes up the reported source location so it always
// points at the caller rather than this package.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/fatih/color"
)

// Logger is the structured logging surface every component depends on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)

	With(args ...any) Logger
	WithGroup(name string) Logger
}

// Default is a production-mode (non-debug) logger usable before a job-scoped
// logger has been constructed (e.g. very early CLI startup errors).
var Default Logger = NewLogger()

type logger struct {
	slog *slog.Logger
}

// Option configures a Logger built with NewLogger.
type Option func(*options)

type options struct {
	debug  bool
	quiet  bool
	format string
	writer io.Writer
	file   *os.File
}

// WithDebug enables debug-level logging and source-location reporting.
func WithDebug() Option {
	return func(o *options) { o.debug = true }
}

// WithQuiet disables color even when the writer is a terminal.
func WithQuiet() Option {
	return func(o *options) { o.quiet = true }
}

// WithFormat selects "text" (default) or "json" output.
func WithFormat(format string) Option {
	return func(o *options) { o.format = format }
}

// WithWriter directs output to an arbitrary writer (tests use this to
// capture output in a buffer).
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.writer = w }
}

// WithLogFile tees output to an additional open file, on top of
// whatever writer is otherwise configured.
func WithLogFile(f *os.File) Option {
	return func(o *options) { o.file = f }
}

// NewLogger builds a Logger from the given options.
func NewLogger(opts ...Option) Logger {
	o := &options{format: "text", writer: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}

	w := o.writer
	if o.file != nil {
		w = io.MultiWriter(o.writer, o.file)
	}

	level := slog.LevelInfo
	if o.debug {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: o.debug,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey && !o.quiet {
				lvl, _ := a.Value.Any().(slog.Level)
				a.Value = slog.StringValue(colorizeLevel(lvl))
			}
			return a
		},
	}

	var h slog.Handler
	if o.format == "json" {
		h = slog.NewJSONHandler(w, handlerOpts)
	} else {
		h = slog.NewTextHandler(w, handlerOpts)
	}

	return &logger{slog: slog.New(h)}
}

func colorizeLevel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return color.RedString("%s", level.String())
	case level >= slog.LevelWarn:
		return color.YellowString("%s", level.String())
	case level >= slog.LevelInfo:
		return color.GreenString("%s", level.String())
	default:
		return color.CyanString("%s", level.String())
	}
}

// emit builds a record whose PC is the frame runtime.Callers(skip)
// reports (counting runtime.Callers itself as frame 0), so AddSource
// reports the real call site.
func (l *logger) emit(skip int, level slog.Level, msg string, args ...any) {
	ctx := context.Background()
	if !l.slog.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(skip, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)
	_ = l.slog.Handler().Handle(ctx, r)
}

const baseSkip = 3 // runtime.Callers, emit, the Logger method that invoked emit

// emitSkip is used by the context-based package functions, which add one
// extra stack frame (the package function itself) on top of a direct
// Logger method call.
func (l *logger) emitSkip(extra int, level slog.Level, msg string, args ...any) {
	l.emit(baseSkip+extra, level, msg, args...)
}

func (l *logger) Debug(msg string, args ...any) { l.emit(baseSkip, slog.LevelDebug, msg, args...) }
func (l *logger) Info(msg string, args ...any)  { l.emit(baseSkip, slog.LevelInfo, msg, args...) }
func (l *logger) Warn(msg string, args ...any)  { l.emit(baseSkip, slog.LevelWarn, msg, args...) }
func (l *logger) Error(msg string, args ...any) { l.emit(baseSkip, slog.LevelError, msg, args...) }

func (l *logger) Debugf(format string, args ...any) {
	l.emit(baseSkip, slog.LevelDebug, fmt.Sprintf(format, args...))
}
func (l *logger) Infof(format string, args ...any) {
	l.emit(baseSkip, slog.LevelInfo, fmt.Sprintf(format, args...))
}
func (l *logger) Warnf(format string, args ...any) {
	l.emit(baseSkip, slog.LevelWarn, fmt.Sprintf(format, args...))
}
func (l *logger) Errorf(format string, args ...any) {
	l.emit(baseSkip, slog.LevelError, fmt.Sprintf(format, args...))
}

func (l *logger) With(args ...any) Logger {
	return &logger{slog: l.slog.With(args...)}
}

func (l *logger) WithGroup(name string) Logger {
	return &logger{slog: l.slog.WithGroup(name)}
}
