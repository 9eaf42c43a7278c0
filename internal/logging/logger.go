// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides the structured logger used by every component
// of the risk engine. It is a thin wrapper over log/slog with a
// context.Context attachment point, so a logger built once at request or
// session scope (carrying session_id/task_id/request_id) can be recovered
// anywhere downstream without threading it through every function
// signature.
//
// # Basic Usage
//
//	logger := logging.New(logging.Config{Service: "api", JSON: true})
//	ctx = logging.WithLogger(ctx, logger.With("request_id", reqID))
//	logging.FromContext(ctx).Info("request started")
package logging

import (
	"context"
	"log/slog"
	"os"
)

// Level mirrors slog's severity ordering so callers don't need to import
// log/slog directly just to set a minimum level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) toSlog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config configures a Logger. The zero value logs Debug+ as text to stdout.
type Config struct {
	Level   Level
	Service string
	JSON    bool
}

// Logger wraps *slog.Logger. Safe for concurrent use — slog.Logger already is.
type Logger struct {
	s *slog.Logger
}

// New builds a Logger per Config.
func New(cfg Config) *Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level.toSlog()}
	var h slog.Handler
	if cfg.JSON {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	if cfg.Service != "" {
		h = h.WithAttrs([]slog.Attr{slog.String("service", cfg.Service)})
	}
	return &Logger{s: slog.New(h)}
}

// Default returns an Info-level JSON logger tagged "risk-engine", the
// configuration every cmd/ entrypoint falls back to.
func Default() *Logger {
	return New(Config{Level: LevelInfo, Service: "risk-engine", JSON: true})
}

func (l *Logger) Debug(msg string, args ...any) { l.s.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.s.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.s.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.s.Error(msg, args...) }

// With returns a child logger carrying additional attributes on every line.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{s: l.s.With(args...)}
}

// Slog exposes the underlying *slog.Logger for callers that need LogAttrs
// or other slog-only features.
func (l *Logger) Slog() *slog.Logger { return l.s }

type ctxKey struct{}

// WithLogger attaches l to ctx, recoverable via FromContext.
func WithLogger(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext recovers the logger attached by WithLogger, falling back to
// Default() if none was attached — callers never need a nil check.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return Default()
}
