// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// CallIDKey is the context key for the telephony call ID
	CallIDKey contextKey = "call_id"
	// BusinessIDKey is the context key for the tenant business ID
	BusinessIDKey contextKey = "business_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports request_id, call_id, and business_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = newLogger.WithRequestID(requestID)
	}

	if callID, ok := ctx.Value(CallIDKey).(string); ok && callID != "" {
		newLogger = newLogger.WithCallID(callID)
	}

	if businessID, ok := ctx.Value(BusinessIDKey).(string); ok && businessID != "" {
		newLogger = &Logger{
			Logger: newLogger.With(slog.String("business_id", businessID)),
		}
	}

	return newLogger
}

// WithRequestID returns a logger with request ID
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("request_id", requestID)),
	}
}

// WithCallID returns a logger scoped to a single call
func (l *Logger) WithCallID(callID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("call_id", callID)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// HTTPError logs an HTTP error
func (l *Logger) HTTPError(method, path string, status int, err error, clientIP string) {
	l.Error("http_error",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
		slog.String("client_ip", clientIP),
	)
}

// StateTransition logs a conversation state change for a call
func (l *Logger) StateTransition(callID, from, to string) {
	l.Info("state_transition",
		slog.String("call_id", callID),
		slog.String("from_state", from),
		slog.String("to_state", to),
	)
}

// CollaboratorError logs a failure of an external collaborator (geocoder,
// messenger, handoff endpoint). These are recovered locally and never
// surfaced to the caller.
func (l *Logger) CollaboratorError(collaborator string, err error) {
	l.Error("collaborator_error",
		slog.String("collaborator", collaborator),
		slog.String("error", err.Error()),
	)
}
