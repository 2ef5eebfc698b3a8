// Package observability provides logging and metrics.
package observability

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger to provide specialized logging methods.
type Logger struct {
	*slog.Logger
}

// GlobalLogger is the default logger instance for the application.
var GlobalLogger *Logger

func init() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	GlobalLogger = &Logger{Logger: slog.New(handler)}
}

// ViewLogger provides structured logging for view reconciler operations.
type ViewLogger struct {
	viewName string
	logger   *Logger
}

// NewViewLogger creates a ViewLogger for the given view.
func NewViewLogger(viewName string) *ViewLogger {
	return &ViewLogger{viewName: viewName, logger: GlobalLogger}
}

// LogApply logs an optimistic mutation being applied locally.
func (l *ViewLogger) LogApply(ctx context.Context, operation, entityID string) {
	l.logger.InfoContext(ctx, "optimistic apply",
		slog.String("view", l.viewName),
		slog.String("operation", operation),
		slog.String("entity_id", entityID),
	)
}

// LogConfirm logs an authoritative write confirming an optimistic mutation.
func (l *ViewLogger) LogConfirm(ctx context.Context, operation, entityID string) {
	l.logger.InfoContext(ctx, "optimistic confirm",
		slog.String("view", l.viewName),
		slog.String("operation", operation),
		slog.String("entity_id", entityID),
	)
}

// LogRollback logs an optimistic mutation being reverted after a remote
// failure.
func (l *ViewLogger) LogRollback(ctx context.Context, operation, entityID string, err error) {
	Rollbacks.WithLabelValues(l.viewName, operation).Inc()
	l.logger.ErrorContext(ctx, "optimistic rollback",
		slog.String("view", l.viewName),
		slog.String("operation", operation),
		slog.String("entity_id", entityID),
		slog.String("error", err.Error()),
	)
}

// LogRebuild logs a full list rebuild triggered by a subscription event.
func (l *ViewLogger) LogRebuild(ctx context.Context, entries int) {
	FeedRebuilds.WithLabelValues(l.viewName).Inc()
	l.logger.DebugContext(ctx, "view rebuild",
		slog.String("view", l.viewName),
		slog.Int("entries", entries),
	)
}

// LogError logs a non-reconciler view error.
func (l *ViewLogger) LogError(ctx context.Context, operation string, err error) {
	l.logger.ErrorContext(ctx, "view error",
		slog.String("view", l.viewName),
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// StoreLogger provides structured logging for document store backends.
type StoreLogger struct {
	backend string
	logger  *Logger
}

// NewStoreLogger creates a StoreLogger for the given backend.
func NewStoreLogger(backend string) *StoreLogger {
	return &StoreLogger{backend: backend, logger: GlobalLogger}
}

// LogError logs a failed store operation and counts it.
func (l *StoreLogger) LogError(ctx context.Context, operation string, err error) {
	StoreErrors.WithLabelValues(operation).Inc()
	l.logger.ErrorContext(ctx, "store error",
		slog.String("backend", l.backend),
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// WSLogger provides structured logging for WebSocket operations.
type WSLogger struct {
	hubName string
	logger  *Logger
}

// NewWSLogger creates a new WSLogger for the given hub.
func NewWSLogger(hubName string) *WSLogger {
	return &WSLogger{hubName: hubName, logger: GlobalLogger}
}

// LogConnect logs a WebSocket connection event.
func (l *WSLogger) LogConnect(ctx context.Context, userID string) {
	l.logger.InfoContext(ctx, "websocket connected",
		slog.String("hub", l.hubName),
		slog.String("user_id", userID),
	)
}

// LogDisconnect logs a WebSocket disconnection event.
func (l *WSLogger) LogDisconnect(ctx context.Context, userID string, reason string) {
	l.logger.InfoContext(ctx, "websocket disconnected",
		slog.String("hub", l.hubName),
		slog.String("user_id", userID),
		slog.String("reason", reason),
	)
}

// LogError logs a WebSocket error event.
func (l *WSLogger) LogError(ctx context.Context, userID string, err error, eventType string) {
	l.logger.ErrorContext(ctx, "websocket error",
		slog.String("hub", l.hubName),
		slog.String("user_id", userID),
		slog.String("event_type", eventType),
		slog.String("error", err.Error()),
	)
}
