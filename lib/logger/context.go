package logger

import (
	"context"
	"log/slog"
)

type contextKey struct{}

// InjectLoggerIntoCtx stores a logger, usually one carrying per-upload attributes, on the context.
func InjectLoggerIntoCtx(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored on the context, falling back to [slog.Default].
func FromContext(ctx context.Context) *slog.Logger {
	if log, isOk := ctx.Value(contextKey{}).(*slog.Logger); isOk && log != nil {
		return log
	}

	return slog.Default()
}
