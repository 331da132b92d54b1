package logging

import (
	"context"
	"log/slog"
)

// REQUEST-SCOPED LOGGERS:
// middleware.Logger derives one logger per request tagged with request_id,
// and auth adds the caller once the token is verified. Anything below the
// router logs through FromContext so its lines carry both.

type ctxKey struct{}

// WithContext stores logger in ctx.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the request-scoped logger, or slog.Default outside a
// request.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// ForRequest derives the logger for one request from base and stores it in
// ctx. An empty requestID leaves base untagged.
func ForRequest(ctx context.Context, base *slog.Logger, requestID string) (context.Context, *slog.Logger) {
	logger := base
	if requestID != "" {
		logger = base.With(slog.String("request_id", requestID))
	}
	return WithContext(ctx, logger), logger
}

// With adds attrs to the logger already in ctx.
func With(ctx context.Context, attrs ...slog.Attr) context.Context {
	if len(attrs) == 0 {
		return ctx
	}
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return WithContext(ctx, FromContext(ctx).With(args...))
}
