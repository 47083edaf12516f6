package log

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey struct{}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext extracts a logger from the request context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: ComponentApp,
	}
}

// Middleware stores a request-scoped logger in the context. The logger
// carries the request id (read with requestID) plus method and path.
func Middleware(base *Logger, requestID func(context.Context) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fields := NewFields().WithRequestID(requestID(r.Context()))
			fields[FieldMethod] = r.Method
			fields[FieldPath] = r.URL.Path

			logger := base.WithComponent(ComponentHTTP).With(fields.ToSlice()...)
			next.ServeHTTP(w, r.WithContext(WithLogger(r.Context(), logger)))
		})
	}
}

// LogError logs err at warn level for client errors and error level otherwise.
func LogError(ctx context.Context, msg string, err error, operation string) {
	fields := NewFields().WithError(err).WithOperation(operation)
	logger := FromContext(ctx)
	if ErrorType(err) == ErrorTypeInternal {
		logger.ErrorContext(ctx, msg, fields.ToSlice()...)
		return
	}
	logger.WarnContext(ctx, msg, fields.ToSlice()...)
}
