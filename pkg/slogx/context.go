package slogx

import (
	"context"
	"log/slog"
	"sync/atomic"
)

type ctxKey struct{}

type scopeKey struct{}

// requestScope lets inner handlers report who the request turned out to be
// so the outer access log line can say so.
type requestScope struct {
	userID atomic.Int64
}

func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

func FromContext(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return l
}

// With returns a context whose logger carries the extra attributes.
func With(ctx context.Context, args ...any) context.Context {
	return WithContext(ctx, FromContext(ctx).With(args...))
}

// WithUser tags the context logger, and the enclosing request's access log
// line, with the authenticated user id.
func WithUser(ctx context.Context, userID int64) context.Context {
	if sc, ok := ctx.Value(scopeKey{}).(*requestScope); ok {
		sc.userID.Store(userID)
	}
	return With(ctx, "user_id", userID)
}
