package slogx

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

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

// WithSessionID tags the context logger with an interactive auth session id.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return with(ctx, "session_id", sessionID)
}

// WithStage tags the context logger with the auth stage being checked.
func WithStage(ctx context.Context, stage string) context.Context {
	return with(ctx, "stage", stage)
}

// WithUserID tags the context logger with the user being authenticated.
func WithUserID(ctx context.Context, userID string) context.Context {
	return with(ctx, "user_id", userID)
}

// with leaves ctx untouched for empty values so callers can tag
// unconditionally.
func with(ctx context.Context, key, value string) context.Context {
	if value == "" {
		return ctx
	}
	return WithContext(ctx, FromContext(ctx).With(key, value))
}
