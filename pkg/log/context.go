package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// Ctx retrieves the logger from the context, falling back to the global one.
func Ctx(ctx context.Context) zerolog.Logger {
	if ctx == nil {
		return L()
	}
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return L()
}

// Session returns a child of base tagged with the identifiers of one live
// room session.
func Session(base zerolog.Logger, sessionID, roomID, userID string) zerolog.Logger {
	return base.With().
		Str(FieldSessionID, sessionID).
		Str(FieldRoomID, roomID).
		Str(FieldUserID, userID).
		Logger()
}
