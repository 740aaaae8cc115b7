package logx

import (
	"context"

	"pkt.systems/consoleshell/schema"
	"pkt.systems/pslog"
)

type contextKey int

const (
	userKey contextKey = iota
	roomKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	if ctx == nil {
		ctx = context.Background()
	}
	return pslog.Ctx(ctx)
}

// WithUser annotates the logger with the user id if present.
func WithUser(ctx context.Context, userID schema.UserID) pslog.Logger {
	log := Ctx(ctx)
	if userID != "" {
		if current, ok := ctx.Value(userKey).(schema.UserID); ok && current == userID {
			return log
		}
		log = log.With("user", userID)
	}
	return log
}

// WithSession annotates the logger with the session's user, room and id.
func WithSession(ctx context.Context, session schema.Session) pslog.Logger {
	log := WithUser(ctx, session.User)
	if session.Room != "" {
		if current, ok := ctx.Value(roomKey).(schema.Room); !ok || current != session.Room {
			log = log.With("room", session.Room)
		}
	}
	if session.ID != "" {
		log = log.With("session", session.ID)
	}
	return log
}

// ContextWithUser stores the user marker on the context for log de-duplication.
func ContextWithUser(ctx context.Context, userID schema.UserID) context.Context {
	if ctx == nil || userID == "" {
		return ctx
	}
	return context.WithValue(ctx, userKey, userID)
}

// ContextWithRoom stores the room marker on the context for log de-duplication.
func ContextWithRoom(ctx context.Context, room schema.Room) context.Context {
	if ctx == nil || room == "" {
		return ctx
	}
	return context.WithValue(ctx, roomKey, room)
}

// ContextWithUserLogger attaches the logger and user marker to the context.
func ContextWithUserLogger(ctx context.Context, log pslog.Logger, userID schema.UserID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithUser(ctx, userID)
}
