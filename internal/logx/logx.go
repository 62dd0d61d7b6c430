package logx

import (
	"context"

	"pkt.systems/fileclassifier/schema"
	"pkt.systems/pslog"
)

type contextKey int

const (
	sessionKey contextKey = iota
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithSession annotates the logger with the session key if present.
func WithSession(ctx context.Context, key schema.SessionKey) pslog.Logger {
	log := pslog.Ctx(ctx)
	if key != "" {
		if current, ok := ctx.Value(sessionKey).(schema.SessionKey); ok && current == key {
			return log
		}
		log = log.With("session", string(key))
	}
	return log
}

// WithItem annotates the logger with the item position and id when known.
func WithItem(log pslog.Logger, index int, itemID string) pslog.Logger {
	log = log.With("item", index)
	if itemID != "" {
		log = log.With("item_id", itemID)
	}
	return log
}

// WithSource annotates the logger with the mode and source count of a run.
func WithSource(log pslog.Logger, cfg schema.SessionConfig) pslog.Logger {
	if cfg.Mode != "" {
		log = log.With("mode", string(cfg.Mode))
	}
	if len(cfg.Sources) > 0 {
		log = log.With("sources", len(cfg.Sources))
	}
	return log
}

// ContextWithSession stores the session marker on the context for log de-duplication.
func ContextWithSession(ctx context.Context, key schema.SessionKey) context.Context {
	if ctx == nil || key == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionKey, key)
}

// ContextWithSessionLogger attaches the logger and session marker to the context.
func ContextWithSessionLogger(ctx context.Context, log pslog.Logger, key schema.SessionKey) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithSession(ctx, key)
}
