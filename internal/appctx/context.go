package appctx

import (
	"context"

	"github.com/ibills/backoffice/internal/core/domain"
)

// ContextKey is the shared type for all context keys in this codebase.
type ContextKey string

func (c ContextKey) String() string { return string(c) }

var ContextKeySession = ContextKey("Session")

func GetSession(ctx context.Context) (domain.Session, bool) {
	v, ok := ctx.Value(ContextKeySession).(domain.Session)
	return v, ok
}

func SetSession(ctx context.Context, s domain.Session) context.Context {
	return context.WithValue(ctx, ContextKeySession, s)
}
