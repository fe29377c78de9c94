package httpx

import (
	"context"

	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
)

type ctxKey string

const ctxKeyPrincipal ctxKey = "principal"

// Principal is the authenticated caller attached by AuthnMiddleware.
type Principal struct {
	UserID int64
	Claims jwtx.Claims
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal).(Principal)
	return p, ok
}
