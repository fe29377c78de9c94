package service

import (
	"context"
	"time"

	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
)

// PasswordHasher is satisfied by cryptox.Argon2Hasher.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

// Mailer delivers account emails. Callers treat delivery as fire-and-forget.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, link string) error
	SendWelcomeEmail(ctx context.Context, to, link string) error
}

// TokenCodec signs and verifies one purpose of token. jwtx.HS256 satisfies it.
type TokenCodec interface {
	Sign(c jwtx.Claims) (string, error)
	Verify(token string) (jwtx.Claims, error)
}

const defaultStoreTimeout = 2 * time.Second

// storeCtx bounds a single store round trip.
func storeCtx(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultStoreTimeout
	}
	return context.WithTimeout(ctx, d)
}
