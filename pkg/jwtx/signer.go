package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest HMAC secret accepted.
const MinSecretLength = 32

var ErrWeakSecret = fmt.Errorf("jwtx: secret shorter than %d bytes", MinSecretLength)

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Sign(Claims) (string, error)
}

// HS256 signs and verifies tokens of a single purpose with one shared secret.
type HS256 struct {
	purpose Purpose
	secret  []byte
	issuer  string
	leeway  time.Duration

	// now is used for exp/nbf checks. Defaults to time.Now.
	now func() time.Time
}

var (
	_ Signer   = (*HS256)(nil)
	_ Verifier = (*HS256)(nil)
)

// NewHS256 creates a signer/verifier for tokens of the given purpose.
func NewHS256(purpose Purpose, secret []byte, issuer string) (*HS256, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	return &HS256{
		purpose: purpose,
		secret:  secret,
		issuer:  issuer,
		now:     time.Now,
	}, nil
}

// WithClock replaces the time source used during verification.
func (h *HS256) WithClock(now func() time.Time) *HS256 {
	h.now = now
	return h
}

// WithLeeway allows some clock skew on exp/nbf.
func (h *HS256) WithLeeway(d time.Duration) *HS256 {
	h.leeway = d
	return h
}

func (h *HS256) Purpose() Purpose { return h.purpose }

func (h *HS256) Sign(c Claims) (string, error) {
	if c.Purpose == "" {
		c.Purpose = h.purpose
	}
	if err := c.ValidatePurpose(h.purpose); err != nil {
		return "", err
	}
	if err := c.ValidateRequired(); err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(h.secret)
}

// Verify validates the signature, expiry, issuer and purpose of a token.
func (h *HS256) Verify(tokenStr string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(h.now),
		jwt.WithLeeway(h.leeway),
		jwt.WithExpirationRequired(),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (any, error) {
		return h.secret, nil
	})
	if err != nil {
		return Claims{}, mapParseError(err)
	}

	if err := claims.ValidateIssuer(h.issuer); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidatePurpose(h.purpose); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateRequired(); err != nil {
		return Claims{}, err
	}

	return claims, nil
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrNotYetValid
	default:
		return fmt.Errorf("%w: %v", ErrInvalidClaim, err)
	}
}
