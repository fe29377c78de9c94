package service

import (
	"strconv"
	"time"

	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
)

// SignedToken is a freshly minted bearer token and its identifiers.
type SignedToken struct {
	Token     string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Lifetime is measured on the token's own second-precision claims.
func (t SignedToken) Lifetime() time.Duration {
	return t.ExpiresAt.Sub(t.IssuedAt)
}

// AccessTokenIssuer mints and checks short-lived access tokens. It knows
// nothing about the deny-list; Authenticate layers that on top.
type AccessTokenIssuer struct {
	Codec  TokenCodec
	Issuer string
	TTL    time.Duration
	Clock  Clock
}

func (i *AccessTokenIssuer) Sign(userID int64) (SignedToken, error) {
	now := clockOrSystem(i.Clock).Now()
	claims := jwtx.NewClaims(strconv.FormatInt(userID, 10), jwtx.PurposeAccess, i.TTL, i.Issuer, now)

	token, err := i.Codec.Sign(claims)
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{
		Token:     token,
		JTI:       claims.ID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Verify checks signature and expiry. Every failure is ErrInvalidToken.
func (i *AccessTokenIssuer) Verify(token string) (jwtx.Claims, error) {
	claims, err := i.Codec.Verify(token)
	if err != nil {
		return jwtx.Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// SubjectID parses the numeric user id out of a token subject.
func SubjectID(c jwtx.Claims) (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}
