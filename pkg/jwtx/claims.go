package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose binds a token to the one flow it was minted for. Each purpose is
// signed with its own secret, and the claim is checked on verify as well so
// a token can never be replayed against another flow.
type Purpose string

const (
	PurposeAccess  Purpose = "access"
	PurposeRefresh Purpose = "refresh"
	PurposeReset   Purpose = "reset"
)

// Claims carried by every token this service mints.
type Claims struct {
	jwt.RegisteredClaims

	Purpose Purpose `json:"typ"`

	// FamilyID is set on refresh tokens only.
	FamilyID string `json:"fid,omitempty"`
}

// NewClaims builds claims with a fresh jti.
func NewClaims(subject string, purpose Purpose, ttl time.Duration, issuer string, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Purpose: purpose,
	}
}

// NewJTI returns a random UUID for the "jti" claim.
func NewJTI() string {
	return uuid.NewString()
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

func (c *Claims) ValidatePurpose(expected Purpose) error {
	if c.Purpose != expected {
		return ErrPurpose
	}
	return nil
}

// ValidateRequired makes sure the identifiers the services key off are present.
func (c *Claims) ValidateRequired() error {
	if c.Subject == "" || c.ID == "" || c.ExpiresAt == nil {
		return ErrInvalidClaim
	}
	if c.Purpose == PurposeRefresh && c.FamilyID == "" {
		return ErrInvalidClaim
	}
	return nil
}

// Remaining is how long the token has left at now, never negative.
func (c *Claims) Remaining(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	if d := c.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
