package domain

import "time"

// TokenPair is what login and refresh hand back to the caller.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"` // always "Bearer"
	ExpiresIn    int64  `json:"expires_in"`           // access token lifetime in seconds
}

// LoginResult is the successful outcome of a password login.
type LoginResult struct {
	User PublicUser `json:"user"`
	TokenPair
}

// RefreshFamily is the lineage of refresh tokens descending from one login.
// Created at login and never mutated afterwards; only retention cleanup
// deletes it.
type RefreshFamily struct {
	FamilyID       string
	UserID         int64
	CreatedAt      time.Time
	AbsoluteExpiry time.Time
}

// Expired reports whether the family has passed its absolute lifetime.
func (f RefreshFamily) Expired(now time.Time) bool {
	return !now.Before(f.AbsoluteExpiry)
}

// RefreshTokenRecord is the durable audit row for one issued refresh jti.
// Rows are never physically deleted while their family exists.
type RefreshTokenRecord struct {
	JTI       string
	FamilyID  string
	IssuedAt  time.Time
	RevokedAt *time.Time
}

// Revoked reports whether the record has been revoked.
func (r RefreshTokenRecord) Revoked() bool { return r.RevokedAt != nil }

// IssuedRefresh is what the ledger returns after issuing or rotating a jti.
type IssuedRefresh struct {
	JTI            string
	FamilyID       string
	UserID         int64
	AbsoluteExpiry time.Time
}
