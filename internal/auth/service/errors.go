package service

import "errors"

var (
	ErrAuthFailed            = errors.New("auth_failed")
	ErrInvalidRefresh        = errors.New("invalid_refresh_token")
	ErrInvalidToken          = errors.New("invalid_token")
	ErrInvalidOrExpiredToken = errors.New("invalid_or_expired_token")

	ErrUserNotFound       = errors.New("user_not_found")
	ErrUserExists         = errors.New("user_exists")
	ErrPermissionNotFound = errors.New("permission_not_found")
	ErrPermissionExists   = errors.New("permission_exists")
	ErrRoleNotFound       = errors.New("role_not_found")
	ErrRoleExists         = errors.New("role_exists")

	// ErrTokenTheftDetected is raised by the ledger when a refresh jti is
	// presented after it was rotated away. SessionService reports it to
	// callers as ErrInvalidRefresh.
	ErrTokenTheftDetected = errors.New("token_theft_detected")

	// ErrFamilyInactive means the refresh family is unknown, past its
	// absolute expiry or was revoked while a rotation was in flight.
	ErrFamilyInactive = errors.New("refresh_family_inactive")

	// ErrStoreUnavailable wraps store failures on paths that fail closed.
	ErrStoreUnavailable = errors.New("store_unavailable")
)
