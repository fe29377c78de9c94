package authsdk

// ============================================================================
// Session Types
// ============================================================================

// User is the public view of an account.
type User struct {
	ID            int64  `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

// TokenResponse is the token pair handed out by login and refresh.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`

	// ExpiresIn is the access token lifetime in seconds
	ExpiresIn int64 `json:"expires_in"`
}

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	User User `json:"user"`
	TokenResponse
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// ============================================================================
// Authorization Types
// ============================================================================

// Permission is a named capability, conventionally "action:resource".
type Permission struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// PermissionsResponse lists permissions.
type PermissionsResponse struct {
	Permissions []Permission `json:"permissions"`
}

// Role groups permissions.
type Role struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ListRolesResponse lists roles.
type ListRolesResponse struct {
	Roles []Role `json:"roles"`
}

// RevokeTokensRequest names what an admin wants revoked. Set JTI to
// deny-list one access token, UserID to end every session of a user, or both.
type RevokeTokensRequest struct {
	JTI string `json:"jti,omitempty"`

	// TTLSeconds bounds the deny-list entry; zero uses the access token lifetime
	TTLSeconds int64 `json:"ttl_seconds,omitempty"`

	UserID int64 `json:"user_id,omitempty"`
}

type createNamedRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type setRolePermissionsRequest struct {
	PermissionIDs []int64 `json:"permission_ids"`
}

type assignRoleRequest struct {
	RoleID int64 `json:"role_id"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse is the body of /livez and /readyz.
type HealthResponse struct {
	// Status is "ok" or, from /readyz, "degraded"
	Status  string `json:"status"`
	Uptime  string `json:"uptime,omitempty"`
	Version string `json:"version,omitempty"`

	// Checks is only set by /readyz
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports each backing store.
type HealthChecks struct {
	Database  string `json:"database"`
	FastStore string `json:"fast_store"`
}
