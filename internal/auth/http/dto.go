package http

import "github.com/aussiebroadwan/gatehouse/internal/auth/domain"

type CredentialsRequest struct {
	Email    string `json:"email" example:"alice@example.com"`
	Password string `json:"password" example:"correct-horse-battery"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" example:"alice@example.com"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password" example:"new-correct-horse"`
}

type PermissionsResponse struct {
	Permissions []domain.Permission `json:"permissions"`
}

// RevokeTokensRequest kills an access token by jti, every session of a user,
// or both.
type RevokeTokensRequest struct {
	JTI        string `json:"jti,omitempty"`
	TTLSeconds int64  `json:"ttl_seconds,omitempty"` // defaults to the access token lifetime
	UserID     int64  `json:"user_id,omitempty"`
}

type SetRolePermissionsRequest struct {
	PermissionIDs []int64 `json:"permission_ids"`
}

type AssignRoleRequest struct {
	RoleID int64 `json:"role_id"`
}

type CreateNamedRequest struct {
	Name        string `json:"name" example:"editor"`
	Description string `json:"description,omitempty"`
}

type RoleResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type ListRolesResponse struct {
	Roles []RoleResponse `json:"roles"`
}

func toRoleResponses(roles []domain.Role) []RoleResponse {
	out := make([]RoleResponse, len(roles))
	for i, r := range roles {
		out[i] = RoleResponse{ID: r.ID, Name: r.Name, Description: r.Description}
	}
	return out
}

type HealthChecks struct {
	Database  string `json:"database"`
	FastStore string `json:"fast_store"`
}

type HealthResponse struct {
	Status  string        `json:"status" example:"ok"`
	Uptime  string        `json:"uptime" example:"1h2m3s"`
	Version string        `json:"version" example:"dev"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}
