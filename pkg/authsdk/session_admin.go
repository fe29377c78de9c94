package authsdk

import (
	"context"
	"fmt"
	"net/http"
)

// RevokeTokens deny-lists an access token, ends every session of a user, or
// both. Requires revoke:tokens.
func (s *Session) RevokeTokens(ctx context.Context, req RevokeTokensRequest) error {
	resp, err := s.doAuthJSON(ctx, http.MethodPost, "/v1/admin/tokens/revoke", req)
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}

// ListRoles requires read:roles.
func (s *Session) ListRoles(ctx context.Context) (*ListRolesResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/admin/roles", nil, nil)
	if err != nil {
		return nil, err
	}

	var out ListRolesResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateRole requires update:roles.
func (s *Session) CreateRole(ctx context.Context, name, description string) (*Role, error) {
	resp, err := s.doAuthJSON(ctx, http.MethodPost, "/v1/admin/roles", createNamedRequest{Name: name, Description: description})
	if err != nil {
		return nil, err
	}

	var role Role
	if err := decodeJSON(resp, &role, http.StatusCreated); err != nil {
		return nil, err
	}
	return &role, nil
}

// SetRolePermissions replaces a role's permission set. Requires update:roles.
func (s *Session) SetRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if permissionIDs == nil {
		permissionIDs = []int64{}
	}
	path := fmt.Sprintf("/v1/admin/roles/%d/permissions", roleID)
	resp, err := s.doAuthJSON(ctx, http.MethodPut, path, setRolePermissionsRequest{PermissionIDs: permissionIDs})
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}

// ListPermissions requires read:roles.
func (s *Session) ListPermissions(ctx context.Context) ([]Permission, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/admin/permissions", nil, nil)
	if err != nil {
		return nil, err
	}

	var out PermissionsResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Permissions, nil
}

// CreatePermission requires update:roles.
func (s *Session) CreatePermission(ctx context.Context, name, description string) (*Permission, error) {
	resp, err := s.doAuthJSON(ctx, http.MethodPost, "/v1/admin/permissions", createNamedRequest{Name: name, Description: description})
	if err != nil {
		return nil, err
	}

	var perm Permission
	if err := decodeJSON(resp, &perm, http.StatusCreated); err != nil {
		return nil, err
	}
	return &perm, nil
}

// DeletePermission requires update:roles.
func (s *Session) DeletePermission(ctx context.Context, id int64) error {
	resp, err := s.doAuthRequest(ctx, http.MethodDelete, fmt.Sprintf("/v1/admin/permissions/%d", id), nil, nil)
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}

// ListUserRoles requires read:roles.
func (s *Session) ListUserRoles(ctx context.Context, userID int64) (*ListRolesResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/admin/users/%d/roles", userID), nil, nil)
	if err != nil {
		return nil, err
	}

	var out ListRolesResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// AssignRole requires assign:roles.
func (s *Session) AssignRole(ctx context.Context, userID, roleID int64) error {
	resp, err := s.doAuthJSON(ctx, http.MethodPost, fmt.Sprintf("/v1/admin/users/%d/roles", userID), assignRoleRequest{RoleID: roleID})
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}

// RemoveRole requires assign:roles.
func (s *Session) RemoveRole(ctx context.Context, userID, roleID int64) error {
	resp, err := s.doAuthRequest(ctx, http.MethodDelete, fmt.Sprintf("/v1/admin/users/%d/roles/%d", userID, roleID), nil, nil)
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}

// DeleteUser revokes every session of the user and deletes the account.
// Requires delete:users.
func (s *Session) DeleteUser(ctx context.Context, userID int64) error {
	resp, err := s.doAuthRequest(ctx, http.MethodDelete, fmt.Sprintf("/v1/admin/users/%d", userID), nil, nil)
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}
