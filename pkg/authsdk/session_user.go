package authsdk

import (
	"context"
	"net/http"
	"slices"
)

// Me returns the account behind the session.
func (s *Session) Me(ctx context.Context) (*User, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/me", nil, nil)
	if err != nil {
		return nil, err
	}

	var user User
	if err := decodeJSON(resp, &user, http.StatusOK); err != nil {
		return nil, err
	}
	return &user, nil
}

// Permissions returns the caller's effective permissions. With fresh set the
// service skips its permission cache.
func (s *Session) Permissions(ctx context.Context, fresh bool) ([]Permission, error) {
	path := "/v1/me/permissions"
	if fresh {
		path += "?fresh=true"
	}

	resp, err := s.doAuthRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	var out PermissionsResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Permissions, nil
}

// HasPermission fetches the permission set and looks for name. It is a
// convenience for clients; the service enforces permissions itself.
func (s *Session) HasPermission(ctx context.Context, name string) (bool, error) {
	perms, err := s.Permissions(ctx, false)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(perms, func(p Permission) bool { return p.Name == name }), nil
}
