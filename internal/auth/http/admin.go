package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/service"
	"github.com/aussiebroadwan/gatehouse/pkg/httpx"
	"github.com/aussiebroadwan/gatehouse/pkg/slogx"
)

// AdminHandler serves the permission-guarded management endpoints.
type AdminHandler struct {
	Session *service.SessionService
	Ledger  *service.TokenLedger
	Roles   *service.RolesService
	Users   *service.UserService
}

// HandleRevokeTokens kills an access token, every session of a user, or both.
//
//	@Summary		Revoke tokens
//	@Description	With jti the access token is deny-listed for ttl_seconds (default: the access token lifetime). With user_id every refresh family of the user is revoked.
//	@Tags			Admin
//	@Accept			json
//	@Security		BearerAuth
//	@Param			request	body	RevokeTokensRequest	true	"What to revoke"
//	@Success		204
//	@Failure		400	{object}	httpx.ErrorResponse
//	@Failure		401	{object}	httpx.ErrorResponse
//	@Failure		403	{object}	httpx.ErrorResponse	"Missing revoke:tokens"
//	@Router			/v1/admin/tokens/revoke [post]
func (h *AdminHandler) HandleRevokeTokens(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RevokeTokensRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		invalidRequest(w, err.Error())
		return
	}
	if req.JTI == "" && req.UserID <= 0 {
		invalidRequest(w, "jti or user_id is required")
		return
	}
	if req.TTLSeconds < 0 {
		invalidRequest(w, "ttl_seconds must not be negative")
		return
	}

	if req.JTI != "" {
		ttl := time.Duration(req.TTLSeconds) * time.Second
		if ttl == 0 {
			ttl = h.Session.Access.TTL
		}
		if err := h.Session.RevokeAccess(ctx, req.JTI, ttl); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}

	if req.UserID > 0 {
		if err := h.Ledger.RevokeUser(ctx, req.UserID); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}

	slogx.FromContext(ctx).Info("tokens revoked by admin",
		slog.String("jti", req.JTI),
		slog.Int64("target_user_id", req.UserID),
	)
	w.WriteHeader(http.StatusNoContent)
}

// HandleListRoles lists every role.
//
//	@Summary	List roles
//	@Tags		Admin
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	ListRolesResponse
//	@Failure	403	{object}	httpx.ErrorResponse	"Missing read:roles"
//	@Router		/v1/admin/roles [get]
func (h *AdminHandler) HandleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.Roles.ListRoles(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ListRolesResponse{Roles: toRoleResponses(roles)})
}

// HandleCreateRole creates a role with no permissions.
//
//	@Summary	Create role
//	@Tags		Admin
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		request	body		CreateNamedRequest	true	"Role"
//	@Success	201		{object}	RoleResponse
//	@Failure	409		{object}	httpx.ErrorResponse	"Role exists"
//	@Router		/v1/admin/roles [post]
func (h *AdminHandler) HandleCreateRole(w http.ResponseWriter, r *http.Request) {
	var req CreateNamedRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		invalidRequest(w, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		invalidRequest(w, "name is required")
		return
	}

	role, err := h.Roles.CreateRole(r.Context(), strings.TrimSpace(req.Name), req.Description)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, RoleResponse{ID: role.ID, Name: role.Name, Description: role.Description})
}

// HandleSetRolePermissions replaces the permission set of a role.
//
//	@Summary		Set role permissions
//	@Description	Replaces the role's permissions. Cached permission sets of every holder are dropped.
//	@Tags			Admin
//	@Accept			json
//	@Security		BearerAuth
//	@Param			id		path	int							true	"Role ID"
//	@Param			request	body	SetRolePermissionsRequest	true	"Permission IDs"
//	@Success		204
//	@Failure		404	{object}	httpx.ErrorResponse	"Unknown role or permission"
//	@Router			/v1/admin/roles/{id}/permissions [put]
func (h *AdminHandler) HandleSetRolePermissions(w http.ResponseWriter, r *http.Request) {
	roleID, ok := pathID(r, "id")
	if !ok {
		invalidRequest(w, "invalid role id")
		return
	}

	var req SetRolePermissionsRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		invalidRequest(w, err.Error())
		return
	}

	if err := h.Roles.SetRolePermissions(r.Context(), roleID, req.PermissionIDs); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListPermissions lists every permission.
//
//	@Summary	List permissions
//	@Tags		Admin
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	PermissionsResponse
//	@Router		/v1/admin/permissions [get]
func (h *AdminHandler) HandleListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.Roles.ListPermissions(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, PermissionsResponse{Permissions: perms})
}

// HandleCreatePermission creates a permission.
//
//	@Summary	Create permission
//	@Tags		Admin
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		request	body		CreateNamedRequest	true	"Permission, conventionally action:resource"
//	@Success	201		{object}	domain.Permission
//	@Failure	409		{object}	httpx.ErrorResponse	"Permission exists"
//	@Router		/v1/admin/permissions [post]
func (h *AdminHandler) HandleCreatePermission(w http.ResponseWriter, r *http.Request) {
	var req CreateNamedRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		invalidRequest(w, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		invalidRequest(w, "name is required")
		return
	}

	perm, err := h.Roles.CreatePermission(r.Context(), strings.TrimSpace(req.Name), req.Description)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, perm)
}

// HandleDeletePermission removes a permission from every role.
//
//	@Summary	Delete permission
//	@Tags		Admin
//	@Security	BearerAuth
//	@Param		id	path	int	true	"Permission ID"
//	@Success	204
//	@Failure	404	{object}	httpx.ErrorResponse
//	@Router		/v1/admin/permissions/{id} [delete]
func (h *AdminHandler) HandleDeletePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		invalidRequest(w, "invalid permission id")
		return
	}

	if err := h.Roles.DeletePermission(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListUserRoles lists the roles held by a user.
//
//	@Summary	List user roles
//	@Tags		Admin
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		int	true	"User ID"
//	@Success	200	{object}	ListRolesResponse
//	@Router		/v1/admin/users/{id}/roles [get]
func (h *AdminHandler) HandleListUserRoles(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "id")
	if !ok {
		invalidRequest(w, "invalid user id")
		return
	}

	roles, err := h.Roles.ListUserRoles(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ListRolesResponse{Roles: toRoleResponses(roles)})
}

// HandleAssignRole grants a role to a user.
//
//	@Summary	Assign role
//	@Tags		Admin
//	@Accept		json
//	@Security	BearerAuth
//	@Param		id		path	int					true	"User ID"
//	@Param		request	body	AssignRoleRequest	true	"Role"
//	@Success	204
//	@Failure	404	{object}	httpx.ErrorResponse	"Unknown user or role"
//	@Router		/v1/admin/users/{id}/roles [post]
func (h *AdminHandler) HandleAssignRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "id")
	if !ok {
		invalidRequest(w, "invalid user id")
		return
	}

	var req AssignRoleRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		invalidRequest(w, err.Error())
		return
	}
	if req.RoleID <= 0 {
		invalidRequest(w, "role_id is required")
		return
	}

	if err := h.Roles.AssignRole(r.Context(), userID, req.RoleID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRemoveRole takes a role away from a user.
//
//	@Summary	Remove role
//	@Tags		Admin
//	@Security	BearerAuth
//	@Param		id		path	int	true	"User ID"
//	@Param		roleID	path	int	true	"Role ID"
//	@Success	204
//	@Failure	404	{object}	httpx.ErrorResponse	"User does not hold the role"
//	@Router		/v1/admin/users/{id}/roles/{roleID} [delete]
func (h *AdminHandler) HandleRemoveRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "id")
	if !ok {
		invalidRequest(w, "invalid user id")
		return
	}
	roleID, ok := pathID(r, "roleID")
	if !ok {
		invalidRequest(w, "invalid role id")
		return
	}

	if err := h.Roles.RemoveRole(r.Context(), userID, roleID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteUser deletes an account after revoking its sessions.
//
//	@Summary	Delete user
//	@Tags		Admin
//	@Security	BearerAuth
//	@Param		id	path	int	true	"User ID"
//	@Success	204
//	@Failure	404	{object}	httpx.ErrorResponse
//	@Router		/v1/admin/users/{id} [delete]
func (h *AdminHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "id")
	if !ok {
		invalidRequest(w, "invalid user id")
		return
	}

	if err := h.Users.DeleteUser(r.Context(), userID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	slogx.FromContext(r.Context()).Info("user deleted by admin", slog.Int64("target_user_id", userID))
	w.WriteHeader(http.StatusNoContent)
}
