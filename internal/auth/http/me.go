package http

import (
	"net/http"

	"github.com/aussiebroadwan/gatehouse/internal/auth/service"
	"github.com/aussiebroadwan/gatehouse/pkg/httpx"
)

// MeHandler answers questions about the calling user.
type MeHandler struct {
	Users *service.UserService
	Authz *service.AuthorizationResolver
}

// HandleProfile returns the caller's account.
//
//	@Summary	Current user
//	@Tags		Me
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	domain.PublicUser
//	@Failure	401	{object}	httpx.ErrorResponse
//	@Router		/v1/me [get]
func (h *MeHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.PrincipalFrom(r.Context())
	if !ok {
		writeServiceError(w, r, service.ErrInvalidToken)
		return
	}

	user, err := h.Users.GetUserByID(r.Context(), p.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, user)
}

// HandlePermissions returns the caller's effective permissions.
//
//	@Summary		Current user permissions
//	@Description	Union of the permissions of every role held. Pass fresh=true to bypass the cache.
//	@Tags			Me
//	@Produce		json
//	@Security		BearerAuth
//	@Param			fresh	query		bool	false	"Skip the permission cache"
//	@Success		200		{object}	PermissionsResponse
//	@Failure		401		{object}	httpx.ErrorResponse
//	@Router			/v1/me/permissions [get]
func (h *MeHandler) HandlePermissions(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.PrincipalFrom(r.Context())
	if !ok {
		writeServiceError(w, r, service.ErrInvalidToken)
		return
	}

	useCache := r.URL.Query().Get("fresh") != "true"
	perms, err := h.Authz.GetPermissions(r.Context(), p.UserID, useCache)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, PermissionsResponse{Permissions: perms})
}
