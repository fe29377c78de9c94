package httpx

import (
	"context"
	"net/http"

	"github.com/aussiebroadwan/gatehouse/pkg/slogx"
)

// PermissionChecker decides whether a user may perform action on resource.
type PermissionChecker interface {
	Can(ctx context.Context, userID int64, action, resource string) (bool, error)
}

// RequirePermission must run after AuthnMiddleware.
func RequirePermission(pc PermissionChecker, action, resource string) Middleware {
	required := action
	if resource != "" {
		required = action + ":" + resource
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			p, ok := PrincipalFrom(ctx)
			if !ok {
				writeBearerError(w, "missing bearer token")
				return
			}

			allowed, err := pc.Can(ctx, p.UserID, action, resource)
			if err != nil {
				slogx.FromContext(ctx).Error("permission check failed", "err", err, "permission", required)
				WriteError(w, http.StatusInternalServerError, "server_error", "permission check failed")
				return
			}
			if !allowed {
				w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope", scope="`+required+`"`)
				WriteError(w, http.StatusForbidden, "insufficient_permission", "missing permission "+required)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
