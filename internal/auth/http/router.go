package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aussiebroadwan/gatehouse/internal/auth/service"
	"github.com/aussiebroadwan/gatehouse/pkg/httpx"
	"github.com/aussiebroadwan/gatehouse/pkg/slogx"

	_ "github.com/aussiebroadwan/gatehouse/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	durable Pinger
	fast    Pinger
	metrics prometheus.Gatherer

	// StrictLimit guards credential endpoints, ModerateLimit everything
	// else that needs a caller.
	StrictLimit   httpx.RateLimitConfig
	ModerateLimit httpx.RateLimitConfig

	Session *service.SessionService
	Ledger  *service.TokenLedger
	Authz   *service.AuthorizationResolver
	Roles   *service.RolesService
	Users   *service.UserService
}

func NewRouter(
	buildVersion string,
	durable, fast Pinger,
	gatherer prometheus.Gatherer,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:           http.NewServeMux(),
		buildVersion:  buildVersion,
		startTime:     time.Now(),
		logger:        logger,
		durable:       durable,
		fast:          fast,
		metrics:       gatherer,
		StrictLimit:   httpx.StrictLimit,
		ModerateLimit: httpx.ModerateLimit,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSession()
	r.registerMe()
	r.registerAdmin()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Gatehouse Authentication Service API
//	@version		0.1.0
//	@description	Session and credential service. Access tokens are short-lived HS256 JWTs; refresh tokens rotate on every use and a replayed one revokes its whole session.
//
//	@contact.name	AussieBroadWAN Team
//	@contact.url	https://github.com/aussiebroadwan/gatehouse
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:8080
//	@BasePath		/
//
//	@schemes		http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerSession() {
	h := &SessionHandler{Session: r.Session}

	// Credential endpoints - strict rate limit by IP (brute force)
	strict := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn, httpx.RateLimitByIP(r.StrictLimit))
	}
	r.Mux.Handle("POST /v1/auth/register", strict(h.HandleRegister))
	r.Mux.Handle("POST /v1/auth/login", strict(h.HandleLogin))
	r.Mux.Handle("POST /v1/auth/password/forgot", strict(h.HandleForgotPassword))
	r.Mux.Handle("POST /v1/auth/password/reset", strict(h.HandleResetPassword))

	// Refresh is hit by every client on a timer, so it gets the moderate limit
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(r.ModerateLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.AuthnMiddleware(r.Session),
			httpx.RateLimitByUser(r.ModerateLimit),
		),
	)
}

func (r *Router) registerMe() {
	h := &MeHandler{Users: r.Users, Authz: r.Authz}

	authed := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn,
			httpx.AuthnMiddleware(r.Session),
			httpx.RateLimitByUser(r.ModerateLimit),
		)
	}
	r.Mux.Handle("GET /v1/me", authed(h.HandleProfile))
	r.Mux.Handle("GET /v1/me/permissions", authed(h.HandlePermissions))
}

func (r *Router) registerAdmin() {
	h := &AdminHandler{
		Session: r.Session,
		Ledger:  r.Ledger,
		Roles:   r.Roles,
		Users:   r.Users,
	}

	// Every admin route: bearer, then the permission, then a per-user limit
	guarded := func(fn http.HandlerFunc, action, resource string) http.Handler {
		return httpx.Chain(fn,
			httpx.AuthnMiddleware(r.Session),
			httpx.RequirePermission(r.Authz, action, resource),
			httpx.RateLimitByUser(r.ModerateLimit),
		)
	}

	r.Mux.Handle("POST /v1/admin/tokens/revoke", guarded(h.HandleRevokeTokens, "revoke", "tokens"))

	r.Mux.Handle("GET /v1/admin/roles", guarded(h.HandleListRoles, "read", "roles"))
	r.Mux.Handle("POST /v1/admin/roles", guarded(h.HandleCreateRole, "update", "roles"))
	r.Mux.Handle("PUT /v1/admin/roles/{id}/permissions", guarded(h.HandleSetRolePermissions, "update", "roles"))

	r.Mux.Handle("GET /v1/admin/permissions", guarded(h.HandleListPermissions, "read", "roles"))
	r.Mux.Handle("POST /v1/admin/permissions", guarded(h.HandleCreatePermission, "update", "roles"))
	r.Mux.Handle("DELETE /v1/admin/permissions/{id}", guarded(h.HandleDeletePermission, "update", "roles"))

	r.Mux.Handle("GET /v1/admin/users/{id}/roles", guarded(h.HandleListUserRoles, "read", "roles"))
	r.Mux.Handle("POST /v1/admin/users/{id}/roles", guarded(h.HandleAssignRole, "assign", "roles"))
	r.Mux.Handle("DELETE /v1/admin/users/{id}/roles/{roleID}", guarded(h.HandleRemoveRole, "assign", "roles"))
	r.Mux.Handle("DELETE /v1/admin/users/{id}", guarded(h.HandleDeleteUser, "delete", "users"))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.durable, r.fast))

	if r.metrics != nil {
		r.Mux.Handle("GET /metrics", promhttp.HandlerFor(r.metrics, promhttp.HandlerOpts{}))
	}
}
