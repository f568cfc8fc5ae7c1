package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/veldhq/doorman/internal/doorman/domain"
	"github.com/veldhq/doorman/internal/doorman/obs"
	"github.com/veldhq/doorman/internal/doorman/service"
	"github.com/veldhq/doorman/internal/doorman/session"
	"github.com/veldhq/doorman/internal/doorman/store"
	"github.com/veldhq/doorman/pkg/httpx"
	"github.com/veldhq/doorman/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store    store.Store
	sessions *session.Store

	LoginService    *service.LoginService
	UserService     *service.UserService
	PasswordService *service.PasswordService
	AuditService    *service.AuditService
}

func NewRouter(buildVersion string, st store.Store, sessions *session.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		sessions:     sessions,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		obs.Instrument,
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerUsers()
	r.registerPasswords()
	r.registerAudit()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	// POST /login - strict rate limit by IP (authentication attempts)
	loginHandler := &LoginHandler{LoginService: r.LoginService}
	r.Mux.Handle("POST /v1/login",
		httpx.Chain(loginHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /logout - session required, moderate limit
	logoutHandler := &LogoutHandler{LoginService: r.LoginService}
	r.Mux.Handle("POST /v1/logout",
		httpx.Chain(logoutHandler,
			SessionMiddleware(r.sessions),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	// GET /me - authenticated profile read, lenient limit
	meHandler := &MeHandler{UserService: r.UserService}
	r.Mux.Handle("GET /v1/me",
		httpx.Chain(meHandler,
			SessionMiddleware(r.sessions),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerUsers() {
	h := &UsersHandler{UserService: r.UserService}

	adminOnly := []domain.Role{domain.RoleAdministrator}
	adminOrManager := []domain.Role{domain.RoleAdministrator, domain.RoleManager}

	r.Mux.Handle("POST /v1/users",
		httpx.Chain(http.HandlerFunc(h.HandleCreate),
			SessionMiddleware(r.sessions),
			RequireRoles(adminOnly...),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/users",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			SessionMiddleware(r.sessions),
			RequireRoles(adminOrManager...),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	// Per-resource: role check plus ownership fallback runs in the handler.
	r.Mux.Handle("GET /v1/users/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			SessionMiddleware(r.sessions),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("PATCH /v1/users/{id}/role",
		httpx.Chain(http.HandlerFunc(h.HandleUpdateRole),
			SessionMiddleware(r.sessions),
			RequireRoles(adminOnly...),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("PATCH /v1/users/{id}/status",
		httpx.Chain(http.HandlerFunc(h.HandleUpdateStatus),
			SessionMiddleware(r.sessions),
			RequireRoles(adminOnly...),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerPasswords() {
	h := &PasswordHandler{PasswordService: r.PasswordService}

	// POST /password/change - strict limit, wrong current passwords burn attempts
	r.Mux.Handle("POST /v1/password/change",
		httpx.Chain(http.HandlerFunc(h.HandleChange),
			SessionMiddleware(r.sessions),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/password/reset",
		httpx.Chain(http.HandlerFunc(h.HandleReset),
			SessionMiddleware(r.sessions),
			RequireRoles(domain.RoleAdministrator),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerAudit() {
	h := &AuditHandler{AuditService: r.AuditService}

	r.Mux.Handle("GET /v1/audit",
		httpx.Chain(h,
			SessionMiddleware(r.sessions),
			RequireRoles(domain.RoleAdministrator),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /metrics", obs.Handler())
}
