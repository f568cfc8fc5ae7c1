package http

import (
	"context"
	"net/http"

	"github.com/veldhq/doorman/internal/doorman/domain"
	"github.com/veldhq/doorman/internal/doorman/service"
	"github.com/veldhq/doorman/internal/doorman/session"
	"github.com/veldhq/doorman/pkg/httpx"
)

type ctxKey string

const ctxKeySession ctxKey = "session"

// sessionFromCtx returns the authenticated session placed by SessionMiddleware.
func sessionFromCtx(ctx context.Context) (domain.Session, bool) {
	sess, ok := ctx.Value(ctxKeySession).(domain.Session)
	return sess, ok
}

// SessionMiddleware authenticates requests by resolving the bearer token
// against the session store. The session snapshot and the user id land in
// the request context; requests without a valid session get 401.
func SessionMiddleware(sessions *session.Store) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			sess, err := sessions.Get(token)
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, "invalid or expired session")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeySession, sess)
			ctx = context.WithValue(ctx, httpx.CtxKeyUserID, sess.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles gates a route on role membership. Handlers that also honor
// resource ownership skip this and evaluate the access check themselves.
func RequireRoles(roles ...domain.Role) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := sessionFromCtx(r.Context())
			if !ok {
				httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			d := service.Authorize(&sess, service.AccessRequest{RequiredRoles: roles})
			if !d.Allowed {
				httpx.WriteError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
