package http

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/veldhq/doorman/internal/doorman/domain"
	"github.com/veldhq/doorman/internal/doorman/service"
	"github.com/veldhq/doorman/pkg/httpx"
	"github.com/veldhq/doorman/pkg/slogx"
)

// UserResponse is the public shape of an account. The password hash and the
// failure counter never leave the service.
type UserResponse struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	Scope     *string    `json:"scope,omitempty"`
	IsActive  bool       `json:"is_active"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func toUserResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      string(u.Role),
		Scope:     u.Scope,
		IsActive:  u.IsActive,
		LastLogin: u.LastLogin,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// LoginResponse carries the opaque session token and the account snapshot.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// AuditRecordResponse is the public shape of one audit entry.
type AuditRecordResponse struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID *string   `json:"resource_id,omitempty"`
	Details    *string   `json:"details,omitempty"`
	IPAddress  *string   `json:"ip_address,omitempty"`
	UserAgent  *string   `json:"user_agent,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func toAuditResponse(rec domain.AuditRecord) AuditRecordResponse {
	return AuditRecordResponse{
		ID:         rec.ID,
		UserID:     rec.UserID,
		Username:   rec.Username,
		Action:     rec.Action,
		Resource:   rec.Resource,
		ResourceID: rec.ResourceID,
		Details:    rec.Details,
		IPAddress:  rec.IPAddress,
		UserAgent:  rec.UserAgent,
		OccurredAt: rec.OccurredAt,
	}
}

// writeServiceError maps the service error taxonomy onto HTTP status codes.
// Unknown errors are logged and collapsed into a generic 500 so internals
// never leak into response bodies.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var locked *service.LockedError
	if errors.As(err, &locked) {
		httpx.WriteJSON(w, http.StatusLocked, map[string]any{
			"error":             locked.Error(),
			"locked_until":      locked.Until,
			"remaining_minutes": locked.RemainingMinutes,
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrValidation):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrUnauthenticated):
		httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, service.ErrAccountDisabled):
		httpx.WriteError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrInsufficientPermissions),
		errors.Is(err, service.ErrScopeMismatch):
		httpx.WriteError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrCurrentPasswordIncorrect):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrPasswordChangeTooSoon):
		httpx.WriteError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, service.ErrSelfDeactivation):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	default:
		slogx.FromContext(r.Context()).Error("request failed", "err", err,
			"method", r.Method, "path", r.URL.Path)
		httpx.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}

// clientMeta extracts caller network metadata for audit records. The
// X-Forwarded-For chain takes priority so records survive a reverse proxy.
func clientMeta(r *http.Request) domain.ClientMeta {
	ip := r.Header.Get("X-Forwarded-For")
	if ip != "" {
		ip = strings.TrimSpace(strings.Split(ip, ",")[0])
	} else if v := r.Header.Get("X-Real-IP"); v != "" {
		ip = v
	} else if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	} else {
		ip = r.RemoteAddr
	}

	return domain.ClientMeta{
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	}
}

// bearerToken pulls the opaque session token out of the Authorization header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return h[len(prefix):]
	}
	return ""
}
