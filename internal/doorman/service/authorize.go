package service

import (
	"github.com/veldhq/doorman/internal/doorman/domain"
)

// DenyReason distinguishes why an access check failed, so transports can map
// the outcome to a status code without inspecting message strings.
type DenyReason string

const (
	DenyNone      DenyReason = ""
	DenyNoSession DenyReason = "no_session"
	DenyRole      DenyReason = "insufficient_role"
	DenyScope     DenyReason = "scope_mismatch"
)

// AccessRequest describes what a caller must satisfy to proceed.
//
// RequiredRoles is the explicit allow-set for the operation. Scope, when
// non-empty, additionally requires a matching assignment for Manager callers
// (Administrators bypass scope). ResourceOwnerID, when non-empty, enables
// the ownership fallback: a caller whose role check failed is still allowed
// when they are the owner of the resource in question.
type AccessRequest struct {
	RequiredRoles   []domain.Role
	Scope           string
	ResourceOwnerID string
}

// Decision is the outcome of an access check.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

func allow() Decision            { return Decision{Allowed: true} }
func deny(r DenyReason) Decision { return Decision{Reason: r} }

// Authorize evaluates req against the caller's session. Evaluation order is
// fixed: session presence, role membership, scope, then the ownership
// fallback as the last resort.
func Authorize(sess *domain.Session, req AccessRequest) Decision {
	if sess == nil {
		return deny(DenyNoSession)
	}

	if sess.Role.In(req.RequiredRoles...) {
		if req.Scope == "" || scopeSatisfied(sess, req.Scope) {
			return allow()
		}
		if req.ResourceOwnerID != "" && req.ResourceOwnerID == sess.UserID {
			return allow()
		}
		return deny(DenyScope)
	}

	if req.ResourceOwnerID != "" && req.ResourceOwnerID == sess.UserID {
		return allow()
	}
	return deny(DenyRole)
}

// scopeSatisfied reports whether the caller may act within scope.
// Administrators operate across all scopes. Managers require an exact
// assignment. Members never satisfy a scope requirement through role alone.
func scopeSatisfied(sess *domain.Session, scope string) bool {
	if sess.IsAdmin {
		return true
	}
	if sess.Role == domain.RoleManager && sess.Scope != nil && *sess.Scope == scope {
		return true
	}
	return false
}
