package service

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/veldhq/doorman/internal/doorman/domain"
)

func sessionFor(role domain.Role, scope *string) *domain.Session {
	return &domain.Session{
		Token:    "tok",
		UserID:   "caller-1",
		Username: "caller",
		Role:     role,
		Scope:    scope,
		IsAdmin:  role == domain.RoleAdministrator,
	}
}

func strPtr(s string) *string { return &s }

func TestAuthorize(t *testing.T) {
	adminOnly := []domain.Role{domain.RoleAdministrator}
	adminOrManager := []domain.Role{domain.RoleAdministrator, domain.RoleManager}

	tests := []struct {
		name    string
		sess    *domain.Session
		req     AccessRequest
		allowed bool
		reason  DenyReason
	}{
		{
			name:   "nil session denied",
			sess:   nil,
			req:    AccessRequest{RequiredRoles: adminOnly},
			reason: DenyNoSession,
		},
		{
			name:    "role in allow set",
			sess:    sessionFor(domain.RoleAdministrator, nil),
			req:     AccessRequest{RequiredRoles: adminOnly},
			allowed: true,
		},
		{
			name:   "role outside allow set",
			sess:   sessionFor(domain.RoleMember, nil),
			req:    AccessRequest{RequiredRoles: adminOrManager},
			reason: DenyRole,
		},
		{
			name:    "admin bypasses scope",
			sess:    sessionFor(domain.RoleAdministrator, nil),
			req:     AccessRequest{RequiredRoles: adminOrManager, Scope: "north"},
			allowed: true,
		},
		{
			name:    "manager with matching scope",
			sess:    sessionFor(domain.RoleManager, strPtr("north")),
			req:     AccessRequest{RequiredRoles: adminOrManager, Scope: "north"},
			allowed: true,
		},
		{
			name:   "manager with different scope",
			sess:   sessionFor(domain.RoleManager, strPtr("south")),
			req:    AccessRequest{RequiredRoles: adminOrManager, Scope: "north"},
			reason: DenyScope,
		},
		{
			name:   "manager without scope assignment",
			sess:   sessionFor(domain.RoleManager, nil),
			req:    AccessRequest{RequiredRoles: adminOrManager, Scope: "north"},
			reason: DenyScope,
		},
		{
			name: "ownership fallback allows role miss",
			sess: sessionFor(domain.RoleMember, nil),
			req: AccessRequest{
				RequiredRoles:   adminOnly,
				ResourceOwnerID: "caller-1",
			},
			allowed: true,
		},
		{
			name: "ownership fallback rejects other owner",
			sess: sessionFor(domain.RoleMember, nil),
			req: AccessRequest{
				RequiredRoles:   adminOnly,
				ResourceOwnerID: "someone-else",
			},
			reason: DenyRole,
		},
		{
			name: "ownership fallback allows scope miss",
			sess: sessionFor(domain.RoleManager, strPtr("south")),
			req: AccessRequest{
				RequiredRoles:   adminOrManager,
				Scope:           "north",
				ResourceOwnerID: "caller-1",
			},
			allowed: true,
		},
		{
			name: "empty owner id never matches",
			sess: &domain.Session{Role: domain.RoleMember, UserID: ""},
			req: AccessRequest{
				RequiredRoles:   adminOnly,
				ResourceOwnerID: "",
			},
			reason: DenyRole,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Authorize(tt.sess, tt.req)
			require.Equal(t, tt.allowed, d.Allowed)
			if !tt.allowed {
				require.Equal(t, tt.reason, d.Reason)
			}
		})
	}
}
