package domain

import "fmt"

// Role is the closed three-tier role enumeration. Roles are compared by
// explicit set membership at each call site rather than by numeric rank,
// because different operations require different tiers (user creation is
// Administrator-only even though Managers may list users).
type Role string

const (
	RoleAdministrator Role = "Administrator"
	RoleManager       Role = "Manager"
	RoleMember        Role = "Member"
)

// Roles lists every valid role.
func Roles() []Role {
	return []Role{RoleAdministrator, RoleManager, RoleMember}
}

// ParseRole validates a wire-format role string against the closed set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdministrator, RoleManager, RoleMember:
		return Role(s), nil
	}
	return "", fmt.Errorf("invalid role %q", s)
}

// Valid reports whether r is one of the three defined roles.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// In reports whether r is a member of the given set.
func (r Role) In(set ...Role) bool {
	for _, candidate := range set {
		if r == candidate {
			return true
		}
	}
	return false
}
