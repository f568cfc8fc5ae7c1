package domain

import "time"

// Session is an immutable capability snapshot issued after successful
// authentication. It captures the principal's role and scope at issuance
// time; a later role change takes effect only on next login.
type Session struct {
	Token    string // opaque, >=256 bits entropy, never persisted hashed or otherwise
	UserID   string
	Username string
	Role     Role
	Scope    *string

	// IsAdmin mirrors User.IsAdmin at issuance for legacy consumers.
	IsAdmin bool

	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session has passed its expiry at the given
// instant.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
