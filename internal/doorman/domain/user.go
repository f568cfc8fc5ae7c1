package domain

import "time"

// User is a principal capable of authenticating.
//
// Two invariants hold at every store boundary:
//   - LockoutUntil set implies FailedAttempts == 0. Locking resets the
//     counter, so the lockout deadline is the sole gate while locked and the
//     counter starts fresh afterwards.
//   - Scope is non-nil only while Role == RoleManager. Any role transition
//     away from Manager clears it.
type User struct {
	ID           string
	Username     string // stored lowercased; lookups are case-insensitive
	Email        string // stored lowercased
	PasswordHash string // argon2id PHC encoded

	Role  Role
	Scope *string // Manager-only resource partition label

	FailedAttempts int
	LockoutUntil   *time.Time

	IsActive  bool
	CreatedBy *string // principal id of whoever provisioned this account

	PasswordChangedAt *time.Time
	LastLogin         *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Locked reports whether the account is under an active lockout at the given
// instant.
func (u User) Locked(now time.Time) bool {
	return u.LockoutUntil != nil && u.LockoutUntil.After(now)
}

// IsAdmin reports whether the account holds the Administrator role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdministrator
}
