package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrValidation wraps malformed-input rejections. No state change and no
	// audit record accompany these.
	ErrValidation = errors.New("invalid input")

	// ErrInvalidCredentials covers both unknown usernames and wrong
	// passwords so responses cannot be used for username enumeration.
	ErrInvalidCredentials = errors.New("invalid username and/or password")

	// ErrAccountDisabled reports an administratively deactivated account.
	ErrAccountDisabled = errors.New("account is deactivated")

	// ErrUnauthenticated reports a missing or expired session.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrInsufficientPermissions reports an RBAC role denial.
	ErrInsufficientPermissions = errors.New("insufficient permissions")

	// ErrScopeMismatch reports a Manager acting outside its assigned scope.
	ErrScopeMismatch = errors.New("access denied to this scope")

	// ErrPasswordChangeTooSoon rate-limits self-service password changes.
	ErrPasswordChangeTooSoon = errors.New("password can only be changed once every 24 hours")

	// ErrCurrentPasswordIncorrect rejects a self-service password change
	// whose re-verification failed.
	ErrCurrentPasswordIncorrect = errors.New("current password is incorrect")

	// ErrUserNotFound reports a missing principal on management operations,
	// where the account's existence is not a secret.
	ErrUserNotFound = errors.New("user not found")

	// ErrSelfDeactivation rejects an administrator toggling their own
	// account's lifecycle flag.
	ErrSelfDeactivation = errors.New("cannot deactivate your own account")
)

// LockedError is returned while an account is under an active lockout. It
// carries the remaining time so callers can render the specific message the
// policy prescribes (lockout is not an enumeration vector).
type LockedError struct {
	Until            time.Time
	RemainingMinutes int
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked, try again in %d minutes", e.RemainingMinutes)
}

func validationErr(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
