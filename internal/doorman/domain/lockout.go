package domain

import "time"

// LockoutPolicy maps attempt history and time onto allow/deny decisions.
// The threshold and duration are configuration, not per-call-site constants.
type LockoutPolicy struct {
	MaxAttempts     int
	LockoutDuration time.Duration
}

// DefaultLockoutPolicy locks for 30 minutes after 5 consecutive failures.
var DefaultLockoutPolicy = LockoutPolicy{
	MaxAttempts:     5,
	LockoutDuration: 30 * time.Minute,
}

// Locked reports whether a lockout deadline is active at the given instant.
func Locked(lockoutUntil *time.Time, now time.Time) bool {
	return lockoutUntil != nil && lockoutUntil.After(now)
}

// RemainingMinutes returns the whole minutes left on an active lockout,
// rounded up, never less than 1: a still-locked account must not report
// "0 minutes remaining".
func RemainingMinutes(lockoutUntil time.Time, now time.Time) int {
	remaining := lockoutUntil.Sub(now)
	minutes := int((remaining + time.Minute - 1) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}
