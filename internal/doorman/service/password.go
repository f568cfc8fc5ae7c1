package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/veldhq/doorman/internal/doorman/domain"
	"github.com/veldhq/doorman/internal/doorman/session"
	"github.com/veldhq/doorman/internal/doorman/store"
	"github.com/veldhq/doorman/pkg/cryptox"
)

// minPasswordLength is the floor for new passwords, self-set or admin-set.
const minPasswordLength = 8

var (
	reUpper   = regexp.MustCompile(`[A-Z]`)
	reLower   = regexp.MustCompile(`[a-z]`)
	reDigit   = regexp.MustCompile(`[0-9]`)
	reSpecial = regexp.MustCompile(`[^A-Za-z0-9]`)
)

// ValidatePassword checks the complexity policy. Checks run in a fixed
// order (length first, then character classes) and the first failure wins,
// so callers get deterministic messages.
func ValidatePassword(pw string) error {
	if len(pw) < minPasswordLength {
		return validationErr(fmt.Sprintf("password must be at least %d characters long", minPasswordLength))
	}
	if !reUpper.MatchString(pw) {
		return validationErr("password must contain at least one uppercase letter")
	}
	if !reLower.MatchString(pw) {
		return validationErr("password must contain at least one lowercase letter")
	}
	if !reDigit.MatchString(pw) {
		return validationErr("password must contain at least one number")
	}
	if !reSpecial.MatchString(pw) {
		return validationErr("password must contain at least one special character")
	}
	return nil
}

// PasswordService handles self-service password changes and administrative
// resets. Changes re-verify the current password and enforce a minimum
// interval between self-changes; resets bypass both.
type PasswordService struct {
	Store    store.Store
	Sessions *session.Store
	Audit    *AuditService

	// ChangeInterval is the minimum wall-clock gap between self-service
	// changes. Zero disables the restriction.
	ChangeInterval time.Duration

	now func() time.Time
}

func NewPasswordService(st store.Store, sessions *session.Store, audit *AuditService, changeInterval time.Duration) *PasswordService {
	return &PasswordService{
		Store:          st,
		Sessions:       sessions,
		Audit:          audit,
		ChangeInterval: changeInterval,
		now:            time.Now,
	}
}

// Change updates the caller's own password. The current password must
// verify, the new password must pass the complexity policy, and the
// previous change must be at least ChangeInterval in the past.
func (s *PasswordService) Change(ctx context.Context, userID, currentPassword, newPassword string, meta domain.ClientMeta) error {
	if currentPassword == "" || newPassword == "" {
		return validationErr("current and new password are required")
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	now := s.now()
	if s.ChangeInterval > 0 && user.PasswordChangedAt != nil {
		if now.Sub(*user.PasswordChangedAt) < s.ChangeInterval {
			return ErrPasswordChangeTooSoon
		}
	}

	if err := cryptox.VerifyPassword(currentPassword, user.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return ErrCurrentPasswordIncorrect
		}
		return fmt.Errorf("verify password: %w", err)
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, user.ID, hash, now); err != nil {
		return fmt.Errorf("store password: %w", err)
	}

	s.Audit.Record(ctx, Event{
		UserID:     user.ID,
		Username:   user.Username,
		Action:     domain.AuditPasswordChanged,
		Resource:   domain.ResourcePassword,
		Details:    "user changed own password",
		Meta:       meta,
		OccurredAt: now,
	})

	return nil
}

// Reset sets a new password for targetID on behalf of an administrator.
// The complexity policy still applies; the current password and the change
// interval do not. Existing sessions for the target are revoked.
func (s *PasswordService) Reset(ctx context.Context, actor domain.Session, targetID, newPassword string, meta domain.ClientMeta) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.Store.Users().GetUserByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	now := s.now()
	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, user.ID, hash, now); err != nil {
		return fmt.Errorf("store password: %w", err)
	}

	s.Sessions.InvalidateUser(user.ID)

	s.Audit.Record(ctx, Event{
		UserID:     actor.UserID,
		Username:   actor.Username,
		Action:     domain.AuditPasswordReset,
		Resource:   domain.ResourcePassword,
		ResourceID: user.ID,
		Details:    fmt.Sprintf("password reset for user %s", user.Username),
		Meta:       meta,
		OccurredAt: now,
	})

	return nil
}
