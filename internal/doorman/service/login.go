package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/veldhq/doorman/internal/doorman/domain"
	"github.com/veldhq/doorman/internal/doorman/obs"
	"github.com/veldhq/doorman/internal/doorman/session"
	"github.com/veldhq/doorman/internal/doorman/store"
	"github.com/veldhq/doorman/pkg/cryptox"
	"github.com/veldhq/doorman/pkg/slogx"
)

// LoginService drives the authentication state machine: credential lookup,
// hash verification, lockout policy, attempt-counter mutation, and session
// issuance. Every security-relevant outcome emits exactly one audit record.
type LoginService struct {
	Store    store.Store
	Sessions *session.Store
	Audit    *AuditService
	Policy   domain.LockoutPolicy

	// now is swappable for tests; defaults to time.Now.
	now func() time.Time

	// locks serializes the read-verify-mutate sequence per principal so two
	// concurrent attempts cannot both read the same counter value and lose
	// an increment or double-lock.
	locks *keyedMutex
}

func NewLoginService(st store.Store, sessions *session.Store, audit *AuditService, policy domain.LockoutPolicy) *LoginService {
	return &LoginService{
		Store:    st,
		Sessions: sessions,
		Audit:    audit,
		Policy:   policy,
		now:      time.Now,
		locks:    newKeyedMutex(),
	}
}

// Login processes one authentication attempt.
//
// Outcomes map onto the error taxonomy: nil with a session on success,
// ErrValidation for empty fields (no lookup, no audit), ErrInvalidCredentials
// for unknown usernames and wrong passwords alike, *LockedError while a
// lockout is active (and at the moment of locking), ErrAccountDisabled for
// deactivated accounts. Unknown usernames write no audit record; every other
// security-relevant branch writes exactly one.
func (s *LoginService) Login(ctx context.Context, username, password string, meta domain.ClientMeta) (domain.Session, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || password == "" {
		// Malformed request, not a security event.
		return domain.Session{}, validationErr("username and password are required")
	}

	user, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Same shape as a wrong password; no audit record for usernames
			// that do not exist.
			obs.LoginAttempts.WithLabelValues("invalid_credentials").Inc()
			return domain.Session{}, ErrInvalidCredentials
		}
		obs.LoginAttempts.WithLabelValues("error").Inc()
		return domain.Session{}, fmt.Errorf("lookup user: %w", err)
	}

	// The verify-and-mutate sequence below is a single unit of work per
	// principal. Attempts against other principals proceed in parallel.
	unlock := s.locks.Lock(user.ID)
	defer unlock()

	// Re-read under the lock: a concurrent attempt may have changed the
	// counter or locked the account since the lookup above.
	user, err = s.Store.Users().GetUserByID(ctx, user.ID)
	if err != nil {
		obs.LoginAttempts.WithLabelValues("error").Inc()
		return domain.Session{}, fmt.Errorf("reload user: %w", err)
	}

	now := s.now()

	if user.Locked(now) {
		// No counter mutation and no fresh audit record; only the original
		// lock transition was the event.
		obs.LoginAttempts.WithLabelValues("locked").Inc()
		return domain.Session{}, &LockedError{
			Until:            *user.LockoutUntil,
			RemainingMinutes: domain.RemainingMinutes(*user.LockoutUntil, now),
		}
	}

	if !user.IsActive {
		obs.LoginAttempts.WithLabelValues("disabled").Inc()
		return domain.Session{}, ErrAccountDisabled
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			// Corrupt stored hash. Treat as a failed attempt would leak
			// nothing, but the operator needs to know.
			slogx.FromContext(ctx).Error("stored password hash unreadable",
				slog.Any("error", err),
				slog.String("user_id", user.ID),
			)
		}
		return s.recordFailure(ctx, user, now, meta)
	}

	if err := s.Store.Users().RecordLoginSuccess(ctx, user.ID, now); err != nil {
		obs.LoginAttempts.WithLabelValues("error").Inc()
		return domain.Session{}, fmt.Errorf("record login: %w", err)
	}

	sess, err := s.Sessions.Issue(user)
	if err != nil {
		obs.LoginAttempts.WithLabelValues("error").Inc()
		return domain.Session{}, fmt.Errorf("issue session: %w", err)
	}

	s.Audit.Record(ctx, Event{
		UserID:     user.ID,
		Username:   user.Username,
		Action:     domain.AuditLogin,
		Resource:   domain.ResourceAuth,
		Details:    "user logged in successfully",
		Meta:       meta,
		OccurredAt: now,
	})
	obs.LoginAttempts.WithLabelValues("authenticated").Inc()

	return sess, nil
}

// recordFailure handles a wrong password under the per-principal lock:
// increment the counter, or transition to locked at the threshold. The
// counter resets to zero at the moment of locking so the deadline, not the
// counter, is the sole gate while locked.
func (s *LoginService) recordFailure(ctx context.Context, user domain.User, now time.Time, meta domain.ClientMeta) (domain.Session, error) {
	attempts := user.FailedAttempts + 1

	if attempts >= s.Policy.MaxAttempts {
		until := now.Add(s.Policy.LockoutDuration)
		if err := s.Store.Users().LockAccount(ctx, user.ID, until); err != nil {
			// Store failure: no partial state was persisted, so the caller
			// sees a transient error and the counter is unchanged.
			obs.LoginAttempts.WithLabelValues("error").Inc()
			return domain.Session{}, fmt.Errorf("lock account: %w", err)
		}

		s.Audit.Record(ctx, Event{
			UserID:   user.ID,
			Username: user.Username,
			Action:   domain.AuditAccountLocked,
			Resource: domain.ResourceAuth,
			Details: fmt.Sprintf("account locked after %d failed login attempts",
				s.Policy.MaxAttempts),
			Meta:       meta,
			OccurredAt: now,
		})
		obs.LoginAttempts.WithLabelValues("locked").Inc()
		obs.AccountLockouts.Inc()

		return domain.Session{}, &LockedError{
			Until:            until,
			RemainingMinutes: domain.RemainingMinutes(until, now),
		}
	}

	if err := s.Store.Users().SetFailedAttempts(ctx, user.ID, attempts); err != nil {
		obs.LoginAttempts.WithLabelValues("error").Inc()
		return domain.Session{}, fmt.Errorf("record failed attempt: %w", err)
	}

	s.Audit.Record(ctx, Event{
		UserID:     user.ID,
		Username:   user.Username,
		Action:     domain.AuditLoginFailed,
		Resource:   domain.ResourceAuth,
		Details:    "failed login attempt",
		Meta:       meta,
		OccurredAt: now,
	})
	obs.LoginAttempts.WithLabelValues("invalid_credentials").Inc()

	return domain.Session{}, ErrInvalidCredentials
}

// Logout destroys the session for token and writes one LOGOUT record.
// Unknown or already-expired tokens return ErrUnauthenticated.
func (s *LoginService) Logout(ctx context.Context, token string, meta domain.ClientMeta) error {
	sess, err := s.Sessions.Get(token)
	if err != nil {
		return ErrUnauthenticated
	}

	s.Sessions.Invalidate(token)

	s.Audit.Record(ctx, Event{
		UserID:     sess.UserID,
		Username:   sess.Username,
		Action:     domain.AuditLogout,
		Resource:   domain.ResourceAuth,
		Details:    "user logged out",
		Meta:       meta,
		OccurredAt: s.now(),
	})

	return nil
}
