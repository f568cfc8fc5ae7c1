package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/veldhq/doorman/internal/doorman/domain"
	"github.com/veldhq/doorman/internal/doorman/session"
	"github.com/veldhq/doorman/internal/doorman/store"
	"github.com/veldhq/doorman/pkg/cryptox"
	"github.com/veldhq/doorman/pkg/idx"
)

// UserService covers administrative account management: creation, role
// assignment, and activation state. Role and scope changes take effect on
// the target's next login; existing sessions keep their issued snapshot.
type UserService struct {
	Store    store.Store
	Sessions *session.Store
	Audit    *AuditService

	now func() time.Time
}

func NewUserService(st store.Store, sessions *session.Store, audit *AuditService) *UserService {
	return &UserService{
		Store:    st,
		Sessions: sessions,
		Audit:    audit,
		now:      time.Now,
	}
}

// CreateUserInput is the admin-supplied payload for a new account.
type CreateUserInput struct {
	Username string
	Email    string
	Password string
	Role     domain.Role
	Scope    *string
}

// Create provisions a new account. Usernames are stored lowercase; the
// password must satisfy the complexity policy; scope is only accepted for
// Manager accounts.
func (s *UserService) Create(ctx context.Context, actor domain.Session, in CreateUserInput, meta domain.ClientMeta) (domain.User, error) {
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if in.Username == "" || in.Email == "" || in.Password == "" {
		return domain.User{}, validationErr("username, email and password are required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return domain.User{}, validationErr("invalid email address")
	}
	if !in.Role.Valid() {
		return domain.User{}, validationErr("invalid role")
	}
	if in.Scope != nil && in.Role != domain.RoleManager {
		return domain.User{}, validationErr("scope can only be assigned to Manager accounts")
	}
	if err := ValidatePassword(in.Password); err != nil {
		return domain.User{}, err
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	createdBy := actor.UserID
	user := domain.User{
		ID:           idx.New().String(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		Scope:        in.Scope,
		IsActive:     true,
		CreatedBy:    &createdBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, validationErr("username or email already exists")
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	s.Audit.Record(ctx, Event{
		UserID:     actor.UserID,
		Username:   actor.Username,
		Action:     domain.AuditUserCreated,
		Resource:   domain.ResourceUser,
		ResourceID: user.ID,
		Details:    fmt.Sprintf("created user %s with role %s", user.Username, user.Role),
		Meta:       meta,
		OccurredAt: now,
	})

	return user, nil
}

// UpdateRole changes the target's role and scope in one transaction. Scope
// is forced to null whenever the new role is not Manager, preserving the
// role/scope pairing rule. The change applies on next login.
func (s *UserService) UpdateRole(ctx context.Context, actor domain.Session, targetID string, role domain.Role, scope *string, meta domain.ClientMeta) (domain.User, error) {
	if !role.Valid() {
		return domain.User{}, validationErr("invalid role")
	}
	if role != domain.RoleManager {
		scope = nil
	}

	var updated domain.User
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		user, err := tx.Users().GetUserByID(ctx, targetID)
		if err != nil {
			return err
		}
		if err := tx.Users().UpdateRole(ctx, user.ID, role, scope); err != nil {
			return err
		}
		user.Role = role
		user.Scope = scope
		updated = user
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("update role: %w", err)
	}

	s.Audit.Record(ctx, Event{
		UserID:     actor.UserID,
		Username:   actor.Username,
		Action:     domain.AuditRoleChanged,
		Resource:   domain.ResourceUser,
		ResourceID: updated.ID,
		Details:    fmt.Sprintf("changed role of %s to %s", updated.Username, role),
		Meta:       meta,
		OccurredAt: s.now(),
	})

	return updated, nil
}

// SetStatus activates or deactivates the target account. Administrators
// cannot deactivate themselves. Deactivation revokes the target's live
// sessions immediately.
func (s *UserService) SetStatus(ctx context.Context, actor domain.Session, targetID string, active bool, meta domain.ClientMeta) (domain.User, error) {
	if !active && targetID == actor.UserID {
		return domain.User{}, ErrSelfDeactivation
	}

	var updated domain.User
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		user, err := tx.Users().GetUserByID(ctx, targetID)
		if err != nil {
			return err
		}
		if err := tx.Users().SetActive(ctx, user.ID, active); err != nil {
			return err
		}
		user.IsActive = active
		updated = user
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("set status: %w", err)
	}

	action := domain.AuditUserActivated
	verb := "activated"
	if !active {
		action = domain.AuditUserDeactivated
		verb = "deactivated"
		s.Sessions.InvalidateUser(updated.ID)
	}

	s.Audit.Record(ctx, Event{
		UserID:     actor.UserID,
		Username:   actor.Username,
		Action:     action,
		Resource:   domain.ResourceUser,
		ResourceID: updated.ID,
		Details:    fmt.Sprintf("%s user %s", verb, updated.Username),
		Meta:       meta,
		OccurredAt: s.now(),
	})

	return updated, nil
}

// Get returns one account by id.
func (s *UserService) Get(ctx context.Context, id string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

// List returns the accounts visible to the caller: Administrators see every
// account, Managers see Member accounts only.
func (s *UserService) List(ctx context.Context, actor domain.Session) ([]domain.User, error) {
	if actor.IsAdmin {
		return s.Store.Users().ListUsers(ctx)
	}
	return s.Store.Users().ListUsersByRole(ctx, domain.RoleMember)
}
