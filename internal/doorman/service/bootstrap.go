package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/veldhq/doorman/internal/doorman/domain"
	"github.com/veldhq/doorman/internal/doorman/store"
	"github.com/veldhq/doorman/pkg/cryptox"
	"github.com/veldhq/doorman/pkg/idx"
	"github.com/veldhq/doorman/pkg/slogx"
)

// BootstrapAdmin describes the initial administrator account provisioned on
// first start against an empty user table.
type BootstrapAdmin struct {
	Username string
	Email    string
	Password string
}

// EnsureAdmin creates the initial Administrator account when no principals
// exist yet. On a populated store it is a no-op, so restarting the service
// never re-provisions or overwrites anything.
func EnsureAdmin(ctx context.Context, st store.Store, admin BootstrapAdmin) error {
	empty, err := st.Users().IsEmpty(ctx)
	if err != nil {
		return fmt.Errorf("check user table: %w", err)
	}
	if !empty {
		return nil
	}

	admin.Username = strings.ToLower(strings.TrimSpace(admin.Username))
	admin.Email = strings.ToLower(strings.TrimSpace(admin.Email))
	if admin.Username == "" || admin.Email == "" || admin.Password == "" {
		return fmt.Errorf("bootstrap admin credentials are not configured")
	}
	if err := ValidatePassword(admin.Password); err != nil {
		return fmt.Errorf("bootstrap admin password: %w", err)
	}

	hash, err := cryptox.HashPassword(admin.Password)
	if err != nil {
		return fmt.Errorf("hash bootstrap password: %w", err)
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           idx.New().String(),
		Username:     admin.Username,
		Email:        admin.Email,
		PasswordHash: hash,
		Role:         domain.RoleAdministrator,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := st.Users().CreateUser(ctx, user); err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}

	slogx.FromContext(ctx).Info("bootstrap administrator created",
		slog.String("username", user.Username),
		slog.String("user_id", user.ID),
	)
	return nil
}
