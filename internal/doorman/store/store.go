package store

import (
	"context"
	"errors"
	"time"

	"github.com/veldhq/doorman/internal/doorman/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and transaction scoping for the login critical section.
type Store interface {
	Users() Users
	Audit() Audit

	ApplyMigrations() error

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed. Multi-statement
	// account mutations (role plus scope, status plus session revocation
	// bookkeeping) run through this.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transaction-scoped view of the store.
type Tx interface {
	Users() Users
	Audit() Audit
}

type Users interface {
	// GetUserByID returns a principal by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername matches case-insensitively; callers pass the
	// already-lowercased form.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// CreateUser inserts a new principal (id is provided by app via ULID).
	// Returns ErrAlreadyExists on a username or email collision.
	CreateUser(ctx context.Context, u domain.User) error

	// RecordLoginSuccess clears failed_attempts and lockout_until and stamps
	// last_login in one statement.
	RecordLoginSuccess(ctx context.Context, userID string, at time.Time) error

	// SetFailedAttempts persists the running failure counter and clears
	// any expired lockout deadline.
	SetFailedAttempts(ctx context.Context, userID string, attempts int) error

	// LockAccount sets lockout_until and resets failed_attempts to zero.
	// The two fields are mutually exclusive signals.
	LockAccount(ctx context.Context, userID string, until time.Time) error

	// UpdatePasswordHash sets the password hash and its change timestamp.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string, changedAt time.Time) error

	// UpdateRole changes role and scope together. Callers must pass a nil
	// scope for any role other than Manager.
	UpdateRole(ctx context.Context, userID string, role domain.Role, scope *string) error

	// SetActive flips the lifecycle flag.
	SetActive(ctx context.Context, userID string, active bool) error

	// ListUsers returns every principal ordered by creation time.
	ListUsers(ctx context.Context) ([]domain.User, error)

	// ListUsersByRole returns principals holding the given role.
	ListUsersByRole(ctx context.Context, role domain.Role) ([]domain.User, error)

	// IsEmpty reports whether no principals exist yet (bootstrap check).
	IsEmpty(ctx context.Context) (bool, error)
}

// AuditFilter narrows audit queries. Zero values mean "no constraint".
type AuditFilter struct {
	UserID   string
	Username string // substring match, case-insensitive
	Action   string
	Resource string
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}

type Audit interface {
	// Insert appends one record. There is deliberately no update or delete.
	Insert(ctx context.Context, rec domain.AuditRecord) error

	// List returns records matching the filter, newest first.
	List(ctx context.Context, f AuditFilter) ([]domain.AuditRecord, error)

	// Count returns the total number of records matching the filter,
	// ignoring Limit/Offset.
	Count(ctx context.Context, f AuditFilter) (int64, error)
}
