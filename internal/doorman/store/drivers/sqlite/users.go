package sqlite

import (
	"context"
	"time"

	"github.com/veldhq/doorman/internal/doorman/domain"
	"github.com/veldhq/doorman/internal/doorman/store"
)

const userColumns = `id, username, email, password_hash, role, scope,
	failed_attempts, lockout_until, is_active, created_by,
	password_changed_at, last_login, created_at, updated_at`

type usersRepo struct {
	q querier
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapErr(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(username) = lower(?)`, username)

	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapErr(err)
	}
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO users (
			id, username, email, password_hash, role, scope,
			failed_attempts, lockout_until, is_active, created_by,
			password_changed_at, last_login
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID,
		u.Username,
		u.Email,
		u.PasswordHash,
		string(u.Role),
		mapOptionalString(u.Scope),
		u.FailedAttempts,
		mapOptionalTime(u.LockoutUntil),
		u.IsActive,
		mapOptionalString(u.CreatedBy),
		mapOptionalTime(u.PasswordChangedAt),
		mapOptionalTime(u.LastLogin),
	)
	return mapErr(err)
}

func (r *usersRepo) RecordLoginSuccess(ctx context.Context, userID string, at time.Time) error {
	return r.exec(ctx, `
		UPDATE users
		SET failed_attempts = 0, lockout_until = NULL, last_login = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, at, userID)
}

func (r *usersRepo) SetFailedAttempts(ctx context.Context, userID string, attempts int) error {
	// A failed attempt is only recorded when no lockout is active, so any
	// stored deadline is stale and gets cleared in the same statement.
	return r.exec(ctx, `
		UPDATE users
		SET failed_attempts = ?, lockout_until = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, attempts, userID)
}

func (r *usersRepo) LockAccount(ctx context.Context, userID string, until time.Time) error {
	// Locking resets the counter; the deadline is the sole gate from here.
	return r.exec(ctx, `
		UPDATE users
		SET lockout_until = ?, failed_attempts = 0, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, until, userID)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID string, newHash string, changedAt time.Time) error {
	return r.exec(ctx, `
		UPDATE users
		SET password_hash = ?, password_changed_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, newHash, changedAt, userID)
}

func (r *usersRepo) UpdateRole(ctx context.Context, userID string, role domain.Role, scope *string) error {
	return r.exec(ctx, `
		UPDATE users
		SET role = ?, scope = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, string(role), mapOptionalString(scope), userID)
}

func (r *usersRepo) SetActive(ctx context.Context, userID string, active bool) error {
	return r.exec(ctx, `
		UPDATE users
		SET is_active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, active, userID)
}

func (r *usersRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
}

func (r *usersRepo) ListUsersByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	return r.list(ctx,
		`SELECT `+userColumns+` FROM users WHERE role = ? ORDER BY created_at, id`,
		string(role))
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int64
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}

func (r *usersRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return mapErr(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *usersRepo) list(ctx context.Context, query string, args ...any) ([]domain.User, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
