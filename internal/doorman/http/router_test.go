package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/veldhq/doorman/internal/doorman/domain"
	"github.com/veldhq/doorman/internal/doorman/service"
	"github.com/veldhq/doorman/internal/doorman/session"
	"github.com/veldhq/doorman/internal/doorman/store"
	"github.com/veldhq/doorman/internal/doorman/store/drivers/sqlite"
	"github.com/veldhq/doorman/pkg/cryptox"
	"github.com/veldhq/doorman/pkg/idx"
	"github.com/veldhq/doorman/pkg/slogx"
)

func TestMain(m *testing.M) {
	pepperPath := filepath.Join(os.TempDir(), "doorman-http-test-pepper")
	cryptox.SetPepperPath(pepperPath)

	os.Remove(pepperPath)
	defer os.Remove(pepperPath)

	os.Exit(m.Run())
}

type testEnv struct {
	router   *Router
	store    store.Store
	sessions *session.Store

	// xffCounter hands each login request a unique client IP so the strict
	// per-IP limit on /v1/login does not interfere with lockout scenarios.
	xffCounter int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "doorman.db") + "?_busy_timeout=5000"
	st, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	sessions := session.NewStore(time.Hour)
	audit := &service.AuditService{Store: st}

	logger := slogx.New(slogx.Config{Service: "doorman", Level: "error", Format: "text"})
	router := NewRouter("test", st, sessions, logger)
	router.LoginService = service.NewLoginService(st, sessions, audit, domain.DefaultLockoutPolicy)
	router.UserService = service.NewUserService(st, sessions, audit)
	router.PasswordService = service.NewPasswordService(st, sessions, audit, 24*time.Hour)
	router.AuditService = audit
	router.ApplyRoutes()

	return &testEnv{router: router, store: st, sessions: sessions}
}

func (e *testEnv) seedUser(t *testing.T, username, password string, mutate ...func(*domain.User)) domain.User {
	t.Helper()

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)

	u := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		Role:         domain.RoleMember,
		IsActive:     true,
	}
	for _, fn := range mutate {
		fn(&u)
	}
	require.NoError(t, e.store.Users().CreateUser(context.Background(), u))
	return u
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	// Unique client IP per request
	e.xffCounter++
	req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", e.xffCounter%250+1))
	req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", e.xffCounter%250+1))

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/v1/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp LoginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestLoginEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", "Sup3r$ecret")

	t.Run("success returns token and user", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/login", "", map[string]string{
			"username": "alice",
			"password": "Sup3r$ecret",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decodeJSON[LoginResponse](t, rec)
		require.NotEmpty(t, resp.Token)
		require.Equal(t, "alice", resp.User.Username)
		require.True(t, resp.ExpiresAt.After(time.Now()))
	})

	t.Run("wrong password is 401", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/login", "", map[string]string{
			"username": "alice",
			"password": "wrong",
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown user is 401 with the same message", func(t *testing.T) {
		wrong := env.do(t, http.MethodPost, "/v1/login", "", map[string]string{
			"username": "alice", "password": "wrong",
		})
		unknown := env.do(t, http.MethodPost, "/v1/login", "", map[string]string{
			"username": "nobody", "password": "wrong",
		})
		require.Equal(t, wrong.Body.String(), unknown.Body.String())
	})

	t.Run("empty fields are 400", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/login", "", map[string]string{})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/login", bytes.NewBufferString("{"))
		req.Header.Set("X-Forwarded-For", "203.0.113.251")
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLoginEndpoint_Lockout(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", "Sup3r$ecret")

	for range 4 {
		rec := env.do(t, http.MethodPost, "/v1/login", "", map[string]string{
			"username": "alice", "password": "wrong",
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	// Fifth failure locks the account
	rec := env.do(t, http.MethodPost, "/v1/login", "", map[string]string{
		"username": "alice", "password": "wrong",
	})
	require.Equal(t, http.StatusLocked, rec.Code)

	body := decodeJSON[map[string]any](t, rec)
	require.EqualValues(t, 30, body["remaining_minutes"])

	// Correct password while locked is still 423
	rec = env.do(t, http.MethodPost, "/v1/login", "", map[string]string{
		"username": "alice", "password": "Sup3r$ecret",
	})
	require.Equal(t, http.StatusLocked, rec.Code)
}

func TestMeEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", "Sup3r$ecret")

	t.Run("requires authentication", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/me", "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("returns own profile", func(t *testing.T) {
		token := env.login(t, "alice", "Sup3r$ecret")
		rec := env.do(t, http.MethodGet, "/v1/me", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		user := decodeJSON[UserResponse](t, rec)
		require.Equal(t, "alice", user.Username)
	})

	t.Run("bogus token is 401", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/me", "bogus", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestLogoutEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", "Sup3r$ecret")
	token := env.login(t, "alice", "Sup3r$ecret")

	rec := env.do(t, http.MethodPost, "/v1/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Token no longer usable
	rec = env.do(t, http.MethodGet, "/v1/me", token, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUsersEndpoints_RBAC(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "root", "Sup3r$ecret", func(u *domain.User) { u.Role = domain.RoleAdministrator })
	member := env.seedUser(t, "alice", "Sup3r$ecret")

	adminToken := env.login(t, "root", "Sup3r$ecret")
	memberToken := env.login(t, "alice", "Sup3r$ecret")

	t.Run("member cannot create users", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/users", memberToken, map[string]string{
			"username": "bob", "email": "bob@example.com",
			"password": "Sup3r$ecret", "role": "Member",
		})
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin creates a user", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/users", adminToken, map[string]string{
			"username": "bob", "email": "bob@example.com",
			"password": "Sup3r$ecret", "role": "Member",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		user := decodeJSON[UserResponse](t, rec)
		require.Equal(t, "bob", user.Username)
		require.Equal(t, "Member", user.Role)
	})

	t.Run("duplicate username is 400", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/users", adminToken, map[string]string{
			"username": "BOB", "email": "bob2@example.com",
			"password": "Sup3r$ecret", "role": "Member",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("member can read own record via ownership fallback", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/users/"+member.ID, memberToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("member cannot read someone else", func(t *testing.T) {
		other, err := env.store.Users().GetUserByUsername(context.Background(), "bob")
		require.NoError(t, err)

		rec := env.do(t, http.MethodGet, "/v1/users/"+other.ID, memberToken, nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("member cannot change roles", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, "/v1/users/"+member.ID+"/role", memberToken, map[string]any{
			"role": "Administrator",
		})
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	// Last: deactivation revokes the member's session
	t.Run("admin changes role then status", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, "/v1/users/"+member.ID+"/role", adminToken, map[string]any{
			"role": "Manager", "scope": "north",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		user := decodeJSON[UserResponse](t, rec)
		require.Equal(t, "Manager", user.Role)
		require.Equal(t, "north", *user.Scope)

		rec = env.do(t, http.MethodPatch, "/v1/users/"+member.ID+"/status", adminToken, map[string]any{
			"is_active": false,
		})
		require.Equal(t, http.StatusOK, rec.Code)
		user = decodeJSON[UserResponse](t, rec)
		require.False(t, user.IsActive)

		// Deactivation dropped the member's session
		rec = env.do(t, http.MethodGet, "/v1/me", memberToken, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestPasswordEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "root", "Sup3r$ecret", func(u *domain.User) { u.Role = domain.RoleAdministrator })
	member := env.seedUser(t, "alice", "Sup3r$ecret")

	adminToken := env.login(t, "root", "Sup3r$ecret")
	memberToken := env.login(t, "alice", "Sup3r$ecret")

	t.Run("self change with wrong current is 400", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/password/change", memberToken, map[string]string{
			"current_password": "wrong", "new_password": "N3w$ecret!",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("self change succeeds", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/password/change", memberToken, map[string]string{
			"current_password": "Sup3r$ecret", "new_password": "N3w$ecret!",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("second change inside the interval is 429", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/password/change", memberToken, map[string]string{
			"current_password": "N3w$ecret!", "new_password": "An0ther$ecret",
		})
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
	})

	t.Run("member cannot reset others", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/password/reset", memberToken, map[string]string{
			"user_id": member.ID, "new_password": "Re$et123!",
		})
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin reset bypasses the interval", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/password/reset", adminToken, map[string]string{
			"user_id": member.ID, "new_password": "Re$et123!",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		// The reset revoked the member's session
		rec = env.do(t, http.MethodGet, "/v1/me", memberToken, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAuditEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "root", "Sup3r$ecret", func(u *domain.User) { u.Role = domain.RoleAdministrator })
	env.seedUser(t, "alice", "Sup3r$ecret")

	adminToken := env.login(t, "root", "Sup3r$ecret")
	memberToken := env.login(t, "alice", "Sup3r$ecret")

	t.Run("member is forbidden", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/audit", memberToken, nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin sees login records", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/audit?action=LOGIN", adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeJSON[struct {
			Total   int64                 `json:"total"`
			Records []AuditRecordResponse `json:"records"`
		}](t, rec)
		require.EqualValues(t, 2, body.Total)
		require.Len(t, body.Records, 2)
	})

	t.Run("username filter narrows results", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/audit?username=ali", adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeJSON[struct {
			Records []AuditRecordResponse `json:"records"`
		}](t, rec)
		for _, r := range body.Records {
			require.Equal(t, "alice", r.Username)
		}
	})

	t.Run("bad timestamp is 400", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/audit?from=yesterday", adminToken, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/livez", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
