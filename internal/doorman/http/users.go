package http

import (
	"encoding/json"
	"net/http"

	"github.com/veldhq/doorman/internal/doorman/domain"
	"github.com/veldhq/doorman/internal/doorman/service"
	"github.com/veldhq/doorman/pkg/httpx"
)

type UsersHandler struct {
	UserService *service.UserService
}

type createUserRequest struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Role     string  `json:"role"`
	Scope    *string `json:"scope,omitempty"`
}

// HandleCreate provisions a new account. Administrator only.
func (h *UsersHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromCtx(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.UserService.Create(r.Context(), sess, service.CreateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     domain.Role(req.Role),
		Scope:    req.Scope,
	}, clientMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

// HandleList returns the accounts visible to the caller. Administrators see
// everyone; Managers see Member accounts.
func (h *UsersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromCtx(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	users, err := h.UserService.List(r.Context(), sess)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"users": out})
}

// HandleGet returns one account. Administrators can fetch anyone; other
// callers only themselves.
func (h *UsersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromCtx(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id := r.PathValue("id")
	d := service.Authorize(&sess, service.AccessRequest{
		RequiredRoles:   []domain.Role{domain.RoleAdministrator},
		ResourceOwnerID: id,
	})
	if !d.Allowed {
		httpx.WriteError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	user, err := h.UserService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

type updateRoleRequest struct {
	Role  string  `json:"role"`
	Scope *string `json:"scope,omitempty"`
}

// HandleUpdateRole changes an account's role and scope. Administrator only.
// The new role takes effect on the target's next login.
func (h *UsersHandler) HandleUpdateRole(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromCtx(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req updateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.UserService.UpdateRole(r.Context(), sess, r.PathValue("id"), domain.Role(req.Role), req.Scope, clientMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

type updateStatusRequest struct {
	IsActive bool `json:"is_active"`
}

// HandleUpdateStatus activates or deactivates an account. Administrator only.
func (h *UsersHandler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromCtx(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.UserService.SetStatus(r.Context(), sess, r.PathValue("id"), req.IsActive, clientMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}
