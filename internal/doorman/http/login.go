package http

import (
	"encoding/json"
	"net/http"

	"github.com/veldhq/doorman/internal/doorman/service"
	"github.com/veldhq/doorman/pkg/httpx"
)

type LoginHandler struct {
	LoginService *service.LoginService
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ServeHTTP authenticates a username/password pair and returns an opaque
// session token with the account snapshot.
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.LoginService.Login(r.Context(), req.Username, req.Password, clientMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	user, err := h.LoginService.Store.Users().GetUserByID(r.Context(), sess.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, LoginResponse{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
		User:      toUserResponse(user),
	})
}

type LogoutHandler struct {
	LoginService *service.LoginService
}

// ServeHTTP invalidates the caller's session.
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.LoginService.Logout(r.Context(), bearerToken(r), clientMeta(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}
