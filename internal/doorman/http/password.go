package http

import (
	"encoding/json"
	"net/http"

	"github.com/veldhq/doorman/internal/doorman/service"
	"github.com/veldhq/doorman/pkg/httpx"
)

type PasswordHandler struct {
	PasswordService *service.PasswordService
}

type passwordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// HandleChange lets the authenticated caller rotate their own password.
func (h *PasswordHandler) HandleChange(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromCtx(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req passwordChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.PasswordService.Change(r.Context(), sess.UserID, req.CurrentPassword, req.NewPassword, clientMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}

type passwordResetRequest struct {
	UserID      string `json:"user_id"`
	NewPassword string `json:"new_password"`
}

// HandleReset sets a new password for another account. Administrator only;
// the route's role middleware enforces that.
func (h *PasswordHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromCtx(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req passwordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	err := h.PasswordService.Reset(r.Context(), sess, req.UserID, req.NewPassword, clientMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "password reset"})
}
