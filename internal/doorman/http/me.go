package http

import (
	"net/http"

	"github.com/veldhq/doorman/internal/doorman/service"
	"github.com/veldhq/doorman/pkg/httpx"
)

type MeHandler struct {
	UserService *service.UserService
}

// ServeHTTP returns the authenticated caller's own account.
func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromCtx(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := h.UserService.Get(r.Context(), sess.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}
