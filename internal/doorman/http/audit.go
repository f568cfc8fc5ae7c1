package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/veldhq/doorman/internal/doorman/service"
	"github.com/veldhq/doorman/internal/doorman/store"
	"github.com/veldhq/doorman/pkg/httpx"
)

const (
	auditDefaultLimit = 50
	auditMaxLimit     = 500
)

type AuditHandler struct {
	AuditService *service.AuditService
}

// ServeHTTP queries the audit trail, newest first. Administrator only.
//
// Query parameters: action, resource, username (substring), user_id,
// from / to (RFC 3339), limit, offset.
func (h *AuditHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := store.AuditFilter{
		UserID:   q.Get("user_id"),
		Username: q.Get("username"),
		Action:   q.Get("action"),
		Resource: q.Get("resource"),
		Limit:    auditDefaultLimit,
	}

	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid 'from' timestamp, expected RFC 3339")
			return
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid 'to' timestamp, expected RFC 3339")
			return
		}
		f.To = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			httpx.WriteError(w, http.StatusBadRequest, "invalid 'limit'")
			return
		}
		if n > auditMaxLimit {
			n = auditMaxLimit
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httpx.WriteError(w, http.StatusBadRequest, "invalid 'offset'")
			return
		}
		f.Offset = n
	}

	records, total, err := h.AuditService.List(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]AuditRecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toAuditResponse(rec))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"total":   total,
		"limit":   f.Limit,
		"offset":  f.Offset,
		"records": out,
	})
}
