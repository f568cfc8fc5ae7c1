package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/veldhq/doorman/internal/doorman/domain"
	"github.com/veldhq/doorman/internal/doorman/obs"
	"github.com/veldhq/doorman/internal/doorman/store"
	"github.com/veldhq/doorman/pkg/idx"
	"github.com/veldhq/doorman/pkg/slogx"
)

// AuditService is the append-only sink for security events. Record never
// returns an error: a failed write is surfaced through operational logging
// and metrics, never to the security decision it accompanies. Writes are
// synchronous, which keeps causally ordered events for the same principal
// ordered in the store.
type AuditService struct {
	Store store.Store
}

// Event describes one security event to append.
type Event struct {
	UserID     string
	Username   string
	Action     string
	Resource   string
	ResourceID string
	Details    string
	Meta       domain.ClientMeta

	// OccurredAt is the event time, not the flush time. Zero means now.
	OccurredAt time.Time
}

// Record appends one audit record for the event, fire-and-forget.
func (s *AuditService) Record(ctx context.Context, ev Event) {
	occurredAt := ev.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	rec := domain.AuditRecord{
		ID:         idx.New().String(),
		UserID:     ev.UserID,
		Username:   ev.Username,
		Action:     ev.Action,
		Resource:   ev.Resource,
		ResourceID: optional(ev.ResourceID),
		Details:    optional(ev.Details),
		IPAddress:  optional(ev.Meta.IPAddress),
		UserAgent:  optional(ev.Meta.UserAgent),
		OccurredAt: occurredAt,
	}

	if err := s.Store.Audit().Insert(ctx, rec); err != nil {
		obs.AuditWriteFailures.Inc()
		slogx.FromContext(ctx).Error("audit write failed",
			slog.Any("error", err),
			slog.String("action", ev.Action),
			slog.String("user_id", ev.UserID),
		)
	}
}

// List returns matching records (newest first) plus the unpaginated total.
func (s *AuditService) List(ctx context.Context, f store.AuditFilter) ([]domain.AuditRecord, int64, error) {
	records, err := s.Store.Audit().List(ctx, f)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.Store.Audit().Count(ctx, f)
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
