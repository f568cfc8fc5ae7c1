package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/veldhq/doorman/internal/doorman/domain"
	"github.com/veldhq/doorman/internal/doorman/store"
)

type auditRepo struct {
	q querier
}

func (r *auditRepo) Insert(ctx context.Context, rec domain.AuditRecord) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO audit_records (
			id, user_id, username, action, resource, resource_id,
			details, ip_address, user_agent, occurred_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.UserID,
		rec.Username,
		rec.Action,
		rec.Resource,
		mapOptionalString(rec.ResourceID),
		mapOptionalString(rec.Details),
		mapOptionalString(rec.IPAddress),
		mapOptionalString(rec.UserAgent),
		rec.OccurredAt,
	)
	return mapErr(err)
}

func (r *auditRepo) List(ctx context.Context, f store.AuditFilter) ([]domain.AuditRecord, error) {
	where, args := buildAuditWhere(f)

	query := `
		SELECT id, user_id, username, action, resource, resource_id,
			details, ip_address, user_agent, occurred_at
		FROM audit_records` + where + `
		ORDER BY occurred_at DESC, id DESC`

	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.AuditRecord
	for rows.Next() {
		var (
			rec        domain.AuditRecord
			resourceID sql.NullString
			details    sql.NullString
			ipAddress  sql.NullString
			userAgent  sql.NullString
		)
		err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.Username,
			&rec.Action,
			&rec.Resource,
			&resourceID,
			&details,
			&ipAddress,
			&userAgent,
			&rec.OccurredAt,
		)
		if err != nil {
			return nil, err
		}
		rec.ResourceID = mapNullString(resourceID)
		rec.Details = mapNullString(details)
		rec.IPAddress = mapNullString(ipAddress)
		rec.UserAgent = mapNullString(userAgent)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *auditRepo) Count(ctx context.Context, f store.AuditFilter) (int64, error) {
	where, args := buildAuditWhere(f)

	var count int64
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_records`+where, args...).Scan(&count)
	return count, err
}

func buildAuditWhere(f store.AuditFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)

	if f.UserID != "" {
		clauses = append(clauses, `user_id = ?`)
		args = append(args, f.UserID)
	}
	if f.Username != "" {
		clauses = append(clauses, `lower(username) LIKE ?`)
		args = append(args, "%"+strings.ToLower(f.Username)+"%")
	}
	if f.Action != "" {
		clauses = append(clauses, `action = ?`)
		args = append(args, f.Action)
	}
	if f.Resource != "" {
		clauses = append(clauses, `resource = ?`)
		args = append(args, f.Resource)
	}
	if !f.From.IsZero() {
		clauses = append(clauses, `occurred_at >= ?`)
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		clauses = append(clauses, `occurred_at <= ?`)
		args = append(args, f.To)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return ` WHERE ` + strings.Join(clauses, " AND "), args
}
