package domain

import "time"

// Audit action vocabulary. Closed set; reporting tooling groups on these.
const (
	AuditLogin           = "LOGIN"
	AuditLoginFailed     = "LOGIN_FAILED"
	AuditAccountLocked   = "ACCOUNT_LOCKED"
	AuditLogout          = "LOGOUT"
	AuditPasswordChanged = "PASSWORD_CHANGED"
	AuditPasswordReset   = "PASSWORD_RESET"
	AuditUserCreated     = "USER_CREATED"
	AuditRoleChanged     = "ROLE_CHANGED"
	AuditUserActivated   = "USER_ACTIVATED"
	AuditUserDeactivated = "USER_DEACTIVATED"
)

// Audit resource tags.
const (
	ResourceAuth     = "AUTH"
	ResourceUser     = "USER"
	ResourcePassword = "PASSWORD"
)

// AuditRecord is an immutable, append-only record of a security-relevant
// event. Username is denormalized so history survives account deletion.
// OccurredAt is the time of the event, not of the write.
type AuditRecord struct {
	ID         string
	UserID     string
	Username   string
	Action     string
	Resource   string
	ResourceID *string
	Details    *string
	IPAddress  *string
	UserAgent  *string
	OccurredAt time.Time
}

// ClientMeta carries optional caller network metadata into audit records.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}
