package models

import (
	"encoding/json"
	"time"
)

// Audited actions.
const (
	AuditActionRegister       = "REGISTER"
	AuditActionLogin          = "LOGIN"
	AuditActionLoginFailed    = "LOGIN_FAILED"
	AuditActionLogout         = "LOGOUT"
	AuditActionMemberStatus   = "MEMBER_STATUS_CHANGE"
	AuditActionVigilState     = "VIGIL_STATE_CHANGE"
	AuditActionMinuteGenerate = "MINUTE_GENERATE"
	AuditActionMinuteSign     = "MINUTE_SIGN"
	AuditActionExport         = "EXPORT"
)

// Audited resources. The same names label version conflict metrics.
const (
	ResourceAuth   = "auth"
	ResourceMember = "member"
	ResourceVigil  = "vigil"
	ResourceMinute = "minute"
)

// AuditLog is one append-only row of audit_logs. Before and after snapshots are
// stored as jsonb.
type AuditLog struct {
	ID         string          `db:"id" json:"id"`
	UserID     *string         `db:"user_id" json:"user_id,omitempty"`
	Action     string          `db:"action" json:"action"`
	Resource   string          `db:"resource" json:"resource"`
	ResourceID *string         `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  json.RawMessage `db:"old_values" json:"old_values,omitempty"`
	NewValues  json.RawMessage `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string          `db:"ip_address" json:"ip_address"`
	UserAgent  string          `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// Actor identifies who triggered a change, for audit records.
type Actor struct {
	UserID    string
	IP        string
	UserAgent string
}
