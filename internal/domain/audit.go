package domain

import "time"

// AuditAction is the outcome recorded for a verification event.
type AuditAction string

const (
	AuditSent     AuditAction = "sent"
	AuditVerified AuditAction = "verified"
	AuditFailed   AuditAction = "failed"
	AuditExpired  AuditAction = "expired"
)

// AuditLogEntry is immutable once written.
// PK: log_id. GSI: purpose-created_at for retention scans.
type AuditLogEntry struct {
	LogID     string      `json:"id" dynamodbav:"log_id"`
	UserID    *string     `json:"user_id,omitempty" dynamodbav:"user_id,omitempty"`
	Email     *string     `json:"email,omitempty" dynamodbav:"email,omitempty"`
	Phone     *string     `json:"phone,omitempty" dynamodbav:"phone,omitempty"`
	Purpose   Purpose     `json:"purpose" dynamodbav:"purpose"`
	Action    AuditAction `json:"action" dynamodbav:"action"`
	Reason    string      `json:"reason,omitempty" dynamodbav:"reason,omitempty"`
	IPAddress *string     `json:"ip_address,omitempty" dynamodbav:"ip_address,omitempty"`
	UserAgent *string     `json:"user_agent,omitempty" dynamodbav:"user_agent,omitempty"`
	CreatedAt time.Time   `json:"created" dynamodbav:"created_at,unixtime"`
}
