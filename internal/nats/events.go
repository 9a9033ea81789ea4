package nats

import (
	"time"

	"github.com/google/uuid"
)

// StreamEvents holds every event the bot publishes.
const StreamEvents = "O1BOT_EVENTS"

// SubjectAuditEvent carries usage and admission audit events.
const SubjectAuditEvent = "o1bot.events.audit"

// Audit event types.
const (
	EventUsageRecorded  = "usage_recorded"
	EventUsageReset     = "usage_reset"
	EventRateLimited    = "rate_limited"
	EventQuotaExceeded  = "quota_exceeded"
	EventAccessDenied   = "access_denied"
	EventProviderFailed = "provider_failed"
)

// AuditEvent is published for usage accounting and admission decisions.
type AuditEvent struct {
	ID        string    `json:"id"`
	EventType string    `json:"event_type"`
	Severity  string    `json:"severity"` // info, warn, error
	UserID    string    `json:"user_id,omitempty"`
	Command   string    `json:"command,omitempty"`
	Model     string    `json:"model,omitempty"`
	Tokens    int64     `json:"tokens,omitempty"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewAuditEvent stamps an event with a fresh id and the current UTC time.
func NewAuditEvent(eventType, severity string) AuditEvent {
	return AuditEvent{
		ID:        uuid.NewString(),
		EventType: eventType,
		Severity:  severity,
		Timestamp: time.Now().UTC(),
	}
}
