// Package audit persists the bot's audit events from JetStream to Postgres.
package audit

import (
	"time"

	"github.com/google/uuid"

	inats "github.com/aiox-platform/o1bot/internal/nats"
)

// Entry matches the audit_events table schema.
type Entry struct {
	ID        uuid.UUID
	EventType string
	Severity  string
	UserID    string
	Command   string
	Model     string
	Tokens    int64
	Details   string
	CreatedAt time.Time
}

// FromEvent converts a published event. Events without a valid id get a new
// one, which forgoes deduplication on redelivery.
func FromEvent(e inats.AuditEvent) Entry {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		id = uuid.New()
	}
	created := e.Timestamp
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return Entry{
		ID:        id,
		EventType: e.EventType,
		Severity:  e.Severity,
		UserID:    e.UserID,
		Command:   e.Command,
		Model:     e.Model,
		Tokens:    e.Tokens,
		Details:   e.Details,
		CreatedAt: created,
	}
}
