package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	inats "github.com/aiox-platform/o1bot/internal/nats"
)

const (
	consumerName = "audit-persister"
	fetchBatch   = 10
	fetchTimeout = 5 * time.Second
)

type inserter interface {
	Insert(ctx context.Context, e Entry) error
}

type consumerSource interface {
	EnsureConsumer(ctx context.Context, name, filterSubject string) (jetstream.Consumer, error)
}

// Consumer listens on the audit subject and persists entries to the database.
type Consumer struct {
	repo    inserter
	source  consumerSource
	subject string
}

// NewConsumer creates a new audit event Consumer.
func NewConsumer(repo inserter, source consumerSource, subject string) *Consumer {
	return &Consumer{repo: repo, source: source, subject: subject}
}

// Run is the consume loop. It blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	consumer, err := c.source.EnsureConsumer(ctx, consumerName, c.subject)
	if err != nil {
		return err
	}

	slog.Info("audit consumer started", "consumer", consumerName)

	for {
		msgs, err := consumer.Fetch(fetchBatch, jetstream.FetchMaxWait(fetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Debug("audit consumer: fetching events", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			c.handle(ctx, msg)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg jetstream.Msg) {
	var event inats.AuditEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		slog.Error("audit consumer: unmarshaling event", "error", err)
		_ = msg.Term()
		return
	}

	entry := FromEvent(event)
	if err := c.repo.Insert(ctx, entry); err != nil {
		slog.Error("audit consumer: persisting event", "error", err, "event_type", entry.EventType)
		_ = msg.Nak()
		return
	}
	_ = msg.Ack()

	slog.Debug("audit consumer: persisted event", "event_type", entry.EventType, "user_id", entry.UserID)
}
