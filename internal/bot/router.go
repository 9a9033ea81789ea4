// Package bot routes parsed chat commands through admission control to the
// user store or the completion provider and sends the replies.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aiox-platform/o1bot/internal/chunk"
	"github.com/aiox-platform/o1bot/internal/completion"
	"github.com/aiox-platform/o1bot/internal/config"
	"github.com/aiox-platform/o1bot/internal/governance"
	"github.com/aiox-platform/o1bot/internal/governance/quota"
	"github.com/aiox-platform/o1bot/internal/metrics"
	inats "github.com/aiox-platform/o1bot/internal/nats"
	"github.com/aiox-platform/o1bot/internal/users"
)

// AuditPublisher receives audit events. Publishing is best effort.
type AuditPublisher interface {
	PublishAuditEvent(ctx context.Context, event inats.AuditEvent) error
}

// Deps holds the Router's collaborators, built once in main.
type Deps struct {
	Quota     *quota.Service
	Access    governance.AccessPolicy
	Users     *users.Service
	Provider  completion.Provider
	Estimator completion.Estimator
	Models    config.ModelsConfig
	Audit     AuditPublisher
}

type Router struct {
	quota     *quota.Service
	access    governance.AccessPolicy
	users     *users.Service
	provider  completion.Provider
	estimator completion.Estimator
	models    config.ModelsConfig
	audit     AuditPublisher
}

func NewRouter(d Deps) *Router {
	r := &Router{
		quota:     d.Quota,
		access:    d.Access,
		users:     d.Users,
		provider:  d.Provider,
		estimator: d.Estimator,
		models:    d.Models,
		audit:     d.Audit,
	}
	if r.estimator == nil {
		r.estimator = completion.HeuristicEstimator{}
	}
	if r.audit == nil {
		r.audit = inats.Discard{}
	}
	return r
}

// Handle runs one command to completion. Every reply, including failure
// notices, goes to cmd.ChannelID through out.
func (r *Router) Handle(ctx context.Context, cmd Command, out Sender) {
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}

	outcome := "ok"
	err := r.dispatch(ctx, cmd, out)
	switch {
	case err == nil:
	case errors.Is(err, errIgnored):
		outcome = "ignored"
	default:
		var ce *CommandError
		if !errors.As(err, &ce) {
			slog.Error("command failed", "command_id", cmd.ID, "command", cmd.Kind, "user_id", cmd.Caller.UserID, "error", err)
			ce = ErrInternal
		}
		outcome = string(ce.Kind)
		r.send(ctx, out, cmd, ce.Reply(cmd.Trigger))
	}

	metrics.CommandsTotal.WithLabelValues(string(cmd.Kind), outcome).Inc()
	slog.Debug("command handled", "command_id", cmd.ID, "command", cmd.Kind, "user_id", cmd.Caller.UserID, "outcome", outcome)
}

func (r *Router) dispatch(ctx context.Context, cmd Command, out Sender) error {
	if err := r.admit(ctx, cmd); err != nil {
		return err
	}

	switch cmd.Kind {
	case CommandStatus:
		return r.showStatus(ctx, cmd, out)
	case CommandHelp:
		r.send(ctx, out, cmd, helpMessage(cmd.Trigger))
		return nil
	case CommandPrompt:
		return r.setPrompt(ctx, cmd, out)
	case CommandReset:
		return r.resetPrompt(ctx, cmd, out)
	case CommandMode:
		return r.setMode(ctx, cmd, out)
	case CommandUsage:
		r.send(ctx, out, cmd, usageMessage(r.quota.Status(cmd.Caller.UserID)))
		return nil
	case CommandGenerate:
		return r.generate(ctx, cmd, out)
	default:
		return fmt.Errorf("unknown command kind %q", cmd.Kind)
	}
}

// admit applies the checks shared by every command: the rate limit first,
// then the origin and role.
func (r *Router) admit(ctx context.Context, cmd Command) error {
	if err := r.quota.Admit(ctx, cmd.Caller.UserID); err != nil {
		r.publish(ctx, cmd, inats.EventRateLimited, "warn", func(e *inats.AuditEvent) {
			e.Details = err.Error()
		})
		return ErrRateLimited.With(err)
	}

	switch r.access.Check(cmd.Caller) {
	case governance.AccessIgnored:
		return errIgnored
	case governance.AccessDenied:
		slog.Info("caller lacks required role", "user_id", cmd.Caller.UserID, "command", cmd.Kind)
		r.publish(ctx, cmd, inats.EventAccessDenied, "warn", nil)
		return ErrAccessDenied
	}
	return nil
}

func (r *Router) showStatus(ctx context.Context, cmd Command, out Sender) error {
	u, err := r.users.Get(cmd.Caller.UserID)
	if err != nil {
		return fmt.Errorf("loading user config: %w", err)
	}
	if !u.HasPrompt() {
		r.send(ctx, out, cmd, helpMessage(cmd.Trigger))
		return nil
	}
	r.send(ctx, out, cmd, statusMessage(cmd.Trigger, u))
	return nil
}

func (r *Router) setPrompt(ctx context.Context, cmd Command, out Sender) error {
	err := r.users.SetPrompt(ctx, cmd.Caller.UserID, cmd.Args)
	if errors.Is(err, users.ErrEmptyPrompt) {
		return ErrInvalidUsage
	}
	if err != nil {
		return fmt.Errorf("setting prompt: %w", err)
	}
	slog.Info("prompt set", "user_id", cmd.Caller.UserID)
	r.send(ctx, out, cmd, promptSetMessage(cmd.Trigger, strings.TrimSpace(cmd.Args)))
	return nil
}

func (r *Router) resetPrompt(ctx context.Context, cmd Command, out Sender) error {
	existed, err := r.users.ClearPrompt(ctx, cmd.Caller.UserID)
	if err != nil {
		return fmt.Errorf("clearing prompt: %w", err)
	}
	if !existed {
		return ErrPromptNotSet
	}
	slog.Info("prompt reset", "user_id", cmd.Caller.UserID)
	r.send(ctx, out, cmd, promptResetMessage(cmd.Trigger))
	return nil
}

func (r *Router) setMode(ctx context.Context, cmd Command, out Sender) error {
	mode, err := r.users.SetMode(ctx, cmd.Caller.UserID, cmd.Args)
	if errors.Is(err, users.ErrInvalidMode) {
		return ErrInvalidMode
	}
	if err != nil {
		return fmt.Errorf("setting mode: %w", err)
	}
	slog.Info("mode set", "user_id", cmd.Caller.UserID, "mode", mode)
	r.send(ctx, out, cmd, modeSetMessage(mode))
	return nil
}

// generate checks the quota and the stored prompt, reserves an estimate,
// calls the provider outside any lock and charges the reported total.
func (r *Router) generate(ctx context.Context, cmd Command, out Sender) error {
	userID := cmd.Caller.UserID

	if err := r.quota.CheckQuota(userID); err != nil {
		r.publish(ctx, cmd, inats.EventQuotaExceeded, "warn", func(e *inats.AuditEvent) {
			e.Details = err.Error()
		})
		return ErrQuotaExceeded.With(err)
	}

	u, err := r.users.Get(userID)
	if err != nil {
		return fmt.Errorf("loading user config: %w", err)
	}
	if !u.HasPrompt() {
		return ErrNoPrompt
	}

	model, maxTokens := r.modelFor(u.Mode)
	prompt := u.Prompt + "\n" + cmd.Args

	reservation, err := r.quota.Reserve(userID, r.estimator.Estimate(model, prompt))
	if err != nil {
		r.publish(ctx, cmd, inats.EventQuotaExceeded, "warn", func(e *inats.AuditEvent) {
			e.Details = err.Error()
		})
		return ErrQuotaExceeded.With(err)
	}

	r.send(ctx, out, cmd, processingMessage())

	start := time.Now()
	result, err := r.provider.Complete(ctx, completion.Request{
		Model:           model,
		Prompt:          prompt,
		MaxOutputTokens: maxTokens,
	})
	if err != nil {
		r.quota.Release(reservation)
		metrics.ProviderRequestDuration.WithLabelValues(model, "error").Observe(time.Since(start).Seconds())
		slog.Error("completion failed", "command_id", cmd.ID, "user_id", userID, "model", model, "error", err)
		r.publish(ctx, cmd, inats.EventProviderFailed, "error", func(e *inats.AuditEvent) {
			e.Model = model
			e.Details = err.Error()
		})
		return ErrProviderFailure.With(err)
	}
	metrics.ProviderRequestDuration.WithLabelValues(model, "ok").Observe(time.Since(start).Seconds())

	total := int64(result.Usage.TotalTokens)
	if err := r.quota.Record(ctx, reservation, total); err != nil {
		// The in-memory credit stands; the next persist retries the write.
		slog.Error("recording usage", "user_id", userID, "tokens", total, "error", err)
	}
	metrics.TokensConsumedTotal.WithLabelValues(string(u.Mode)).Add(float64(total))
	r.publish(ctx, cmd, inats.EventUsageRecorded, "info", func(e *inats.AuditEvent) {
		e.Model = result.Model
		e.Tokens = total
	})
	slog.Info("response generated", "command_id", cmd.ID, "user_id", userID, "mode", u.Mode, "tokens", total)

	footer := usageFooter(result.Usage)
	for _, part := range chunk.Split(result.Text, chunk.MaxLength) {
		r.send(ctx, out, cmd, responseMessage(part, footer))
	}
	return nil
}

func (r *Router) modelFor(mode users.Mode) (string, int) {
	if mode == users.ModeStandard {
		return r.models.StandardModel, r.models.StandardMaxTokens
	}
	return r.models.EconomyModel, r.models.EconomyMaxTokens
}

func (r *Router) send(ctx context.Context, out Sender, cmd Command, msg Message) {
	if err := out.Send(ctx, cmd.ChannelID, msg); err != nil {
		slog.Error("sending reply", "command_id", cmd.ID, "channel_id", cmd.ChannelID, "error", err)
	}
}

func (r *Router) publish(ctx context.Context, cmd Command, eventType, severity string, fill func(*inats.AuditEvent)) {
	event := inats.NewAuditEvent(eventType, severity)
	event.UserID = cmd.Caller.UserID
	event.Command = string(cmd.Kind)
	if fill != nil {
		fill(&event)
	}
	if err := r.audit.PublishAuditEvent(ctx, event); err != nil {
		slog.Warn("publishing audit event", "event_type", eventType, "error", err)
	}
}
