package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/aiox-platform/o1bot/internal/api"
	"github.com/aiox-platform/o1bot/internal/bot"
	"github.com/aiox-platform/o1bot/internal/completion"
	"github.com/aiox-platform/o1bot/internal/config"
	"github.com/aiox-platform/o1bot/internal/database"
	"github.com/aiox-platform/o1bot/internal/discord"
	"github.com/aiox-platform/o1bot/internal/governance"
	auditlog "github.com/aiox-platform/o1bot/internal/governance/audit"
	"github.com/aiox-platform/o1bot/internal/governance/quota"
	"github.com/aiox-platform/o1bot/internal/metrics"
	inats "github.com/aiox-platform/o1bot/internal/nats"
	iredis "github.com/aiox-platform/o1bot/internal/redis"
	"github.com/aiox-platform/o1bot/internal/secrets"
	"github.com/aiox-platform/o1bot/internal/server"
	"github.com/aiox-platform/o1bot/internal/storage"
	"github.com/aiox-platform/o1bot/internal/users"
	ixmpp "github.com/aiox-platform/o1bot/internal/xmpp"
)

// persistTimeout bounds the final ledger and user store writes on shutdown.
const persistTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("bot stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("bot stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	checks := map[string]api.Check{}

	// Redis: shared rate window and/or document storage
	var redisClient *goredis.Client
	if cfg.Storage.Driver == "redis" || cfg.Limits.RateBackend == "redis" {
		client, err := iredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer client.Close()
		redisClient = client
		checks["redis"] = iredis.Pinger(client)
	}

	// PostgreSQL: document storage
	var pool *pgxpool.Pool
	if cfg.Storage.Driver == "postgres" {
		p, err := database.Open(ctx, cfg.DB, cfg.Storage.MigrationsPath)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer p.Close()
		pool = p
		checks["database"] = database.Pinger(p)
	}

	userStore, usageStore := openStores(cfg.Storage, redisClient, pool)

	// NATS: audit events
	var audit bot.AuditPublisher = inats.Discard{}
	var natsClient *inats.Client
	if cfg.NATS.URL != "" {
		c, err := inats.NewClient(ctx, cfg.NATS)
		if err != nil {
			return fmt.Errorf("connecting to nats: %w", err)
		}
		defer c.Close()
		natsClient = c
		audit = inats.NewPublisher(c.JetStream())
		checks["nats"] = c.Ping
	}

	// User store
	var sealer *secrets.Sealer
	if cfg.Encryption.Key != "" {
		s, err := secrets.NewSealer(cfg.Encryption.Key)
		if err != nil {
			return fmt.Errorf("creating prompt sealer: %w", err)
		}
		sealer = s
	}
	userSvc := users.NewService(userStore, sealer)
	if err := userSvc.Load(ctx); err != nil {
		return err
	}

	// Usage ledger and admission control
	ledger := quota.NewLedger(usageStore)
	if err := ledger.Load(ctx); err != nil {
		return err
	}

	var limiter quota.Limiter = quota.NewMemoryLimiter(cfg.Limits.RateLimit, cfg.Limits.Window)
	if cfg.Limits.RateBackend == "redis" {
		limiter = quota.NewRedisLimiter(redisClient, cfg.Limits.RateLimit, cfg.Limits.Window)
	}

	scheduler := quota.NewResetScheduler(ledger, cfg.Limits.ResetInterval, func(ctx context.Context, err error) {
		result := "ok"
		if err != nil {
			result = "persist_failed"
		}
		metrics.LedgerResetsTotal.WithLabelValues(result).Inc()

		event := inats.NewAuditEvent(inats.EventUsageReset, "info")
		if err != nil {
			event.Severity = "error"
			event.Details = err.Error()
		}
		if pubErr := audit.PublishAuditEvent(ctx, event); pubErr != nil {
			slog.Warn("publishing reset event", "error", pubErr)
		}
	})
	quotaSvc := quota.NewService(limiter, ledger, cfg.Limits).WithResetClock(scheduler.NextReset)

	router := bot.NewRouter(bot.Deps{
		Quota:     quotaSvc,
		Access:    governance.NewAccessPolicy(cfg.Access.GuildID, cfg.Access.RoleID),
		Users:     userSvc,
		Provider:  completion.NewOpenAIProvider(cfg.OpenAI),
		Estimator: completion.NewTokenEstimator(),
		Models:    cfg.Models,
		Audit:     audit,
	})

	g, gctx := errgroup.WithContext(ctx)
	scheduler.Start(gctx)

	if cfg.Discord.Token != "" {
		gateway, err := discord.New(cfg.Discord, router)
		if err != nil {
			return err
		}
		g.Go(func() error { return gateway.Run(gctx) })
	}

	if cfg.XMPP.Enabled() {
		handler := ixmpp.NewHandler(cfg.XMPP, cfg.Access.RoleID, router)
		component, err := ixmpp.NewComponent(cfg.XMPP, handler)
		if err != nil {
			return fmt.Errorf("creating XMPP component: %w", err)
		}
		g.Go(func() error { return component.Run(gctx) })
	}

	// Audit trail: persist published events when both NATS and Postgres are in use
	if natsClient != nil && pool != nil {
		consumer := auditlog.NewConsumer(auditlog.NewRepository(pool), natsClient, inats.SubjectAuditEvent)
		g.Go(func() error { return consumer.Run(gctx) })
	}

	if cfg.Ops.Port > 0 {
		srv := server.New(cfg.Ops, api.NewRouter(checks))
		g.Go(func() error { return srv.Run(gctx) })
	}

	slog.Info("bot started",
		"storage", cfg.Storage.Driver,
		"rate_backend", cfg.Limits.RateBackend,
		"discord", cfg.Discord.Token != "",
		"xmpp", cfg.XMPP.Enabled(),
	)

	runErr := g.Wait()

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	return errors.Join(runErr, ledger.Persist(persistCtx), userSvc.Persist(persistCtx))
}

func openStores(cfg config.StorageConfig, rdb *goredis.Client, pool *pgxpool.Pool) (storage.Store[users.Record], storage.Store[int64]) {
	switch cfg.Driver {
	case "redis":
		return storage.NewRedisStore[users.Record](rdb, "o1bot:users"),
			storage.NewRedisStore[int64](rdb, "o1bot:usage")
	case "postgres":
		return storage.NewPostgresStore[users.Record](pool, "users"),
			storage.NewPostgresStore[int64](pool, "usage")
	default:
		return storage.NewFileStore[users.Record](filepath.Join(cfg.DataDir, "users.json")),
			storage.NewFileStore[int64](filepath.Join(cfg.DataDir, "usage.json"))
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelDebug
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
