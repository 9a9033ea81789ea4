package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Discord    DiscordConfig
	XMPP       XMPPConfig
	Access     AccessConfig
	Limits     LimitsConfig
	Models     ModelsConfig
	OpenAI     OpenAIConfig
	Storage    StorageConfig
	DB         DBConfig
	Redis      RedisConfig
	NATS       NATSConfig
	Encryption EncryptionConfig
	Ops        OpsConfig
	Log        LogConfig
}

// DiscordConfig enables the Discord front end when Token is set.
type DiscordConfig struct {
	Token   string `env:"DISCORD_TOKEN"`
	Trigger string `env:"DISCORD_TRIGGER" validate:"required"`
}

// XMPPConfig enables the XMPP component front end when ComponentSecret is set.
// RoleHolders lists the bare JIDs (or room nicknames) that hold the access role.
type XMPPConfig struct {
	ComponentHost   string   `env:"XMPP_COMPONENT_HOST"`
	ComponentPort   int      `env:"XMPP_COMPONENT_PORT" validate:"min=1,max=65535"`
	ComponentName   string   `env:"XMPP_COMPONENT_NAME" validate:"required"`
	ComponentSecret string   `env:"XMPP_COMPONENT_SECRET"`
	Trigger         string   `env:"XMPP_TRIGGER" validate:"required"`
	RoleHolders     []string `env:"XMPP_ROLE_HOLDERS"`
}

func (c XMPPConfig) ComponentAddr() string {
	return fmt.Sprintf("%s:%d", c.ComponentHost, c.ComponentPort)
}

func (c XMPPConfig) Enabled() bool {
	return c.ComponentSecret != ""
}

type AccessConfig struct {
	GuildID string `env:"ACCESS_GUILD_ID" validate:"required"`
	RoleID  string `env:"ACCESS_ROLE_ID" validate:"required"`
}

type LimitsConfig struct {
	RateLimit      int              `env:"LIMITS_RATE_LIMIT" validate:"min=1"`
	Window         time.Duration    `env:"LIMITS_WINDOW" validate:"gt=0"`
	RateBackend    string           `env:"LIMITS_RATE_BACKEND" validate:"oneof=memory redis"`
	DefaultQuota   int64            `env:"LIMITS_DEFAULT_QUOTA" validate:"min=1"`
	QuotaOverrides map[string]int64 `env:"LIMITS_QUOTA_OVERRIDES" validate:"dive,min=1"`
	ResetInterval  time.Duration    `env:"LIMITS_RESET_INTERVAL" validate:"gt=0"`
}

// QuotaFor returns the override for userID, or the default quota.
func (c LimitsConfig) QuotaFor(userID string) int64 {
	if q, ok := c.QuotaOverrides[userID]; ok {
		return q
	}
	return c.DefaultQuota
}

type ModelsConfig struct {
	EconomyModel      string `env:"MODELS_ECONOMY_MODEL" validate:"required"`
	EconomyMaxTokens  int    `env:"MODELS_ECONOMY_MAX_TOKENS" validate:"min=1"`
	StandardModel     string `env:"MODELS_STANDARD_MODEL" validate:"required"`
	StandardMaxTokens int    `env:"MODELS_STANDARD_MAX_TOKENS" validate:"min=1"`
}

type OpenAIConfig struct {
	APIKey  string        `env:"OPENAI_API_KEY" validate:"required"`
	BaseURL string        `env:"OPENAI_BASE_URL" validate:"omitempty,url"`
	Timeout time.Duration `env:"OPENAI_TIMEOUT" validate:"gte=0"`
}

type StorageConfig struct {
	Driver         string `env:"STORAGE_DRIVER" validate:"oneof=file redis postgres"`
	DataDir        string `env:"STORAGE_DATA_DIR"`
	MigrationsPath string `env:"STORAGE_MIGRATIONS_PATH"`
}

type DBConfig struct {
	Host     string `env:"DB_HOST"`
	Port     int    `env:"DB_PORT" validate:"min=1,max=65535"`
	User     string `env:"DB_USER"`
	Password string `env:"DB_PASSWORD"`
	Name     string `env:"DB_NAME"`
	SSLMode  string `env:"DB_SSLMODE"`
	MaxConns int32  `env:"DB_MAX_CONNS" validate:"min=1"`
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string `env:"REDIS_HOST"`
	Port     int    `env:"REDIS_PORT" validate:"min=1,max=65535"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" validate:"min=0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NATSConfig enables audit event publishing when URL is set.
type NATSConfig struct {
	URL string `env:"NATS_URL"`
}

type EncryptionConfig struct {
	Key string `env:"ENCRYPTION_KEY"`
}

// OpsConfig is the listen address for health and metrics. Port 0 disables it.
type OpsConfig struct {
	Host string `env:"OPS_HOST"`
	Port int    `env:"OPS_PORT" validate:"min=0,max=65535"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	Format string `env:"LOG_FORMAT" validate:"oneof=text json"`
}

// envKey maps FOO_BAR to foo.bar for both the .env file and the process environment.
func envKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", "."))
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.ParserEnv("", ".", envKey))

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", envKey), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Discord: DiscordConfig{
			Token:   k.String("discord.token"),
			Trigger: k.String("discord.trigger"),
		},
		XMPP: XMPPConfig{
			ComponentHost:   k.String("xmpp.component.host"),
			ComponentPort:   k.Int("xmpp.component.port"),
			ComponentName:   k.String("xmpp.component.name"),
			ComponentSecret: k.String("xmpp.component.secret"),
			Trigger:         k.String("xmpp.trigger"),
			RoleHolders:     splitList(k.String("xmpp.role.holders")),
		},
		Access: AccessConfig{
			GuildID: k.String("access.guild.id"),
			RoleID:  k.String("access.role.id"),
		},
		Limits: LimitsConfig{
			RateLimit:    k.Int("limits.rate.limit"),
			RateBackend:  k.String("limits.rate.backend"),
			DefaultQuota: k.Int64("limits.default.quota"),
		},
		Models: ModelsConfig{
			EconomyModel:      k.String("models.economy.model"),
			EconomyMaxTokens:  k.Int("models.economy.max.tokens"),
			StandardModel:     k.String("models.standard.model"),
			StandardMaxTokens: k.Int("models.standard.max.tokens"),
		},
		OpenAI: OpenAIConfig{
			APIKey:  k.String("openai.api.key"),
			BaseURL: k.String("openai.base.url"),
		},
		Storage: StorageConfig{
			Driver:         k.String("storage.driver"),
			DataDir:        k.String("storage.data.dir"),
			MigrationsPath: k.String("storage.migrations.path"),
		},
		DB: DBConfig{
			Host:     k.String("db.host"),
			Port:     k.Int("db.port"),
			User:     k.String("db.user"),
			Password: k.String("db.password"),
			Name:     k.String("db.name"),
			SSLMode:  k.String("db.sslmode"),
			MaxConns: int32(k.Int("db.max.conns")),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		Encryption: EncryptionConfig{
			Key: k.String("encryption.key"),
		},
		Ops: OpsConfig{
			Host: k.String("ops.host"),
			Port: k.Int("ops.port"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	cfg.Limits.QuotaOverrides, err = parseQuotaOverrides(k.String("limits.quota.overrides"))
	if err != nil {
		return nil, fmt.Errorf("parsing LIMITS_QUOTA_OVERRIDES: %w", err)
	}

	applyDefaults(cfg, k.Exists("ops.port"))

	// Parse durations
	if cfg.Limits.Window, err = durationOr(k.String("limits.window"), "30s"); err != nil {
		return nil, fmt.Errorf("parsing limits window: %w", err)
	}
	if cfg.Limits.ResetInterval, err = durationOr(k.String("limits.reset.interval"), "24h"); err != nil {
		return nil, fmt.Errorf("parsing limits reset interval: %w", err)
	}
	if cfg.OpenAI.Timeout, err = durationOr(k.String("openai.timeout"), "120s"); err != nil {
		return nil, fmt.Errorf("parsing openai timeout: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config, opsPortSet bool) {
	if cfg.Discord.Trigger == "" {
		cfg.Discord.Trigger = "!o1"
	}
	if cfg.XMPP.ComponentHost == "" {
		cfg.XMPP.ComponentHost = "localhost"
	}
	if cfg.XMPP.ComponentPort == 0 {
		cfg.XMPP.ComponentPort = 5275
	}
	if cfg.XMPP.ComponentName == "" {
		cfg.XMPP.ComponentName = "o1bot.localhost"
	}
	if cfg.XMPP.Trigger == "" {
		cfg.XMPP.Trigger = "!o1"
	}
	if cfg.Limits.RateLimit == 0 {
		cfg.Limits.RateLimit = 10
	}
	if cfg.Limits.RateBackend == "" {
		cfg.Limits.RateBackend = "memory"
	}
	if cfg.Limits.DefaultQuota == 0 {
		cfg.Limits.DefaultQuota = 5000
	}
	if cfg.Models.EconomyModel == "" {
		cfg.Models.EconomyModel = "o1-mini"
	}
	if cfg.Models.EconomyMaxTokens == 0 {
		cfg.Models.EconomyMaxTokens = 2000
	}
	if cfg.Models.StandardModel == "" {
		cfg.Models.StandardModel = "o1-preview"
	}
	if cfg.Models.StandardMaxTokens == 0 {
		cfg.Models.StandardMaxTokens = 5000
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "file"
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "."
	}
	if cfg.Storage.MigrationsPath == "" {
		cfg.Storage.MigrationsPath = "migrations"
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "o1bot"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "o1bot"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 5
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Ops.Host == "" {
		cfg.Ops.Host = "0.0.0.0"
	}
	if cfg.Ops.Port == 0 && !opsPortSet {
		cfg.Ops.Port = 9090
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "debug"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func durationOr(s, fallback string) (time.Duration, error) {
	if s == "" {
		s = fallback
	}
	return time.ParseDuration(s)
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseQuotaOverrides reads "userID:tokens,userID:tokens".
func parseQuotaOverrides(s string) (map[string]int64, error) {
	overrides := make(map[string]int64)
	for _, item := range splitList(s) {
		userID, tokens, ok := strings.Cut(item, ":")
		if !ok || strings.TrimSpace(userID) == "" {
			return nil, fmt.Errorf("entry %q is not user:tokens", item)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(tokens), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", item, err)
		}
		overrides[strings.TrimSpace(userID)] = n
	}
	return overrides, nil
}
