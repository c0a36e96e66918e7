package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies WAGER_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known WAGER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setStr(&cfg.Engine.Contract, "WAGER_ENGINE_CONTRACT")
	setStr(&cfg.Engine.Admin, "WAGER_ENGINE_ADMIN")
	setStr(&cfg.Engine.Signer, "WAGER_ENGINE_SIGNER")
	setStr(&cfg.Engine.Treasury, "WAGER_ENGINE_TREASURY")
	setStr(&cfg.Engine.TreasuryOwner, "WAGER_ENGINE_TREASURY_OWNER")
	setStr(&cfg.Engine.Escrow, "WAGER_ENGINE_ESCROW")
	setInt(&cfg.Engine.TokenDecimals, "WAGER_ENGINE_TOKEN_DECIMALS")
	setDuration(&cfg.Engine.MaxSignatureAge, "WAGER_ENGINE_MAX_SIGNATURE_AGE")
	setDuration(&cfg.Engine.GuardLockTTL, "WAGER_ENGINE_GUARD_LOCK_TTL")

	// ── Storage ──
	setStr(&cfg.Storage.Driver, "WAGER_STORAGE_DRIVER")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // WAGER_POSTGRES_DSN wins when both are set
	setStr(&cfg.Postgres.DSN, "WAGER_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "WAGER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "WAGER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "WAGER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "WAGER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "WAGER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "WAGER_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "WAGER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "WAGER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "WAGER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "WAGER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "WAGER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "WAGER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "WAGER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "WAGER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "WAGER_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "WAGER_REDIS_KEY_PREFIX")
	setInt(&cfg.Redis.StreamMaxLen, "WAGER_REDIS_STREAM_MAX_LEN")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "WAGER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "WAGER_S3_REGION")
	setStr(&cfg.S3.Bucket, "WAGER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "WAGER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "WAGER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "WAGER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "WAGER_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "WAGER_S3_PREFIX")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "WAGER_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "WAGER_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Archive.Cron, "WAGER_ARCHIVE_CRON")

	// ── Server ──
	setInt(&cfg.Server.Port, "WAGER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "WAGER_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "WAGER_SERVER_API_KEY")
	setDuration(&cfg.Server.WalletWindow, "WAGER_SERVER_WALLET_WINDOW")
	setInt(&cfg.Server.RateLimit, "WAGER_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "WAGER_SERVER_RATE_WINDOW")
	setBool(&cfg.Server.Metrics, "WAGER_SERVER_METRICS")
	setBool(&cfg.Server.WebSocket, "WAGER_SERVER_WEBSOCKET")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "WAGER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "WAGER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "WAGER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Webhooks, "WAGER_NOTIFY_WEBHOOKS")
	setStr(&cfg.Notify.WebhookSecret, "WAGER_NOTIFY_WEBHOOK_SECRET")
	setStringSlice(&cfg.Notify.Events, "WAGER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "WAGER_MODE")
	setStr(&cfg.LogLevel, "WAGER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
