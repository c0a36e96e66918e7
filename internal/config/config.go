// Package config defines the top-level configuration for the wagering engine
// and provides validation helpers.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/parimutuel/internal/domain"
	"github.com/alanyoungcy/parimutuel/internal/pipeline"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by WAGER_* environment variables.
type Config struct {
	Engine   EngineConfig   `toml:"engine"`
	Storage  StorageConfig  `toml:"storage"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// EngineConfig binds the engine to its on-chain style identities.
type EngineConfig struct {
	// Contract is the engine identity included in every settlement digest.
	Contract string `toml:"contract"`
	Admin    string `toml:"admin"`
	Signer   string `toml:"signer"`
	// Treasury receives fees; TreasuryOwner may withdraw them.
	Treasury      string `toml:"treasury"`
	TreasuryOwner string `toml:"treasury_owner"`
	// Escrow is the account holding staked funds.
	Escrow          string   `toml:"escrow"`
	TokenDecimals   int      `toml:"token_decimals"`
	MaxSignatureAge duration `toml:"max_signature_age"`
	GuardLockTTL    duration `toml:"guard_lock_ttl"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Driver is "memory" or "postgres".
	Driver string `toml:"driver"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. Redis is optional; an empty
// Addr disables distributed locks, the notification bus, rate limiting and
// the match cache.
type RedisConfig struct {
	Addr         string `toml:"addr"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"pool_size"`
	MaxRetries   int    `toml:"max_retries"`
	TLSEnabled   bool   `toml:"tls_enabled"`
	KeyPrefix    string `toml:"key_prefix"`
	StreamMaxLen int    `toml:"stream_max_len"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool { return strings.TrimSpace(r.Addr) != "" }

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

// ArchiveConfig controls snapshots of finalized matches to S3.
type ArchiveConfig struct {
	Enabled       bool   `toml:"enabled"`
	RetentionDays int    `toml:"retention_days"`
	Cron          string `toml:"cron"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey, when set, is required on every route except health and metrics.
	APIKey       string   `toml:"api_key"`
	WalletWindow duration `toml:"wallet_window"`
	// RateLimit requests per RateWindow per client IP. Needs Redis.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
	Metrics    bool     `toml:"metrics"`
	WebSocket  bool     `toml:"websocket"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Webhooks          []string `toml:"webhooks"`
	WebhookSecret     string   `toml:"webhook_secret"`
	// Events limits alerts and webhooks to these notification kinds. Empty
	// means every kind.
	Events []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			TokenDecimals:   18,
			MaxSignatureAge: duration{},
			GuardLockTTL:    duration{30 * time.Second},
		},
		Storage: StorageConfig{
			Driver: "memory",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "parimutuel",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			PoolSize:     20,
			MaxRetries:   3,
			KeyPrefix:    "parimutuel:",
			StreamMaxLen: 10000,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "parimutuel-archive",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Cron:          "0 3 1 * *",
		},
		Server: ServerConfig{
			Port:         8000,
			CORSOrigins:  []string{"http://localhost:3000", "http://localhost:5173"},
			WalletWindow: duration{5 * time.Minute},
			RateLimit:    120,
			RateWindow:   duration{time.Minute},
			Metrics:      true,
			WebSocket:    true,
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve":   true,
	"archive": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Address parses a configured account address. Callers should run Validate
// first; unparseable input yields the zero address.
func Address(s string) common.Address {
	if !common.IsHexAddress(s) {
		return common.Address{}
	}
	return common.HexToAddress(s)
}

// NeedsArchive reports whether the configured mode runs the archiver.
func (c *Config) NeedsArchive() bool {
	mode := strings.ToLower(c.Mode)
	return mode == "archive" || (mode == "full" && c.Archive.Enabled)
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, archive, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Engine identities must all be set and non-zero.
	for _, f := range []struct{ name, value string }{
		{"contract", c.Engine.Contract},
		{"admin", c.Engine.Admin},
		{"signer", c.Engine.Signer},
		{"treasury", c.Engine.Treasury},
		{"treasury_owner", c.Engine.TreasuryOwner},
		{"escrow", c.Engine.Escrow},
	} {
		switch {
		case f.value == "":
			errs = append(errs, "engine: "+f.name+" must be set")
		case !common.IsHexAddress(f.value):
			errs = append(errs, fmt.Sprintf("engine: %s %q is not a hex address", f.name, f.value))
		case common.HexToAddress(f.value) == (common.Address{}):
			errs = append(errs, "engine: "+f.name+" must not be the zero address")
		}
	}
	if c.Engine.Escrow != "" && strings.EqualFold(c.Engine.Escrow, c.Engine.Treasury) {
		errs = append(errs, "engine: escrow and treasury must be different accounts")
	}
	if c.Engine.TokenDecimals < 0 || c.Engine.TokenDecimals > 36 {
		errs = append(errs, fmt.Sprintf("engine: token_decimals must be 0-36, got %d", c.Engine.TokenDecimals))
	}
	if c.Engine.MaxSignatureAge.Duration < 0 {
		errs = append(errs, "engine: max_signature_age must be >= 0")
	}
	if c.Engine.GuardLockTTL.Duration <= 0 {
		errs = append(errs, "engine: guard_lock_ttl must be > 0")
	}

	// Storage
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage: unknown driver %q (valid: memory, postgres)", c.Storage.Driver))
	}

	// Redis
	if c.Redis.Enabled() {
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.StreamMaxLen < 0 {
			errs = append(errs, "redis: stream_max_len must be >= 0")
		}
	}

	// Archive needs S3 and a durable store to read finalized matches from.
	if c.NeedsArchive() {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archiving")
		}
		if c.Storage.Driver != "postgres" {
			errs = append(errs, "archive: requires storage.driver = \"postgres\"")
		}
		if c.Archive.RetentionDays < 0 {
			errs = append(errs, "archive: retention_days must be >= 0")
		}
		if strings.ToLower(c.Mode) == "full" {
			if err := pipeline.ValidateCron(c.Archive.Cron); err != nil {
				errs = append(errs, fmt.Sprintf("archive: cron %q: %v", c.Archive.Cron, err))
			}
		}
	}

	// Server
	if strings.ToLower(c.Mode) != "archive" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.WalletWindow.Duration <= 0 {
			errs = append(errs, "server: wallet_window must be > 0")
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}
	for _, hook := range c.Notify.Webhooks {
		if u, err := url.Parse(hook); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("notify: webhook %q is not an http(s) URL", hook))
		}
	}
	if len(c.Notify.Webhooks) > 0 && c.Notify.WebhookSecret == "" {
		errs = append(errs, "notify: webhook_secret is required when webhooks are set")
	}
	for _, ev := range c.Notify.Events {
		if !domain.IsNotificationKind(ev) {
			errs = append(errs, fmt.Sprintf("notify: unknown event %q", ev))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
