package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/parimutuel/internal/blob/s3"
	"github.com/alanyoungcy/parimutuel/internal/cache/redis"
	"github.com/alanyoungcy/parimutuel/internal/config"
	"github.com/alanyoungcy/parimutuel/internal/domain"
	"github.com/alanyoungcy/parimutuel/internal/notify"
	"github.com/alanyoungcy/parimutuel/internal/server/handler"
	"github.com/alanyoungcy/parimutuel/internal/store/memory"
	"github.com/alanyoungcy/parimutuel/internal/store/postgres"
	"github.com/alanyoungcy/parimutuel/internal/vault"
)

// Dependencies bundles the infrastructure the application modes run on. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	Matches  domain.MatchStore
	Stakes   domain.StakeStore
	Claims   domain.ClaimStore
	Audit    domain.AuditStore
	Settings domain.SettingsStore

	// Settlement token
	Ledger    domain.TokenLedger
	Depositor domain.Depositor

	// Redis-backed; nil when Redis is not configured.
	Locks   domain.LockManager
	Bus     domain.SignalBus
	Limiter domain.RateLimiter
	Cache   domain.MatchCache

	// Used wallet signatures; Redis-backed when Redis is configured so
	// replay protection spans instances.
	Nonces domain.NonceStore

	// Blob storage; nil unless the mode archives.
	Archiver domain.Archiver

	// Notifications
	Notifier *notify.Notifier
	Webhooks []*notify.WebhookSender

	// Checks test every external dependency for the health endpoint.
	Checks map[string]handler.Checker
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Checks: map[string]handler.Checker{}}

	// --- Stores and ledger ---
	var (
		pgMatches *postgres.MatchStore
		pgStakes  *postgres.StakeStore
		pgClaims  *postgres.ClaimStore
	)
	switch cfg.Storage.Driver {
	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		pgMatches = postgres.NewMatchStore(pool)
		pgStakes = postgres.NewStakeStore(pool)
		pgClaims = postgres.NewClaimStore(pool)
		deps.Matches = pgMatches
		deps.Stakes = pgStakes
		deps.Claims = pgClaims
		deps.Audit = postgres.NewAuditStore(pool)
		deps.Settings = postgres.NewSettingsStore(pool)

		ledger := postgres.NewLedger(pool)
		deps.Ledger = ledger
		deps.Depositor = ledger
		deps.Checks["postgres"] = pgClient.Health

	default:
		logger.WarnContext(ctx, "using in-memory storage; state is lost on restart")
		db := memory.New()
		deps.Matches = memory.NewMatchStore(db)
		deps.Stakes = memory.NewStakeStore(db)
		deps.Claims = memory.NewClaimStore(db)
		deps.Audit = memory.NewAuditStore(db)
		deps.Settings = memory.NewSettingsStore(db)

		ledger := vault.NewMemoryLedger()
		deps.Ledger = ledger
		deps.Depositor = ledger
	}

	// --- Redis (optional) ---
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Locks = redis.NewLockManager(redisClient)
		deps.Bus = redis.NewSignalBusWithMaxLen(redisClient, int64(cfg.Redis.StreamMaxLen))
		deps.Limiter = redis.NewRateLimiter(redisClient)
		deps.Cache = redis.NewMatchCache(redisClient)
		deps.Nonces = redis.NewNonceStore(redisClient)
		deps.Checks["redis"] = redisClient.Ping
	}

	if deps.Nonces == nil {
		deps.Nonces = memory.NewNonceStore(nil)
	}

	// --- S3 blob storage (only for modes that archive) ---
	if cfg.NeedsArchive() {
		if pgMatches == nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: archive requires postgres storage")
		}
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			Prefix:         cfg.S3.Prefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			s3blob.NewReader(s3Client),
			pgMatches,
			pgStakes,
			pgClaims,
			deps.Audit,
		)
		deps.Checks["s3"] = s3Client.Health
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	for _, url := range cfg.Notify.Webhooks {
		deps.Webhooks = append(deps.Webhooks, notify.NewWebhookSender(url, cfg.Notify.WebhookSecret))
	}

	return deps, cleanup, nil
}
