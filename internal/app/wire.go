package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/alanyoungcy/perpdash/internal/blob/s3"
	"github.com/alanyoungcy/perpdash/internal/cache/redis"
	"github.com/alanyoungcy/perpdash/internal/config"
	"github.com/alanyoungcy/perpdash/internal/crypto"
	"github.com/alanyoungcy/perpdash/internal/domain"
	"github.com/alanyoungcy/perpdash/internal/metrics"
	"github.com/alanyoungcy/perpdash/internal/notify"
	"github.com/alanyoungcy/perpdash/internal/platform/venue"
	"github.com/alanyoungcy/perpdash/internal/store/postgres"
)

// Dependencies bundles the infrastructure the modes run on. It is built by
// Wire and released by the cleanup function Wire returns.
type Dependencies struct {
	Postgres *postgres.Client
	Redis    *redis.Client
	S3       *s3blob.Client // nil unless archiving is enabled

	// Stores
	OrderSetStore domain.OrderSetStore
	SnapshotStore domain.SnapshotStore
	AuditStore    domain.AuditStore

	// Caches
	PriceCache    domain.PriceCache
	SnapshotCache domain.SnapshotCache
	RateLimiter   domain.RateLimiter
	LockManager   domain.LockManager
	SignalBus     domain.SignalBus

	// Cold storage
	Archiver domain.Archiver // nil unless archiving is enabled

	// Gateway
	Signer *crypto.Signer // nil in read-only modes
	Venue  *venue.Client

	// DefaultWallet is used when a request names none.
	DefaultWallet string

	Metrics  *metrics.Metrics
	Notifier *notify.Notifier
}

// needsArchive reports whether the mode runs the cold-storage job.
func needsArchive(cfg *config.Config) bool {
	return cfg.Archive.Enabled && strings.ToLower(cfg.Mode) == "full"
}

// Wire builds every dependency from cfg. On error everything already opened
// is closed before returning.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(stage string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", stage, err)
	}

	deps := &Dependencies{Metrics: metrics.New()}

	// --- Signer ---
	if cfg.NeedsSigner() {
		key, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			return fail("load key", err)
		}
		signer, err := crypto.NewSigner(key, cfg.Venue.ChainID)
		if err != nil {
			return fail("signer", err)
		}
		deps.Signer = signer
	}
	deps.DefaultWallet = cfg.Wallet.Address
	if deps.DefaultWallet == "" && deps.Signer != nil {
		deps.DefaultWallet = deps.Signer.Address().Hex()
	}

	// --- Venue gateway ---
	var hmac *crypto.HMACAuth
	if cfg.Venue.APIKey != "" {
		hmac = &crypto.HMACAuth{
			Key:        cfg.Venue.APIKey,
			Secret:     cfg.Venue.APISecret,
			Passphrase: cfg.Venue.APIPassphrase,
		}
	}
	deps.Venue = venue.NewClient(cfg.Venue.BaseURL, cfg.Venue.Timeout.Duration, deps.Signer, hmac)

	// --- PostgreSQL ---
	pg, err := postgres.New(ctx, postgres.ClientConfig{
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
		return fail("postgres", err)
	}
	closers = append(closers, pg.Close)
	deps.Postgres = pg

	if cfg.Postgres.RunMigrations {
		if err := pg.RunMigrations(ctx); err != nil {
			return fail("postgres migrations", err)
		}
	}

	pool := pg.Pool()
	orderSets := postgres.NewOrderSetStore(pool)
	snapshots := postgres.NewSnapshotStore(pool)
	deps.OrderSetStore = orderSets
	deps.SnapshotStore = snapshots
	deps.AuditStore = postgres.NewAuditStore(pool)

	// --- Redis ---
	rc, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
		Prefix:     cfg.Redis.Prefix,
	})
	if err != nil {
		return fail("redis", err)
	}
	closers = append(closers, func() { _ = rc.Close() })
	deps.Redis = rc

	deps.PriceCache = redis.NewPriceCache(rc, cfg.Portfolio.PriceTTL.Duration)
	deps.SnapshotCache = redis.NewSnapshotCache(rc, cfg.Portfolio.SnapshotTTL.Duration)
	deps.RateLimiter = redis.NewRateLimiter(rc, cfg.Engine.SubmitRateLimit, cfg.Engine.SubmitRateWindow.Duration)
	deps.LockManager = redis.NewLockManager(rc)
	deps.SignalBus = redis.NewSignalBus(rc)

	// --- S3 cold storage ---
	if needsArchive(cfg) {
		sc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail("s3", err)
		}
		deps.S3 = sc
		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(sc),
			snapshots,
			orderSets,
			deps.AuditStore,
			s3blob.ArchiverConfig{BatchSize: cfg.Archive.BatchSize, Prune: cfg.Archive.Prune},
			logger,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	logger.InfoContext(ctx, "wire: dependencies ready",
		slog.String("default_wallet", deps.DefaultWallet),
		slog.Bool("signer", deps.Signer != nil),
		slog.Bool("archive", deps.Archiver != nil),
		slog.Int("notify_senders", len(senders)),
	)
	return deps, cleanup, nil
}
