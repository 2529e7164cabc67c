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

// envPrefix namespaces every override variable.
const envPrefix = "PERPDASH_"

// Load decodes the TOML file at path over Defaults, loads a .env file when
// present, and applies PERPDASH_* overrides. An empty path skips the file.
// The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
		}
	}

	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides overwrites fields whose PERPDASH_* variable is set and
// parses. Secrets are usually injected this way.
func applyEnvOverrides(cfg *Config) {
	// Wallet
	setStr(&cfg.Wallet.PrivateKey, "WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "WALLET_KEY_PASSWORD")
	setStr(&cfg.Wallet.Address, "WALLET_ADDRESS")
	setInt(&cfg.Wallet.Subaccount, "WALLET_SUBACCOUNT")

	// Venue
	setStr(&cfg.Venue.BaseURL, "VENUE_BASE_URL")
	setStr(&cfg.Venue.WsURL, "VENUE_WS_URL")
	setInt64(&cfg.Venue.ChainID, "VENUE_CHAIN_ID")
	setDuration(&cfg.Venue.Timeout, "VENUE_TIMEOUT")
	setStr(&cfg.Venue.APIKey, "VENUE_API_KEY")
	setStr(&cfg.Venue.APISecret, "VENUE_API_SECRET")
	setStr(&cfg.Venue.APIPassphrase, "VENUE_API_PASSPHRASE")
	setIntSlice(&cfg.Venue.Markets, "VENUE_MARKETS")

	// Engine
	setInt64(&cfg.Engine.Precision, "ENGINE_PRECISION")
	setInt64(&cfg.Engine.ScaleTolerance, "ENGINE_SCALE_TOLERANCE")
	setInt(&cfg.Engine.MaxScaleOrders, "ENGINE_MAX_SCALE_ORDERS")
	setInt64(&cfg.Engine.MinOrderSize, "ENGINE_MIN_ORDER_SIZE")
	setInt64(&cfg.Engine.TPSLDefaultPercent, "ENGINE_TPSL_DEFAULT_PERCENT")
	setStr(&cfg.Engine.LegPolicy, "ENGINE_LEG_POLICY")
	setDuration(&cfg.Engine.DedupTTL, "ENGINE_DEDUP_TTL")
	setDuration(&cfg.Engine.CancelTimeout, "ENGINE_CANCEL_TIMEOUT")
	setInt(&cfg.Engine.SubmitRateLimit, "ENGINE_SUBMIT_RATE_LIMIT")
	setDuration(&cfg.Engine.SubmitRateWindow, "ENGINE_SUBMIT_RATE_WINDOW")
	setDuration(&cfg.Engine.SubmitLockTTL, "ENGINE_SUBMIT_LOCK_TTL")

	// Portfolio
	setDuration(&cfg.Portfolio.RefreshInterval, "PORTFOLIO_REFRESH_INTERVAL")
	setInt64(&cfg.Portfolio.BasePrecision, "PORTFOLIO_BASE_PRECISION")
	setStringSlice(&cfg.Portfolio.Wallets, "PORTFOLIO_WALLETS")
	setDuration(&cfg.Portfolio.SnapshotTTL, "PORTFOLIO_SNAPSHOT_TTL")
	setDuration(&cfg.Portfolio.PriceTTL, "PORTFOLIO_PRICE_TTL")

	// Postgres
	setStr(&cfg.Postgres.DSN, "POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL")
	setStr(&cfg.Postgres.Host, "POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "POSTGRES_RUN_MIGRATIONS")

	// Redis
	setStr(&cfg.Redis.Addr, "REDIS_ADDR")
	setStr(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.Prefix, "REDIS_PREFIX")

	// S3
	setStr(&cfg.S3.Endpoint, "S3_ENDPOINT")
	setStr(&cfg.S3.Region, "S3_REGION")
	setStr(&cfg.S3.Bucket, "S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "S3_FORCE_PATH_STYLE")

	// Archive
	setBool(&cfg.Archive.Enabled, "ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Archive.Cron, "ARCHIVE_CRON")
	setInt(&cfg.Archive.BatchSize, "ARCHIVE_BATCH_SIZE")
	setBool(&cfg.Archive.Prune, "ARCHIVE_PRUNE")

	// Server
	setBool(&cfg.Server.Enabled, "SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "SERVER_RATE_WINDOW")

	// Notify
	setStr(&cfg.Notify.TelegramToken, "NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "NOTIFY_EVENTS")

	setStr(&cfg.Mode, "MODE")
	setStr(&cfg.LogLevel, "LOG_LEVEL")
}

// Each helper mutates dst only when the variable is set and parses.

func lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(envPrefix + key))
	return v, v != ""
}

func setStr(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := lookup(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v, ok := lookup(key); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v, ok := lookup(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setStringSlice(dst *[]string, key string) {
	if v, ok := lookup(key); ok {
		if parts := splitList(v); len(parts) > 0 {
			*dst = parts
		}
	}
}

// setIntSlice leaves dst untouched if any element fails to parse.
func setIntSlice(dst *[]int, key string) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	parts := splitList(v)
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return
		}
		out = append(out, n)
	}
	if len(out) > 0 {
		*dst = out
	}
}
