// Package config defines the top-level configuration for perpdash and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by PERPDASH_* environment variables.
type Config struct {
	Wallet    WalletConfig    `toml:"wallet"`
	Venue     VenueConfig     `toml:"venue"`
	Engine    EngineConfig    `toml:"engine"`
	Portfolio PortfolioConfig `toml:"portfolio"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Archive   ArchiveConfig   `toml:"archive"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// WalletConfig holds the signing key and the trading account it controls.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
	// Address is the default wallet for API calls and portfolio refreshes.
	// Empty means the signer's address.
	Address    string `toml:"address"`
	Subaccount int    `toml:"subaccount"`
}

// VenueConfig holds the gateway endpoints and API credentials.
type VenueConfig struct {
	BaseURL       string   `toml:"base_url"`
	WsURL         string   `toml:"ws_url"`
	ChainID       int64    `toml:"chain_id"`
	Timeout       duration `toml:"timeout"`
	APIKey        string   `toml:"api_key"`
	APISecret     string   `toml:"api_secret"`
	APIPassphrase string   `toml:"api_passphrase"`
	// Markets lists the market indexes whose oracle prices are streamed.
	Markets []int `toml:"markets"`
}

// EngineConfig holds order-construction and submission parameters. Amounts
// are fixed-point at Precision.
type EngineConfig struct {
	Precision          int64    `toml:"precision"`
	ScaleTolerance     int64    `toml:"scale_tolerance"`
	MaxScaleOrders     int      `toml:"max_scale_orders"`
	MinOrderSize       int64    `toml:"min_order_size"`
	TPSLDefaultPercent int64    `toml:"tpsl_default_percent"`
	LegPolicy          string   `toml:"leg_policy"`
	DedupTTL           duration `toml:"dedup_ttl"`
	CancelTimeout      duration `toml:"cancel_timeout"`
	SubmitRateLimit    int      `toml:"submit_rate_limit"`
	SubmitRateWindow   duration `toml:"submit_rate_window"`
	SubmitLockTTL      duration `toml:"submit_lock_ttl"`
}

// PortfolioConfig holds valuation refresh parameters.
type PortfolioConfig struct {
	RefreshInterval duration `toml:"refresh_interval"`
	BasePrecision   int64    `toml:"base_precision"`
	Wallets         []string `toml:"wallets"`
	SnapshotTTL     duration `toml:"snapshot_ttl"`
	PriceTTL        duration `toml:"price_ttl"`
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	Prefix     string `toml:"prefix"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls moving old rows to cold storage.
type ArchiveConfig struct {
	Enabled       bool   `toml:"enabled"`
	RetentionDays int    `toml:"retention_days"`
	Cron          string `toml:"cron"`
	BatchSize     int    `toml:"batch_size"`
	Prune         bool   `toml:"prune"`
}

// duration wraps time.Duration so TOML strings like "5m" decode.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with the values in config.example.toml.
func Defaults() Config {
	return Config{
		Venue: VenueConfig{
			BaseURL: "http://localhost:8080",
			WsURL:   "ws://localhost:8080/ws",
			ChainID: 1,
			Timeout: duration{10 * time.Second},
			Markets: []int{0, 1, 2},
		},
		Engine: EngineConfig{
			Precision:          1_000_000,
			ScaleTolerance:     1_000,
			MaxScaleOrders:     32,
			MinOrderSize:       0,
			TPSLDefaultPercent: 10,
			LegPolicy:          "all_or_none",
			DedupTTL:           duration{2 * time.Minute},
			CancelTimeout:      duration{10 * time.Second},
			SubmitRateLimit:    5,
			SubmitRateWindow:   duration{time.Second},
			SubmitLockTTL:      duration{30 * time.Second},
		},
		Portfolio: PortfolioConfig{
			RefreshInterval: duration{30 * time.Second},
			BasePrecision:   1_000_000,
			SnapshotTTL:     duration{5 * time.Minute},
			PriceTTL:        duration{time.Minute},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "perpdash",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			Prefix:     "perpdash",
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "perpdash-archive",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Cron:          "0 3 * * *",
			BatchSize:     1000,
			Prune:         true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   60,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"order_set_submitted", "partial_submission", "error"},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"server":  true,
	"monitor": true,
	"full":    true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLegPolicies = map[string]bool{
	"all_or_none": true,
	"best_effort": true,
}

// NeedsSigner reports whether the mode submits orders.
func (c *Config) NeedsSigner() bool {
	m := strings.ToLower(c.Mode)
	return m == "server" || m == "full"
}

// Validate checks Config for invalid or missing values and returns one error
// listing every problem found.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if !validModes[strings.ToLower(c.Mode)] {
		add("unknown mode %q (valid: server, monitor, full)", c.Mode)
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}

	// Wallet
	if c.NeedsSigner() && c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
		add("wallet: either private_key or encrypted_key_path must be set for mode %s", c.Mode)
	}
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		add("wallet: key_password is required when encrypted_key_path is set")
	}
	if c.Wallet.Subaccount < 0 {
		add("wallet: subaccount must be >= 0")
	}

	// Venue
	if c.Venue.BaseURL == "" {
		add("venue: base_url must not be empty")
	}
	if c.Venue.ChainID <= 0 {
		add("venue: chain_id must be positive")
	}
	if c.Venue.Timeout.Duration <= 0 {
		add("venue: timeout must be > 0")
	}
	k, s, p := c.Venue.APIKey != "", c.Venue.APISecret != "", c.Venue.APIPassphrase != ""
	if (k || s || p) && !(k && s && p) {
		add("venue: api_key, api_secret, and api_passphrase must all be set together")
	}
	for _, m := range c.Venue.Markets {
		if m < 0 {
			add("venue: market index %d must be >= 0", m)
		}
	}

	// Engine
	if c.Engine.Precision <= 0 {
		add("engine: precision must be > 0")
	}
	if c.Engine.ScaleTolerance < 0 {
		add("engine: scale_tolerance must be >= 0")
	}
	if c.Engine.MaxScaleOrders < 0 {
		add("engine: max_scale_orders must be >= 0")
	}
	if c.Engine.MinOrderSize < 0 {
		add("engine: min_order_size must be >= 0")
	}
	if c.Engine.TPSLDefaultPercent < 0 || c.Engine.TPSLDefaultPercent >= 100 {
		add("engine: tpsl_default_percent must be in [0, 100), got %d", c.Engine.TPSLDefaultPercent)
	}
	if !validLegPolicies[c.Engine.LegPolicy] {
		add("engine: unknown leg_policy %q (valid: all_or_none, best_effort)", c.Engine.LegPolicy)
	}
	if c.Engine.SubmitRateLimit < 1 {
		add("engine: submit_rate_limit must be >= 1")
	}

	// Portfolio
	if c.Portfolio.BasePrecision <= 0 {
		add("portfolio: base_precision must be > 0")
	}
	if strings.ToLower(c.Mode) != "server" && c.Portfolio.RefreshInterval.Duration <= 0 {
		add("portfolio: refresh_interval must be > 0")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			add("postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			add("postgres: port must be 1-65535, got %d", c.Postgres.Port)
		}
		if c.Postgres.Database == "" {
			add("postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		add("postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		add("postgres: pool_min_conns must be in [0, pool_max_conns]")
	}

	// Redis
	if c.Redis.Addr == "" {
		add("redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		add("redis: pool_size must be >= 1")
	}

	// Archive needs a bucket.
	if c.Archive.Enabled {
		if c.S3.Bucket == "" {
			add("s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			add("archive: retention_days must be >= 1")
		}
		if len(strings.Fields(c.Archive.Cron)) != 5 {
			add("archive: cron %q must have 5 fields", c.Archive.Cron)
		}
	}

	// Server
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		add("server: port must be 1-65535, got %d", c.Server.Port)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
