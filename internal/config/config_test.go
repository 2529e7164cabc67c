package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	return cfg
}

func TestDefaultsValidateWithKey(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "bad mode", mutate: func(c *Config) { c.Mode = "trade" }, wantErr: `unknown mode "trade"`},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: "unknown log_level"},
		{name: "no key for server", mutate: func(c *Config) { c.Wallet.PrivateKey = "" }, wantErr: "private_key or encrypted_key_path"},
		{name: "monitor needs no key", mutate: func(c *Config) { c.Wallet.PrivateKey = ""; c.Mode = "monitor" }},
		{name: "password required", mutate: func(c *Config) { c.Wallet.EncryptedKeyPath = "/k.json" }, wantErr: "key_password"},
		{name: "partial venue creds", mutate: func(c *Config) { c.Venue.APIKey = "k" }, wantErr: "must all be set together"},
		{name: "tpsl percent", mutate: func(c *Config) { c.Engine.TPSLDefaultPercent = 100 }, wantErr: "tpsl_default_percent"},
		{name: "leg policy", mutate: func(c *Config) { c.Engine.LegPolicy = "yolo" }, wantErr: "leg_policy"},
		{name: "precision", mutate: func(c *Config) { c.Engine.Precision = 0 }, wantErr: "engine: precision"},
		{name: "pool bounds", mutate: func(c *Config) { c.Postgres.PoolMinConns = 50 }, wantErr: "pool_min_conns"},
		{name: "dsn skips host checks", mutate: func(c *Config) { c.Postgres.DSN = "postgres://x"; c.Postgres.Host = "" }},
		{name: "archive cron", mutate: func(c *Config) { c.Archive.Enabled = true; c.Archive.Cron = "daily" }, wantErr: "5 fields"},
		{name: "server port", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: "server: port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "nope"
	cfg.Redis.Addr = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "redis: addr")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "perpdash.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "full"

[venue]
base_url = "https://gateway.example"
timeout = "3s"
markets = [0, 4]

[engine]
max_scale_orders = 10
leg_policy = "best_effort"

[portfolio]
refresh_interval = "15s"
wallets = ["0xabc"]
`), 0o600))

	t.Setenv("PERPDASH_REDIS_ADDR", "redis:6380")
	t.Setenv("PERPDASH_VENUE_MARKETS", "1, 2,3")
	t.Setenv("PERPDASH_ENGINE_MIN_ORDER_SIZE", "5000")
	t.Setenv("PERPDASH_SERVER_PORT", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, "https://gateway.example", cfg.Venue.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Venue.Timeout.Duration)
	assert.Equal(t, []int{1, 2, 3}, cfg.Venue.Markets)
	assert.Equal(t, 10, cfg.Engine.MaxScaleOrders)
	assert.Equal(t, "best_effort", cfg.Engine.LegPolicy)
	assert.Equal(t, int64(5000), cfg.Engine.MinOrderSize)
	assert.Equal(t, 15*time.Second, cfg.Portfolio.RefreshInterval.Duration)
	assert.Equal(t, []string{"0xabc"}, cfg.Portfolio.Wallets)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, 8000, cfg.Server.Port, "unparsable override is ignored")
	assert.Equal(t, int64(1_000_000), cfg.Engine.Precision, "defaults survive")
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perpdash.toml")
	require.NoError(t, os.WriteFile(path, []byte("[venue]\nbase_ulr = \"typo\"\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "venue.base_ulr")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Venue.APISecret = "s3cret"
	cfg.Postgres.Password = "pw"
	cfg.Server.APIKey = "k"

	out := RedactedConfig(&cfg)
	assert.Equal(t, redacted, out.Wallet.PrivateKey)
	assert.Equal(t, redacted, out.Venue.APISecret)
	assert.Equal(t, redacted, out.Postgres.Password)
	assert.Equal(t, redacted, out.Server.APIKey)
	assert.Empty(t, out.Wallet.KeyPassword, "empty secrets stay empty")

	out.Venue.Markets[0] = 99
	assert.Equal(t, 0, cfg.Venue.Markets[0])
	assert.Equal(t, "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80", cfg.Wallet.PrivateKey)
}
