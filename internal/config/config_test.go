package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	refreshpkg "nof0-refresh/pkg/refresh"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_hydratesRefreshSection(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "refresh.yaml", `
store: memory
locker: memory
callback_url: ${REFRESH_CALLBACK_URL}
universe:
  source: static
  symbols: [BTCUSDT, ETHUSDT]
watchlist:
  source: static
blacklist:
  source: static
`)
	mainPath := writeFile(t, dir, "refresher.yaml", `
Name: refresher
Host: 127.0.0.1
Port: 8899
Env: dev
Refresh:
  File: refresh.yaml
`)
	t.Setenv("REFRESH_CALLBACK_URL", "http://127.0.0.1:8899/refresh/callback")

	cfg, err := Load(mainPath)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, filepath.Join(dir, "refresh.yaml"), cfg.Refresh.File)
	require.NotNil(t, cfg.Refresh.Value)
	assert.Equal(t, refreshpkg.StoreBackendMemory, cfg.Refresh.Value.Store)
	assert.Equal(t, "http://127.0.0.1:8899/refresh/callback", cfg.Refresh.Value.CallbackURL)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Refresh.Value.Universe.Symbols)
	assert.Equal(t, 10, cfg.TTL.Short)
	assert.Equal(t, dir, cfg.BaseDir())
}

func TestLoad_requiresRefreshSection(t *testing.T) {
	dir := t.TempDir()
	mainPath := writeFile(t, dir, "refresher.yaml", "Name: refresher\nHost: 127.0.0.1\nPort: 8899\n")

	_, err := Load(mainPath)
	assert.ErrorContains(t, err, "refresh section is required")
}

func TestValidate_TTLBounds(t *testing.T) {
	cfg := &Config{}
	cfg.TTL.Short = 0
	cfg.TTL.Medium = 60
	cfg.TTL.Long = 300
	assert.ErrorContains(t, cfg.Validate(), "ttl.short")
}

func TestValidate_Env(t *testing.T) {
	cfg := &Config{Env: "staging", TTL: CacheTTL{Short: 1, Medium: 1, Long: 1}}
	assert.Error(t, cfg.Validate())

	cfg.Env = " PROD "
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.IsProd())
}

func TestValidateBackends(t *testing.T) {
	base := func() *Config {
		cfg := &Config{Env: "test"}
		cfg.Refresh.Value = &refreshpkg.Config{
			Store:     refreshpkg.StoreBackendPostgres,
			Locker:    refreshpkg.LockerBackendRedis,
			Universe:  refreshpkg.SymbolSourceConfig{Source: refreshpkg.SourcePostgres},
			Watchlist: refreshpkg.SymbolSourceConfig{Source: refreshpkg.SourceRedis},
			Blacklist: refreshpkg.SymbolSourceConfig{Source: refreshpkg.SourceStatic},
		}
		cfg.Postgres.DSN = "postgres://localhost/nof0"
		cfg.Redis.Host = "127.0.0.1:6379"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "complete", mutate: func(*Config) {}},
		{
			name:    "postgres store without dsn",
			mutate:  func(c *Config) { c.Postgres.DSN = "" },
			wantErr: "postgres store requires",
		},
		{
			name:    "redis locker without host",
			mutate:  func(c *Config) { c.Redis.Host = "" },
			wantErr: "redis locker requires",
		},
		{
			name: "memory store in prod",
			mutate: func(c *Config) {
				c.Env = "prod"
				c.Refresh.Value.Store = refreshpkg.StoreBackendMemory
			},
			wantErr: "not allowed in prod",
		},
		{
			name: "redis watchlist without host",
			mutate: func(c *Config) {
				c.Redis.Host = ""
				c.Refresh.Value.Locker = refreshpkg.LockerBackendPostgres
				c.Refresh.Value.Universe.Source = refreshpkg.SourceStatic
			},
			wantErr: "redis watchlist requires",
		},
		{
			name: "postgres universe without redis cache",
			mutate: func(c *Config) {
				c.Redis.Host = ""
				c.Refresh.Value.Locker = refreshpkg.LockerBackendPostgres
			},
			wantErr: "postgres universe requires redis.host",
		},
		{
			name: "prod without queues",
			mutate: func(c *Config) {
				c.Env = "prod"
				c.Redis.Host = ""
				c.Refresh.Value.Locker = refreshpkg.LockerBackendPostgres
				c.Refresh.Value.Universe.Source = refreshpkg.SourceStatic
				c.Refresh.Value.Watchlist.Source = refreshpkg.SourceStatic
			},
			wantErr: "prod requires redis.host",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.validateBackends()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
