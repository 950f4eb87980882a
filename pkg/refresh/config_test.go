package refresh_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nof0-refresh/pkg/refresh"
)

func TestLoadRefreshConfig(t *testing.T) {
	t.Setenv("REFRESH_CALLBACK", "http://refresher:8888/refresh/callback")
	dir := t.TempDir()
	configYAML := `
store: Postgres
locker: redis
lock_ttl: 45s
callback_url: ${REFRESH_CALLBACK}
await_parent: true
universe:
  source: postgres
  provider: hyperliquid
watchlist:
  source: static
  symbols: [btcusdt, ETHUSDT, btcusdt]
blacklist:
  key: nof0:test:blacklist
schedules:
  15M: "1-59/15 * * * *"
  1m: ""
journal_dir: /tmp/refresh-journal
`
	path := filepath.Join(dir, "refresh.yaml")
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := refresh.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, refresh.StoreBackendPostgres, cfg.Store)
	assert.Equal(t, refresh.LockerBackendRedis, cfg.Locker)
	assert.Equal(t, 45*time.Second, cfg.LockTTL)
	assert.Equal(t, "http://refresher:8888/refresh/callback", cfg.CallbackURL)
	assert.True(t, cfg.AwaitParent)
	assert.Equal(t, "nof0:refresh:jobs", cfg.JobQueue)
	assert.Equal(t, "nof0:refresh:ready", cfg.NotifyQueue)

	assert.Equal(t, "hyperliquid", cfg.Universe.Provider)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Watchlist.Symbols)
	assert.Equal(t, refresh.SourceRedis, cfg.Blacklist.Source)
	assert.Equal(t, "nof0:test:blacklist", cfg.Blacklist.Key)

	expr, ok := cfg.ScheduleFor(refresh.TF15m)
	require.True(t, ok)
	assert.Equal(t, "1-59/15 * * * *", expr)
	expr, ok = cfg.ScheduleFor(refresh.TF4h)
	require.True(t, ok)
	assert.Equal(t, "0 */4 * * *", expr)
	_, ok = cfg.ScheduleFor(refresh.TF1m)
	assert.False(t, ok, "an empty expression disables the stage")
}

func TestRefreshConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing callback",
			yaml:    "store: memory\n",
			wantErr: "callback_url",
		},
		{
			name:    "unknown store",
			yaml:    "store: mysql\ncallback_url: http://x\n",
			wantErr: "unsupported store",
		},
		{
			name:    "unknown locker",
			yaml:    "locker: zookeeper\ncallback_url: http://x\n",
			wantErr: "unsupported locker",
		},
		{
			name:    "bad ttl",
			yaml:    "lock_ttl: soon\ncallback_url: http://x\n",
			wantErr: "lock_ttl",
		},
		{
			name:    "universe from redis",
			yaml:    "callback_url: http://x\nuniverse:\n  source: redis\n",
			wantErr: "universe has unsupported source",
		},
		{
			name:    "unknown schedule stage",
			yaml:    "callback_url: http://x\nschedules:\n  1d: \"0 0 * * *\"\n",
			wantErr: "unknown timeframe",
		},
		{
			name:    "short cron",
			yaml:    "callback_url: http://x\nschedules:\n  5m: \"*/5 *\"\n",
			wantErr: "five fields",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := refresh.LoadConfigFromReader(strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
