package refresh

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"nof0-refresh/pkg/confkit"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"

	LockerBackendRedis    = "redis"
	LockerBackendPostgres = "postgres"
	LockerBackendMemory   = "memory"

	SourcePostgres = "postgres"
	SourceRedis    = "redis"
	SourceStatic   = "static"

	defaultLockTTL     = 30 * time.Second
	defaultJobQueue    = "nof0:refresh:jobs"
	defaultNotifyQueue = "nof0:refresh:ready"
	defaultWatchlist   = "nof0:refresh:watchlist"
	defaultBlacklist   = "nof0:refresh:blacklist"
)

// DefaultSchedules fires each stage at its own candle boundary.
var DefaultSchedules = map[string]string{
	"4h":  "0 */4 * * *",
	"1h":  "0 * * * *",
	"15m": "*/15 * * * *",
	"5m":  "*/5 * * * *",
	"1m":  "* * * * *",
}

// Config drives how the orchestrator is wired at runtime.
type Config struct {
	Store  string `yaml:"store"`
	Locker string `yaml:"locker"`

	LockTTLRaw string        `yaml:"lock_ttl"`
	LockTTL    time.Duration `yaml:"-"`

	CallbackURL string `yaml:"callback_url"`
	JobQueue    string `yaml:"job_queue"`
	NotifyQueue string `yaml:"notify_queue"`
	AwaitParent bool   `yaml:"await_parent"`

	Universe  SymbolSourceConfig `yaml:"universe"`
	Watchlist SymbolSourceConfig `yaml:"watchlist"`
	Blacklist SymbolSourceConfig `yaml:"blacklist"`

	Schedules  map[string]string `yaml:"schedules"`
	JournalDir string            `yaml:"journal_dir"`
}

// SymbolSourceConfig selects where a symbol list is read from. Key names a
// Redis set, Provider filters the Postgres universe, Symbols feeds "static".
type SymbolSourceConfig struct {
	Source   string   `yaml:"source"`
	Key      string   `yaml:"key"`
	Provider string   `yaml:"provider"`
	Symbols  []string `yaml:"symbols"`
}

// LoadConfig reads the refresh configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open refresh config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// MustLoad reads etc/refresh.yaml from the project root and panics on error.
func MustLoad() *Config {
	cfg, err := LoadConfig(confkit.MustProjectPath("etc/refresh.yaml"))
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadConfigFromReader parses, normalises and validates a Config.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	confkit.LoadDotenvOnce()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read refresh config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal refresh config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalise() error {
	c.Store = strings.ToLower(expand(c.Store))
	c.Locker = strings.ToLower(expand(c.Locker))
	c.LockTTLRaw = expand(c.LockTTLRaw)
	c.CallbackURL = expand(c.CallbackURL)
	c.JobQueue = expand(c.JobQueue)
	c.NotifyQueue = expand(c.NotifyQueue)
	c.JournalDir = expand(c.JournalDir)

	if c.Store == "" {
		c.Store = StoreBackendPostgres
	}
	if c.Locker == "" {
		c.Locker = LockerBackendRedis
	}
	if c.JobQueue == "" {
		c.JobQueue = defaultJobQueue
	}
	if c.NotifyQueue == "" {
		c.NotifyQueue = defaultNotifyQueue
	}

	c.LockTTL = defaultLockTTL
	if c.LockTTLRaw != "" {
		d, err := time.ParseDuration(c.LockTTLRaw)
		if err != nil {
			return fmt.Errorf("refresh config: invalid lock_ttl %q: %w", c.LockTTLRaw, err)
		}
		c.LockTTL = d
	}

	c.Universe.normalise(SourcePostgres, "")
	c.Watchlist.normalise(SourceRedis, defaultWatchlist)
	c.Blacklist.normalise(SourceRedis, defaultBlacklist)

	schedules := make(map[string]string, len(DefaultSchedules))
	for label, expr := range DefaultSchedules {
		schedules[label] = expr
	}
	for label, expr := range c.Schedules {
		tf, err := ParseTimeframe(label)
		if err != nil {
			return fmt.Errorf("refresh config: schedules: %w", err)
		}
		expr = expand(expr)
		if expr == "" {
			delete(schedules, tf.String())
			continue
		}
		schedules[tf.String()] = expr
	}
	c.Schedules = schedules
	return nil
}

func (s *SymbolSourceConfig) normalise(defaultSource, defaultKey string) {
	s.Source = strings.ToLower(expand(s.Source))
	s.Key = expand(s.Key)
	s.Provider = expand(s.Provider)
	s.Symbols = NormalizeSymbols(s.Symbols)
	if s.Source == "" {
		s.Source = defaultSource
	}
	if s.Key == "" {
		s.Key = defaultKey
	}
}

// Validate ensures the configuration is structurally sound.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreBackendPostgres, StoreBackendMemory:
	default:
		return fmt.Errorf("refresh config: unsupported store %q", c.Store)
	}
	switch c.Locker {
	case LockerBackendRedis, LockerBackendPostgres, LockerBackendMemory:
	default:
		return fmt.Errorf("refresh config: unsupported locker %q", c.Locker)
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("refresh config: lock_ttl must be positive, got %s", c.LockTTL)
	}
	if c.CallbackURL == "" {
		return fmt.Errorf("refresh config: callback_url is required")
	}
	if err := c.Universe.validate("universe", SourcePostgres, SourceStatic); err != nil {
		return err
	}
	if err := c.Watchlist.validate("watchlist", SourceRedis, SourceStatic); err != nil {
		return err
	}
	if err := c.Blacklist.validate("blacklist", SourceRedis, SourceStatic); err != nil {
		return err
	}
	for label, expr := range c.Schedules {
		if len(strings.Fields(expr)) < 5 {
			return fmt.Errorf("refresh config: schedule %s: cron expression %q needs five fields", label, expr)
		}
	}
	return nil
}

func (s *SymbolSourceConfig) validate(name string, allowed ...string) error {
	supported := false
	for _, a := range allowed {
		if s.Source == a {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("refresh config: %s has unsupported source %q", name, s.Source)
	}
	if s.Source == SourceRedis && s.Key == "" {
		return fmt.Errorf("refresh config: %s requires key for redis source", name)
	}
	return nil
}

// ScheduleFor returns the cron expression configured for tf.
func (c *Config) ScheduleFor(tf Timeframe) (string, bool) {
	expr, ok := c.Schedules[tf.String()]
	return expr, ok
}

func expand(s string) string {
	return strings.TrimSpace(os.ExpandEnv(s))
}
