package cli

import (
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"nof0-refresh/internal/config"
	refreshpkg "nof0-refresh/pkg/refresh"
)

// ConfigSummaryLines returns human readable lines describing the loaded config.
func ConfigSummaryLines(cfg *config.Config) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}

	lines := []string{
		fmt.Sprintf("Environment: %s", cfg.Env),
		fmt.Sprintf("Listen: %s:%d", cfg.Host, cfg.Port),
		fmt.Sprintf("Postgres: %s", presence(cfg.Postgres.DSN != "")),
		fmt.Sprintf("Redis: %s", presence(strings.TrimSpace(cfg.Redis.Host) != "")),
		fmt.Sprintf("TTL (short/medium/long): %ds / %ds / %ds", cfg.TTL.Short, cfg.TTL.Medium, cfg.TTL.Long),
		fmt.Sprintf("Refresh config: %s", cfg.Refresh.Describe()),
	}

	rc := cfg.Refresh.Value
	if rc == nil {
		return lines
	}
	lines = append(lines,
		fmt.Sprintf("Refresh backends: store=%s locker=%s lock_ttl=%s", rc.Store, rc.Locker, rc.LockTTL),
		fmt.Sprintf("Refresh queues: jobs=%s ready=%s", rc.JobQueue, rc.NotifyQueue),
		sourceLine("Universe", rc.Universe),
		sourceLine("Watchlist", rc.Watchlist),
		sourceLine("Blacklist", rc.Blacklist),
		fmt.Sprintf("Await parent: %t", rc.AwaitParent),
		fmt.Sprintf("Schedules: %s", scheduleLine(rc)),
	)
	if rc.JournalDir != "" {
		lines = append(lines, fmt.Sprintf("Journal: %s", rc.JournalDir))
	}
	return lines
}

// LogConfigSummary emits the configuration summary using logx.
func LogConfigSummary(cfg *config.Config) {
	lines := ConfigSummaryLines(cfg)
	if len(lines) == 0 {
		return
	}
	logx.Info("configuration summary")
	for _, line := range lines {
		logx.Infof("config • %s", line)
	}
}

func presence(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func sourceLine(name string, src refreshpkg.SymbolSourceConfig) string {
	switch src.Source {
	case refreshpkg.SourceStatic:
		return fmt.Sprintf("%s: static (%d symbols)", name, len(src.Symbols))
	case refreshpkg.SourceRedis:
		return fmt.Sprintf("%s: redis set %s", name, src.Key)
	default:
		provider := src.Provider
		if provider == "" {
			provider = "all providers"
		}
		return fmt.Sprintf("%s: %s (%s)", name, src.Source, provider)
	}
}

func scheduleLine(rc *refreshpkg.Config) string {
	parts := make([]string, 0, len(rc.Schedules))
	for _, tf := range refreshpkg.Timeframes() {
		if expr, ok := rc.ScheduleFor(tf); ok {
			parts = append(parts, fmt.Sprintf("%s=%q", tf, expr))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}
