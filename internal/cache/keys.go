package cache

import (
	"strconv"
	"strings"
	"time"

	"nof0-refresh/internal/config"
)

// Namespace is the Redis key prefix for the NOF0 application.
const Namespace = "nof0"

// TTLClass represents a config-driven TTL bucket.
type TTLClass string

const (
	TTLShort  TTLClass = "short"
	TTLMedium TTLClass = "medium"
	TTLLong   TTLClass = "long"
)

// TTLSet normalises cache TTLs from config into time.Duration values.
type TTLSet struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// NewTTLSet converts config TTLs (in seconds) into durations.
func NewTTLSet(cfg config.CacheTTL) TTLSet {
	return TTLSet{
		Short:  durationOrDefault(cfg.Short, 10*time.Second),
		Medium: durationOrDefault(cfg.Medium, time.Minute),
		Long:   durationOrDefault(cfg.Long, 5*time.Minute),
	}
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds < 0 {
		return 0
	}
	if seconds == 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Duration returns the configured duration for the given TTL class.
func (t TTLSet) Duration(class TTLClass) time.Duration {
	switch class {
	case TTLShort:
		return t.Short
	case TTLMedium:
		return t.Medium
	case TTLLong:
		return t.Long
	default:
		return 0
	}
}

func formatKey(parts ...string) string {
	values := make([]string, 0, len(parts)+1)
	values = append(values, Namespace)
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		values = append(values, clean)
	}
	return strings.Join(values, ":")
}

// --- Refresh coordination ---------------------------------------------------

// RefreshLockKey scopes a named orchestrator lock (e.g. a snapshot lock).
func RefreshLockKey(name string) string {
	return formatKey("lock", "refresh", name)
}

// UniverseKey caches the active symbol universe of one market provider.
func UniverseKey(provider string) string {
	if strings.TrimSpace(provider) == "" {
		provider = "all"
	}
	return formatKey("refresh", "universe", provider)
}

// RunKey caches a rendered run status payload.
func RunKey(runID int64) string {
	return formatKey("refresh", "run", strconv.FormatInt(runID, 10))
}

// --- TTL Helpers ------------------------------------------------------------

// UniverseTTL keeps the universe fresh enough for the 4h stage.
func UniverseTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLLong)
}

// RunTTL applies to run status payloads served by the status endpoint.
func RunTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLShort)
}

// FormatCacheKey is exported for dynamic key construction when patterns
// are not covered by helpers.
func FormatCacheKey(parts ...string) string {
	return formatKey(parts...)
}
