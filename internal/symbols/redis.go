package symbols

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/zeromicro/go-zero/core/stores/redis"

	"nof0-refresh/pkg/refresh"
)

var (
	_ refresh.Blacklist = (*RedisBlacklist)(nil)
	_ refresh.Watchlist = (*RedisWatchlist)(nil)
)

// RedisBlacklist reads exclusions from a Redis set maintained by operators.
type RedisBlacklist struct {
	store *redis.Redis
	key   string
}

func NewRedisBlacklist(store *redis.Redis, key string) (*RedisBlacklist, error) {
	if store == nil {
		return nil, errors.New("symbols: redis store is required")
	}
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("symbols: blacklist key is required")
	}
	return &RedisBlacklist{store: store, key: key}, nil
}

func (b *RedisBlacklist) IsBlacklisted(ctx context.Context, symbol string) (bool, error) {
	ok, err := b.store.SismemberCtx(ctx, b.key, strings.ToUpper(strings.TrimSpace(symbol)))
	if err != nil {
		return false, fmt.Errorf("symbols: blacklist lookup %s: %w", symbol, err)
	}
	return ok, nil
}

// RedisWatchlist reads the cached watchlist from a Redis set.
type RedisWatchlist struct {
	store *redis.Redis
	key   string
}

func NewRedisWatchlist(store *redis.Redis, key string) (*RedisWatchlist, error) {
	if store == nil {
		return nil, errors.New("symbols: redis store is required")
	}
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("symbols: watchlist key is required")
	}
	return &RedisWatchlist{store: store, key: key}, nil
}

// ListCachedWatchlist returns the set members normalised and sorted.
func (w *RedisWatchlist) ListCachedWatchlist(ctx context.Context) ([]string, error) {
	members, err := w.store.SmembersCtx(ctx, w.key)
	if err != nil {
		return nil, fmt.Errorf("symbols: watchlist %s: %w", w.key, err)
	}
	out := refresh.NormalizeSymbols(members)
	sort.Strings(out)
	return out, nil
}
