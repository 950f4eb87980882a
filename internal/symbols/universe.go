package symbols

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/cache"

	keys "nof0-refresh/internal/cache"
	"nof0-refresh/pkg/refresh"
)

var _ refresh.Universe = (*CachedUniverse)(nil)

// AssetLister is the slice of the market_assets model the universe needs.
type AssetLister interface {
	ListActiveSymbols(ctx context.Context, provider string) ([]string, error)
}

// CachedUniverse serves the active symbol universe from market_assets,
// cached in Redis so concurrent base-stage snapshots share one query.
type CachedUniverse struct {
	assets   AssetLister
	cache    cache.Cache
	provider string
}

// NewCachedUniverse wires the universe. A nil cache queries Postgres directly.
func NewCachedUniverse(assets AssetLister, c cache.Cache, provider string) (*CachedUniverse, error) {
	if assets == nil {
		return nil, errors.New("symbols: asset lister is required")
	}
	return &CachedUniverse{assets: assets, cache: c, provider: provider}, nil
}

func (u *CachedUniverse) ListActiveSymbols(ctx context.Context) ([]string, error) {
	if u.cache == nil {
		return u.load(ctx)
	}
	var symbols []string
	err := u.cache.TakeWithExpireCtx(ctx, &symbols, keys.UniverseKey(u.provider), func(val any, expire time.Duration) error {
		list, err := u.load(ctx)
		if err != nil {
			return err
		}
		*val.(*[]string) = list
		logx.WithContext(ctx).Debugf("symbols: cached %d universe symbols for %s", len(list), expire)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return symbols, nil
}

func (u *CachedUniverse) load(ctx context.Context) ([]string, error) {
	list, err := u.assets.ListActiveSymbols(ctx, u.provider)
	if err != nil {
		return nil, fmt.Errorf("symbols: universe provider=%q: %w", u.provider, err)
	}
	return refresh.NormalizeSymbols(list), nil
}
