package assetspersist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/zeromicro/go-zero/core/logx"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "nof0-refresh/internal/cache"
	"nof0-refresh/pkg/refresh"
)

// Service maintains the market_assets rows the base-stage universe reads.
type Service struct {
	sqlConn sqlx.SqlConn
	cache   gocache.Cache
}

// Config enumerates dependencies required to maintain market assets.
type Config struct {
	SQLConn sqlx.SqlConn
	Cache   gocache.Cache
}

// NewService wires the asset service. Cache is optional.
func NewService(cfg Config) (*Service, error) {
	if cfg.SQLConn == nil {
		return nil, errors.New("assetspersist: sql connection is required")
	}
	return &Service{sqlConn: cfg.SQLConn, cache: cfg.Cache}, nil
}

// SyncResult counts the rows a sync touched.
type SyncResult struct {
	Listed   int64
	Delisted int64
}

// SyncUniverse makes symbols the provider's listed set: each symbol is
// upserted as listed and every other symbol of the provider is delisted.
func (s *Service) SyncUniverse(ctx context.Context, provider string, symbols []string) (SyncResult, error) {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return SyncResult{}, errors.New("assetspersist: provider is required")
	}
	symbols = refresh.NormalizeSymbols(symbols)
	if len(symbols) == 0 {
		return SyncResult{}, errors.New("assetspersist: refusing to delist every symbol of " + provider)
	}

	const upsert = `
INSERT INTO public.market_assets (provider, symbol, name, is_delisted, created_at, updated_at)
SELECT $1, s.symbol, s.symbol, FALSE, NOW(), NOW()
FROM unnest($2::text[]) AS s(symbol)
ON CONFLICT (provider, symbol) DO UPDATE SET
    is_delisted = FALSE,
    updated_at = NOW()
WHERE public.market_assets.is_delisted`

	const delist = `
UPDATE public.market_assets
SET is_delisted = TRUE, updated_at = NOW()
WHERE provider = $1 AND is_delisted = FALSE AND NOT (symbol = ANY($2::text[]))`

	var res SyncResult
	err := s.sqlConn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		r, err := session.ExecCtx(ctx, upsert, provider, pq.Array(symbols))
		if err != nil {
			return fmt.Errorf("upsert listed: %w", err)
		}
		if res.Listed, err = r.RowsAffected(); err != nil {
			return err
		}
		r, err = session.ExecCtx(ctx, delist, provider, pq.Array(symbols))
		if err != nil {
			return fmt.Errorf("delist: %w", err)
		}
		res.Delisted, err = r.RowsAffected()
		return err
	})
	if err != nil {
		return SyncResult{}, fmt.Errorf("assetspersist: sync %s: %w", provider, err)
	}
	s.invalidate(ctx, provider)
	logx.WithContext(ctx).Infof("assetspersist: %s universe synced, %d listed, %d delisted",
		provider, res.Listed, res.Delisted)
	return res, nil
}

// invalidate drops the provider's cached universe and the all-provider one.
func (s *Service) invalidate(ctx context.Context, provider string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DelCtx(ctx, cachekeys.UniverseKey(provider), cachekeys.UniverseKey("")); err != nil {
		logx.WithContext(ctx).Errorf("assetspersist: invalidate universe %s: %v", provider, err)
	}
}
