package model

import (
	"context"
	"fmt"

	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ MarketAssetsModel = (*customMarketAssetsModel)(nil)

type (
	// MarketAssetsModel is an interface to be customized, add more methods here,
	// and implement the added methods in customMarketAssetsModel.
	MarketAssetsModel interface {
		marketAssetsModel
		ListActiveSymbols(ctx context.Context, provider string) ([]string, error)
	}

	customMarketAssetsModel struct {
		*defaultMarketAssetsModel
	}
)

// NewMarketAssetsModel returns a model for the database table.
func NewMarketAssetsModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) MarketAssetsModel {
	return &customMarketAssetsModel{
		defaultMarketAssetsModel: newMarketAssetsModel(conn, c, opts...),
	}
}

// ListActiveSymbols returns every listed symbol, optionally scoped to one
// provider. The result bypasses the row cache; callers cache the list.
func (m *customMarketAssetsModel) ListActiveSymbols(ctx context.Context, provider string) ([]string, error) {
	const baseQuery = `select distinct symbol from %s
where is_delisted = false
%s
order by symbol`

	var (
		args   []any
		clause string
	)
	if provider != "" {
		clause = "and provider = $1"
		args = append(args, provider)
	}

	var symbols []string
	if err := m.QueryRowsNoCacheCtx(ctx, &symbols, fmt.Sprintf(baseQuery, m.table, clause), args...); err != nil {
		return nil, fmt.Errorf("market_assets.ListActiveSymbols query: %w", err)
	}
	return symbols, nil
}
