package refresh

import (
	"context"
	"strings"
)

// Blacklist answers whether a symbol is excluded right now.
type Blacklist interface {
	IsBlacklisted(ctx context.Context, symbol string) (bool, error)
}

// Universe lists the active symbols used by the base timeframe.
type Universe interface {
	ListActiveSymbols(ctx context.Context) ([]string, error)
}

// Watchlist lists the cached symbols used when nothing can be inherited.
type Watchlist interface {
	ListCachedWatchlist(ctx context.Context) ([]string, error)
}

// StaticSymbols serves a fixed list as either a Universe or a Watchlist.
type StaticSymbols []string

func (s StaticSymbols) ListActiveSymbols(ctx context.Context) ([]string, error) {
	return append([]string(nil), s...), nil
}

func (s StaticSymbols) ListCachedWatchlist(ctx context.Context) ([]string, error) {
	return append([]string(nil), s...), nil
}

// StaticBlacklist is a fixed exclusion set.
type StaticBlacklist map[string]struct{}

// NewStaticBlacklist builds a StaticBlacklist from symbols.
func NewStaticBlacklist(symbols ...string) StaticBlacklist {
	out := make(StaticBlacklist, len(symbols))
	for _, sym := range NormalizeSymbols(symbols) {
		out[sym] = struct{}{}
	}
	return out
}

func (b StaticBlacklist) IsBlacklisted(ctx context.Context, symbol string) (bool, error) {
	_, ok := b[strings.ToUpper(strings.TrimSpace(symbol))]
	return ok, nil
}
