package refresh

import (
	"context"
	"errors"
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"
)

// SnapshotBuilder computes and persists the symbol set of a new run.
type SnapshotBuilder struct {
	store     Store
	universe  Universe
	watchlist Watchlist
	blacklist Blacklist
}

// NewSnapshotBuilder wires a builder. A nil blacklist excludes nothing.
func NewSnapshotBuilder(store Store, universe Universe, watchlist Watchlist, blacklist Blacklist) *SnapshotBuilder {
	if blacklist == nil {
		blacklist = StaticBlacklist{}
	}
	return &SnapshotBuilder{
		store:     store,
		universe:  universe,
		watchlist: watchlist,
		blacklist: blacklist,
	}
}

// Resolve returns the symbol set for run without persisting it. The base
// timeframe reads the universe; finer ones inherit DONE items from the
// latest successful parent run and fall back to the watchlist.
func (b *SnapshotBuilder) Resolve(ctx context.Context, run *Run) (SnapshotSource, []string, error) {
	if run.Timeframe.IsBase() {
		if b.universe == nil {
			return "", nil, errors.New("refresh: no symbol universe configured")
		}
		symbols, err := b.universe.ListActiveSymbols(ctx)
		if err != nil {
			return "", nil, fmt.Errorf("list active symbols: %w", err)
		}
		filtered, err := b.filter(ctx, symbols)
		return SourceUniverse, filtered, err
	}

	prev, _ := run.Timeframe.Previous()
	parent, err := b.store.FindLastSuccessBefore(ctx, prev, run.SlotEnd)
	switch {
	case err == nil:
		items, err := b.store.ListItems(ctx, parent.ID, ItemDone)
		if err != nil {
			return "", nil, fmt.Errorf("list parent items run=%d: %w", parent.ID, err)
		}
		symbols := make([]string, 0, len(items))
		for _, item := range items {
			symbols = append(symbols, item.Symbol)
		}
		filtered, err := b.filter(ctx, symbols)
		return SourceInherited, filtered, err
	case errors.Is(err, ErrNotFound):
	default:
		return "", nil, fmt.Errorf("find parent run tf=%s: %w", prev, err)
	}

	if b.watchlist == nil {
		return "", nil, errors.New("refresh: no fallback watchlist configured")
	}
	symbols, err := b.watchlist.ListCachedWatchlist(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("list cached watchlist: %w", err)
	}
	filtered, err := b.filter(ctx, symbols)
	return SourceFallback, filtered, err
}

// Build resolves the symbol set and persists it as PENDING items. It reports
// false when another caller already stored the snapshot. Callers must hold
// the run's snapshot lock.
func (b *SnapshotBuilder) Build(ctx context.Context, run *Run) (bool, error) {
	source, symbols, err := b.Resolve(ctx, run)
	if err != nil {
		return false, err
	}
	applied, err := b.store.SaveSnapshot(ctx, run.ID, source, symbols)
	if err != nil {
		return false, fmt.Errorf("save snapshot run=%d: %w", run.ID, err)
	}
	if applied {
		logx.WithContext(ctx).Infof("refresh: snapshot run=%d tf=%s slot=%s source=%s symbols=%d",
			run.ID, run.Timeframe, run.SlotStart.Format("2006-01-02T15:04Z"), source, len(symbols))
	}
	return applied, nil
}

func (b *SnapshotBuilder) filter(ctx context.Context, symbols []string) ([]string, error) {
	symbols = NormalizeSymbols(symbols)
	out := symbols[:0]
	for _, sym := range symbols {
		banned, err := b.blacklist.IsBlacklisted(ctx, sym)
		if err != nil {
			return nil, fmt.Errorf("blacklist lookup %s: %w", sym, err)
		}
		if banned {
			continue
		}
		out = append(out, sym)
	}
	return out, nil
}
