package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"go.opentelemetry.io/otel/attribute"
)

// chain runs once per run, right after the run won its SUCCESS transition.
// It announces every DONE symbol downstream and then pushes the next finer
// run for the same slot end if that run is still waiting.
func (o *Orchestrator) chain(ctx context.Context, run *Run) (err error) {
	ctx, span := startSpan(ctx, "refresh.chain",
		attribute.Int64("run_id", run.ID),
		attribute.String("timeframe", run.Timeframe.String()))
	defer func() { endSpan(span, err) }()

	items, err := o.store.ListItems(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("list items run=%d: %w", run.ID, err)
	}
	o.notifyReady(ctx, run, items)
	for _, hook := range o.hooks {
		hook(ctx, run, items)
	}

	next, ok := run.Timeframe.Next()
	if !ok {
		return nil
	}
	child, err := o.store.FindActiveOrCreated(ctx, next, run.SlotEnd.Add(-next.Duration()))
	if errors.Is(err, ErrNotFound) {
		logx.WithContext(ctx).Debugf("refresh: run=%d has no waiting %s run for slot_end=%s",
			run.ID, next, run.SlotEnd.Format(time.RFC3339))
		return nil
	}
	if err != nil {
		return fmt.Errorf("find %s run for slot_end=%s: %w", next, run.SlotEnd.Format(time.RFC3339), err)
	}
	if child.Status != RunCreated {
		return nil
	}
	logx.WithContext(ctx).Infof("refresh: run=%d cascades into run=%d tf=%s", run.ID, child.ID, next)
	return o.snapshotAndDispatch(ctx, child)
}

func (o *Orchestrator) notifyReady(ctx context.Context, run *Run, items []RunItem) {
	tf := run.Timeframe.String()
	for _, item := range items {
		if item.Status != ItemDone {
			continue
		}
		n := AnalysisNotification{
			Symbol:    item.Symbol,
			Timeframe: tf,
			RunID:     run.ID,
			SlotEnd:   run.SlotEnd,
		}
		if err := o.notifier.NotifyReady(ctx, n); err != nil {
			metricNotify.Inc(tf, "error")
			logx.WithContext(ctx).Errorf("refresh: notify run=%d symbol=%s: %v", run.ID, item.Symbol, err)
			continue
		}
		metricNotify.Inc(tf, "ok")
	}
}
