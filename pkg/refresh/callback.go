package refresh

import (
	"context"
	"errors"
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"
	"go.opentelemetry.io/otel/attribute"
)

// HandleTerminalCallback applies one worker outcome. Unknown runs or symbols
// and already-settled items are logged and swallowed; only a malformed
// status or a store failure is returned.
func (o *Orchestrator) HandleTerminalCallback(ctx context.Context, cb TerminalCallback) (err error) {
	ctx, span := startSpan(ctx, "refresh.HandleTerminalCallback",
		attribute.Int64("run_id", cb.RunID),
		attribute.String("symbol", cb.Symbol),
		attribute.String("status", string(cb.Status)))
	defer func() { endSpan(span, err) }()

	if !cb.Status.IsTerminal() {
		metricCallbacks.Inc(string(cb.Status), "invalid")
		return fmt.Errorf("%w %q", ErrInvalidStatus, cb.Status)
	}

	run, err := o.store.FindRun(ctx, cb.RunID)
	if errors.Is(err, ErrNotFound) {
		metricCallbacks.Inc(string(cb.Status), "unknown_run")
		logx.WithContext(ctx).Infof("refresh: callback for unknown run=%d symbol=%s, discarded", cb.RunID, cb.Symbol)
		return nil
	}
	if err != nil {
		return fmt.Errorf("find run=%d: %w", cb.RunID, err)
	}
	if _, err := o.store.FindItem(ctx, run.ID, cb.Symbol); err != nil {
		if errors.Is(err, ErrNotFound) {
			metricCallbacks.Inc(string(cb.Status), "unknown_symbol")
			logx.WithContext(ctx).Infof("refresh: callback for unknown symbol=%s run=%d, discarded", cb.Symbol, run.ID)
			return nil
		}
		return fmt.Errorf("find item run=%d symbol=%s: %w", run.ID, cb.Symbol, err)
	}
	return o.settle(ctx, run.ID, cb.Symbol, cb.Status, cb.Error)
}

// settle moves one item to a terminal status and, when that drains the run,
// completes it. It is shared by worker callbacks and dispatch failures.
func (o *Orchestrator) settle(ctx context.Context, runID int64, symbol string, status ItemStatus, errMsg string) error {
	applied, err := o.store.ApplyTerminal(ctx, runID, symbol, status, errMsg)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logx.WithContext(ctx).Infof("refresh: settle unknown item run=%d symbol=%s, discarded", runID, symbol)
			return nil
		}
		return fmt.Errorf("apply %s run=%d symbol=%s: %w", status, runID, symbol, err)
	}
	if !applied {
		metricCallbacks.Inc(string(status), "duplicate")
		logx.WithContext(ctx).Debugf("refresh: run=%d symbol=%s already settled, %s discarded", runID, symbol, status)
		return nil
	}
	metricCallbacks.Inc(string(status), "applied")

	decremented, err := o.store.DecrementRemaining(ctx, runID)
	if err != nil {
		return fmt.Errorf("decrement remaining run=%d: %w", runID, err)
	}
	if decremented != 1 {
		logx.WithContext(ctx).Errorf("refresh: run=%d remaining already zero when settling symbol=%s", runID, symbol)
		return nil
	}
	return o.completeIfDrained(ctx, runID)
}

// completeIfDrained marks the run SUCCESS when nothing remains. MarkSuccess
// is conditional, so exactly one caller observes applied=true and runs the
// chain for it.
func (o *Orchestrator) completeIfDrained(ctx context.Context, runID int64) error {
	run, err := o.store.FindRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("reload run=%d: %w", runID, err)
	}
	if run.Remaining != 0 || run.Status == RunSuccess {
		return nil
	}
	applied, err := o.store.MarkSuccess(ctx, runID)
	if err != nil {
		return fmt.Errorf("mark run=%d success: %w", runID, err)
	}
	if !applied {
		return nil
	}
	run.Status = RunSuccess
	metricRuns.Inc(run.Timeframe.String(), string(run.SnapshotSource))
	o.reconcile(ctx, run)
	logx.WithContext(ctx).Infof("refresh: run=%d tf=%s slot=%s complete done=%d failed=%d skipped=%d",
		run.ID, run.Timeframe, run.SlotStart.Format("2006-01-02T15:04Z"), run.Completed, run.Failed, run.Skipped)
	return o.chain(ctx, run)
}

func (o *Orchestrator) reconcile(ctx context.Context, run *Run) {
	if run.Reconciled() {
		return
	}
	metricMismatch.Inc(run.Timeframe.String())
	logx.WithContext(ctx).Errorf("refresh: run=%d counters do not reconcile enqueued=%d done=%d failed=%d skipped=%d",
		run.ID, run.Enqueued, run.Completed, run.Failed, run.Skipped)
}
