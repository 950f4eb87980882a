package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"go.opentelemetry.io/otel/attribute"
)

// AskForRefresh is the scheduler entry point: it refreshes the slot that
// just closed at tf's granularity.
func (o *Orchestrator) AskForRefresh(ctx context.Context, tf Timeframe) (*Run, error) {
	return o.AskForRefreshAt(ctx, tf, o.now())
}

// AskForRefreshAt is AskForRefresh for an explicit instant.
func (o *Orchestrator) AskForRefreshAt(ctx context.Context, tf Timeframe, at time.Time) (run *Run, err error) {
	if !tf.Valid() {
		return nil, fmt.Errorf("%w %d", ErrUnknownTimeframe, int(tf))
	}
	slotStart, slotEnd := tf.Slot(at)
	ctx, span := startSpan(ctx, "refresh.AskForRefresh",
		attribute.String("timeframe", tf.String()),
		attribute.String("slot_start", slotStart.Format(time.RFC3339)))
	defer func() { endSpan(span, err) }()

	run, err = o.store.GetOrCreate(ctx, tf, slotStart, slotEnd)
	if err != nil {
		return nil, fmt.Errorf("get or create run tf=%s slot=%s: %w", tf, slotStart.Format(time.RFC3339), err)
	}
	span.SetAttributes(attribute.Int64("run_id", run.ID))

	switch run.Status {
	case RunRunning:
		logx.WithContext(ctx).Debugf("refresh: run=%d tf=%s already running", run.ID, tf)
		return run, nil
	case RunCreated:
	default:
		logx.WithContext(ctx).Debugf("refresh: run=%d tf=%s is %s, nothing to do", run.ID, tf, run.Status)
		return run, nil
	}

	if o.awaitParent {
		waiting, err := o.parentInFlight(ctx, run)
		if err != nil {
			return run, err
		}
		if waiting {
			logx.WithContext(ctx).Infof("refresh: run=%d tf=%s waits for parent slot_end=%s",
				run.ID, tf, run.SlotEnd.Format(time.RFC3339))
			return run, nil
		}
	}

	if err := o.snapshotAndDispatch(ctx, run); err != nil {
		return run, err
	}
	if fresh, err := o.store.FindRun(ctx, run.ID); err == nil {
		run = fresh
	}
	return run, nil
}

// snapshotAndDispatch builds the run's snapshot under its lock when needed
// and then pokes it. A caller that loses the lock never waits: it dispatches
// if the snapshot already exists and otherwise leaves the run to the holder.
func (o *Orchestrator) snapshotAndDispatch(ctx context.Context, run *Run) error {
	key := SnapshotLockKey(run.Timeframe, run.SlotStart)
	lock, ok, err := o.locker.TryLock(ctx, key)
	if err != nil {
		return fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		fresh, err := o.store.FindRun(ctx, run.ID)
		if err != nil {
			return fmt.Errorf("reload run=%d: %w", run.ID, err)
		}
		if !fresh.SnapshotDone {
			logx.WithContext(ctx).Debugf("refresh: run=%d snapshot in progress elsewhere", run.ID)
			return nil
		}
		return o.PokeDispatch(ctx, fresh)
	}

	if err := o.buildLocked(ctx, run.ID, lock); err != nil {
		return err
	}
	fresh, err := o.store.FindRun(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("reload run=%d: %w", run.ID, err)
	}
	return o.PokeDispatch(ctx, fresh)
}

func (o *Orchestrator) buildLocked(ctx context.Context, runID int64, lock Lock) error {
	defer func() {
		if err := o.locker.Unlock(ctx, lock); err != nil {
			logx.WithContext(ctx).Errorf("refresh: release %s: %v", lock.Key(), err)
		}
	}()
	run, err := o.store.FindRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("reload run=%d: %w", runID, err)
	}
	if run.SnapshotDone {
		return nil
	}
	if _, err := o.builder.Build(ctx, run); err != nil {
		return fmt.Errorf("snapshot run=%d tf=%s: %w", run.ID, run.Timeframe, err)
	}
	return nil
}

// PokeDispatch moves the run to RUNNING and submits one fetch job per
// PENDING item. Items are claimed with a conditional PENDING -> ENQUEUED
// update, so repeated or concurrent pokes never submit an item twice.
func (o *Orchestrator) PokeDispatch(ctx context.Context, run *Run) error {
	if run.Status == RunSuccess {
		return nil
	}
	if !run.SnapshotDone {
		logx.WithContext(ctx).Debugf("refresh: run=%d has no snapshot yet, skip dispatch", run.ID)
		return nil
	}
	if run.Status != RunRunning {
		if _, err := o.store.MarkRunning(ctx, run.ID); err != nil {
			return fmt.Errorf("mark run=%d running: %w", run.ID, err)
		}
	}

	pending, err := o.store.ListItems(ctx, run.ID, ItemPending)
	if err != nil {
		return fmt.Errorf("list pending items run=%d: %w", run.ID, err)
	}
	var (
		errs       []error
		dispatched int
	)
	for _, item := range pending {
		claimed, err := o.store.MarkEnqueued(ctx, run.ID, item.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("enqueue %s: %w", item.Symbol, err))
			continue
		}
		if !claimed {
			continue
		}
		job := FetchJob{
			RunID:           run.ID,
			Symbol:          item.Symbol,
			Timeframe:       run.Timeframe.String(),
			WindowStart:     run.SlotStart,
			WindowEnd:       run.SlotEnd,
			CallbackAddress: o.callbackURL,
		}
		if err := o.submitter.Submit(ctx, job); err != nil {
			metricJobs.Inc(run.Timeframe.String(), "error")
			logx.WithContext(ctx).Errorf("refresh: submit run=%d symbol=%s: %v", run.ID, item.Symbol, err)
			if serr := o.settle(ctx, run.ID, item.Symbol, ItemFailed, "dispatch: "+err.Error()); serr != nil {
				errs = append(errs, serr)
			}
			continue
		}
		metricJobs.Inc(run.Timeframe.String(), "ok")
		dispatched++
	}
	if dispatched > 0 {
		logx.WithContext(ctx).Infof("refresh: dispatched run=%d tf=%s jobs=%d", run.ID, run.Timeframe, dispatched)
	}

	if run.SnapshotCount == 0 {
		if err := o.completeIfDrained(ctx, run.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// parentInFlight reports whether the coarser run sharing run's slot end is
// still CREATED or RUNNING.
func (o *Orchestrator) parentInFlight(ctx context.Context, run *Run) (bool, error) {
	prev, ok := run.Timeframe.Previous()
	if !ok {
		return false, nil
	}
	_, err := o.store.FindActiveOrCreated(ctx, prev, run.SlotEnd.Add(-prev.Duration()))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("find parent run tf=%s: %w", prev, err)
	}
}
