package refresh_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nof0-refresh/pkg/refresh"
)

func TestNewOrchestratorRequiresDeps(t *testing.T) {
	_, err := refresh.NewOrchestrator(refresh.Deps{})
	assert.Error(t, err)

	_, err = refresh.NewOrchestrator(refresh.Deps{
		Store:  refresh.NewMemoryStore(),
		Locker: refresh.NewMemoryLocker(),
	})
	assert.ErrorContains(t, err, "submitter")
}

func TestAskForRefreshBaseTimeframe(t *testing.T) {
	h := newHarness(t, []string{"btcusdt", "ETHUSDT", "SOLUSDT"},
		withBlacklist(refresh.NewStaticBlacklist("solusdt")))

	run, err := h.orch.AskForRefresh(context.Background(), refresh.TF4h)
	require.NoError(t, err)

	assert.Equal(t, refresh.RunRunning, run.Status)
	assert.True(t, run.SnapshotDone)
	assert.Equal(t, refresh.SourceUniverse, run.SnapshotSource)
	assert.Equal(t, 2, run.SnapshotCount)
	assert.Equal(t, 2, run.Enqueued)
	assert.Equal(t, 2, run.Remaining)

	jobs := h.submitter.Jobs()
	require.Len(t, jobs, 2)
	for _, job := range jobs {
		assert.Equal(t, run.ID, job.RunID)
		assert.Equal(t, "4h", job.Timeframe)
		assert.True(t, job.WindowEnd.Equal(boundary))
		assert.True(t, job.WindowStart.Equal(boundary.Add(-refresh.TF4h.Duration())))
		assert.Equal(t, "http://refresher.local/refresh/callback", job.CallbackAddress)
	}
	assert.ElementsMatch(t, []string{"BTCUSDT", "ETHUSDT"}, h.submitter.Symbols(run.ID))

	items, err := h.store.ListItems(context.Background(), run.ID, refresh.ItemEnqueued)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestAskForRefreshUnknownTimeframe(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.orch.AskForRefreshAt(context.Background(), refresh.Timeframe(9), boundary)
	assert.ErrorIs(t, err, refresh.ErrUnknownTimeframe)
}

func TestAskForRefreshThunderingHerd(t *testing.T) {
	h := newHarness(t, []string{"BTCUSDT", "ETHUSDT", "XRPUSDT"})

	const triggers = 40
	ids := make(chan int64, triggers)
	var wg sync.WaitGroup
	for i := 0; i < triggers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run, err := h.orch.AskForRefresh(context.Background(), refresh.TF4h)
			if assert.NoError(t, err) {
				ids <- run.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	var runID int64
	for id := range ids {
		if runID == 0 {
			runID = id
		}
		assert.Equal(t, runID, id)
	}
	assert.EqualValues(t, 1, h.universe.calls.Load(), "snapshot must be built once")

	symbols := h.submitter.Symbols(runID)
	sort.Strings(symbols)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "XRPUSDT"}, symbols)

	run := h.run(t, runID)
	assert.Equal(t, refresh.RunRunning, run.Status)
	assert.Equal(t, 3, run.Enqueued)
}

func TestAskForRefreshNoRedispatchWhileRunning(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, []string{"BTCUSDT", "ETHUSDT"})

	first, err := h.orch.AskForRefresh(ctx, refresh.TF4h)
	require.NoError(t, err)
	require.Equal(t, refresh.RunRunning, first.Status)
	jobs := len(h.submitter.Jobs())

	second, err := h.orch.AskForRefresh(ctx, refresh.TF4h)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, h.submitter.Jobs(), jobs)

	after := h.run(t, first.ID)
	assert.Equal(t, first.Enqueued, after.Enqueued)
	assert.Equal(t, first.Remaining, after.Remaining)
	assert.Equal(t, first.Completed, after.Completed)
	assert.EqualValues(t, 1, h.universe.calls.Load())
}

func TestAskForRefreshLockContention(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, []string{"BTCUSDT"})
	start, end := refresh.TF4h.Slot(boundary)

	lock, ok, err := h.locker.TryLock(ctx, refresh.SnapshotLockKey(refresh.TF4h, start))
	require.NoError(t, err)
	require.True(t, ok)

	run, err := h.orch.AskForRefresh(ctx, refresh.TF4h)
	require.NoError(t, err, "losing the lock is not an error")
	assert.Equal(t, refresh.RunCreated, run.Status)
	assert.False(t, run.SnapshotDone)
	assert.Empty(t, h.submitter.Jobs())
	assert.Zero(t, h.universe.calls.Load())

	// The holder finishes the snapshot; a competitor that still cannot get
	// the lock falls through to dispatch.
	applied, err := h.store.SaveSnapshot(ctx, run.ID, refresh.SourceUniverse, []string{"BTCUSDT"})
	require.NoError(t, err)
	require.True(t, applied)

	run, err = h.orch.AskForRefreshAt(ctx, refresh.TF4h, end)
	require.NoError(t, err)
	assert.Equal(t, refresh.RunRunning, run.Status)
	assert.Equal(t, []string{"BTCUSDT"}, h.submitter.Symbols(run.ID))

	require.NoError(t, h.locker.Unlock(ctx, lock))
}

func TestAskForRefreshBlacklistFailureKeepsRunCreated(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, []string{"BTCUSDT"}, withBlacklist(failingBlacklist{}))

	run, err := h.orch.AskForRefresh(ctx, refresh.TF4h)
	require.Error(t, err)
	require.NotNil(t, run)

	run = h.run(t, run.ID)
	assert.Equal(t, refresh.RunCreated, run.Status)
	assert.False(t, run.SnapshotDone)
	assert.Empty(t, h.submitter.Jobs())

	_, ok, err := h.locker.TryLock(ctx, refresh.SnapshotLockKey(refresh.TF4h, run.SlotStart))
	require.NoError(t, err)
	assert.True(t, ok, "snapshot lock must be released after a failed build")
}

func TestSnapshotInheritance(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, withBlacklist(refresh.NewStaticBlacklist("CUSDT")))
	seedSuccess(t, h.store, refresh.TF1h, boundary, map[string]refresh.ItemStatus{
		"AUSDT": refresh.ItemDone,
		"BUSDT": refresh.ItemFailed,
		"CUSDT": refresh.ItemDone,
	}, "AUSDT", "BUSDT", "CUSDT")

	run, err := h.orch.AskForRefresh(ctx, refresh.TF15m)
	require.NoError(t, err)
	assert.Equal(t, refresh.SourceInherited, run.SnapshotSource)
	assert.Equal(t, 1, run.SnapshotCount)
	assert.Equal(t, []string{"AUSDT"}, h.submitter.Symbols(run.ID))
}

func TestSnapshotFallback(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil,
		withWatchlist("xusdt", "YUSDT", "ZUSDT", "XUSDT"),
		withBlacklist(refresh.NewStaticBlacklist("YUSDT")))

	run, err := h.orch.AskForRefresh(ctx, refresh.TF5m)
	require.NoError(t, err)
	assert.Equal(t, refresh.SourceFallback, run.SnapshotSource)

	items, err := h.store.ListItems(ctx, run.ID)
	require.NoError(t, err)
	symbols := make([]string, 0, len(items))
	for _, item := range items {
		symbols = append(symbols, item.Symbol)
	}
	assert.Equal(t, []string{"XUSDT", "ZUSDT"}, symbols)
}

func TestEmptySnapshotCompletesImmediately(t *testing.T) {
	h := newHarness(t, nil)

	run, err := h.orch.AskForRefresh(context.Background(), refresh.TF4h)
	require.NoError(t, err)
	assert.Equal(t, refresh.RunSuccess, run.Status)
	assert.True(t, run.SnapshotDone)
	assert.Zero(t, run.SnapshotCount)
	assert.Empty(t, h.notifier.Sent())
	assert.EqualValues(t, 1, h.completions.Load())
}

func TestCallbackIdempotency(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, []string{"BTCUSDT", "ETHUSDT"})
	run, err := h.orch.AskForRefresh(ctx, refresh.TF4h)
	require.NoError(t, err)

	h.callback(t, run.ID, "BTCUSDT", refresh.ItemDone)
	h.callback(t, run.ID, "BTCUSDT", refresh.ItemFailed)
	h.callback(t, run.ID, "btcusdt", refresh.ItemDone)

	item, err := h.store.FindItem(ctx, run.ID, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, refresh.ItemDone, item.Status)

	run = h.run(t, run.ID)
	assert.Equal(t, 1, run.Completed)
	assert.Zero(t, run.Failed)
	assert.Equal(t, 1, run.Remaining)
	assert.Equal(t, refresh.RunRunning, run.Status)
}

func TestCallbackDiscardsUnknownTargets(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, []string{"BTCUSDT"})
	run, err := h.orch.AskForRefresh(ctx, refresh.TF4h)
	require.NoError(t, err)

	err = h.orch.HandleTerminalCallback(ctx, refresh.TerminalCallback{RunID: run.ID + 99, Symbol: "BTCUSDT", Status: refresh.ItemDone})
	assert.NoError(t, err)
	err = h.orch.HandleTerminalCallback(ctx, refresh.TerminalCallback{RunID: run.ID, Symbol: "DOGEUSDT", Status: refresh.ItemDone})
	assert.NoError(t, err)

	err = h.orch.HandleTerminalCallback(ctx, refresh.TerminalCallback{RunID: run.ID, Symbol: "BTCUSDT", Status: refresh.ItemEnqueued})
	assert.ErrorIs(t, err, refresh.ErrInvalidStatus)

	run = h.run(t, run.ID)
	assert.Equal(t, 1, run.Remaining)
	assert.Zero(t, run.Settled())
}

func TestSingleCompletionUnderConcurrentCallbacks(t *testing.T) {
	ctx := context.Background()
	symbols := []string{"AUSDT", "BUSDT", "CUSDT"}
	statuses := []refresh.ItemStatus{refresh.ItemDone, refresh.ItemSkipped, refresh.ItemDone}

	for round := 0; round < 20; round++ {
		h := newHarness(t, symbols)
		run, err := h.orch.AskForRefresh(ctx, refresh.TF4h)
		require.NoError(t, err)

		var wg sync.WaitGroup
		for dup := 0; dup < 3; dup++ {
			for i, sym := range symbols {
				wg.Add(1)
				go func(sym string, status refresh.ItemStatus) {
					defer wg.Done()
					assert.NoError(t, h.orch.HandleTerminalCallback(ctx, refresh.TerminalCallback{
						RunID: run.ID, Symbol: sym, Status: status,
					}))
				}(sym, statuses[i])
			}
		}
		wg.Wait()

		run = h.run(t, run.ID)
		assert.Equal(t, refresh.RunSuccess, run.Status)
		assert.Zero(t, run.Remaining)
		assert.Equal(t, 2, run.Completed)
		assert.Equal(t, 1, run.Skipped)
		assert.True(t, run.Reconciled())
		assert.EqualValues(t, 1, h.completions.Load(), "round %d", round)
		assert.Len(t, h.notifier.Sent(), 2, "round %d", round)
	}
}

func TestCascadeIntoWaitingRun(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, withWatchlist("XUSDT", "YUSDT"))

	parent, err := h.orch.AskForRefresh(ctx, refresh.TF15m)
	require.NoError(t, err)
	require.Equal(t, refresh.RunRunning, parent.Status)

	start, end := refresh.TF5m.Slot(boundary)
	child, err := h.store.GetOrCreate(ctx, refresh.TF5m, start, end)
	require.NoError(t, err)
	require.Equal(t, refresh.RunCreated, child.Status)

	h.callback(t, parent.ID, "XUSDT", refresh.ItemDone)
	h.callback(t, parent.ID, "YUSDT", refresh.ItemDone)

	assert.Equal(t, refresh.RunSuccess, h.run(t, parent.ID).Status)

	child = h.run(t, child.ID)
	assert.Equal(t, refresh.RunRunning, child.Status)
	assert.Equal(t, refresh.SourceInherited, child.SnapshotSource)
	assert.ElementsMatch(t, []string{"XUSDT", "YUSDT"}, h.submitter.Symbols(child.ID))

	sent := h.notifier.Sent()
	require.Len(t, sent, 2)
	got := []string{sent[0].Symbol + "@" + sent[0].Timeframe, sent[1].Symbol + "@" + sent[1].Timeframe}
	assert.ElementsMatch(t, []string{"XUSDT@15m", "YUSDT@15m"}, got)
	assert.Equal(t, parent.ID, sent[0].RunID)
}

func TestCascadeSkipsRunningChild(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, withWatchlist("XUSDT"))

	parent, err := h.orch.AskForRefresh(ctx, refresh.TF15m)
	require.NoError(t, err)
	child, err := h.orch.AskForRefresh(ctx, refresh.TF5m)
	require.NoError(t, err)
	require.Equal(t, refresh.RunRunning, child.Status)
	require.Equal(t, refresh.SourceFallback, child.SnapshotSource)

	h.callback(t, parent.ID, "XUSDT", refresh.ItemDone)

	assert.Len(t, h.submitter.Symbols(child.ID), 1, "running child must not be re-dispatched")
}

func TestAwaitParentDefersChild(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, []string{"XUSDT", "YUSDT"}, withOptions(refresh.WithAwaitParent(true)))

	parent, err := h.orch.AskForRefresh(ctx, refresh.TF4h)
	require.NoError(t, err)

	child, err := h.orch.AskForRefresh(ctx, refresh.TF1h)
	require.NoError(t, err)
	assert.Equal(t, refresh.RunCreated, child.Status)
	assert.False(t, child.SnapshotDone)

	h.callback(t, parent.ID, "XUSDT", refresh.ItemDone)
	h.callback(t, parent.ID, "YUSDT", refresh.ItemFailed)

	child = h.run(t, child.ID)
	assert.Equal(t, refresh.RunRunning, child.Status)
	assert.Equal(t, refresh.SourceInherited, child.SnapshotSource)
	assert.Equal(t, []string{"XUSDT"}, h.submitter.Symbols(child.ID))
}

func TestDispatchFailureSettlesItem(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, []string{"BTCUSDT", "ETHUSDT", "XRPUSDT"})
	h.submitter.fail = map[string]error{"ETHUSDT": errors.New("queue full")}

	run, err := h.orch.AskForRefresh(ctx, refresh.TF4h)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"BTCUSDT", "XRPUSDT"}, h.submitter.Symbols(run.ID))

	item, err := h.store.FindItem(ctx, run.ID, "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, refresh.ItemFailed, item.Status)
	assert.Contains(t, item.Error, "dispatch: queue full")

	h.callback(t, run.ID, "BTCUSDT", refresh.ItemDone)
	h.callback(t, run.ID, "XRPUSDT", refresh.ItemDone)

	run = h.run(t, run.ID)
	assert.Equal(t, refresh.RunSuccess, run.Status)
	assert.Equal(t, 3, run.Enqueued)
	assert.Equal(t, 1, run.Failed)
	assert.True(t, run.Reconciled())
}

func TestNotificationFailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, []string{"AUSDT", "BUSDT", "CUSDT"})
	h.notifier.fail = map[string]bool{"AUSDT": true}

	run, err := h.orch.AskForRefresh(ctx, refresh.TF4h)
	require.NoError(t, err)
	for _, sym := range []string{"AUSDT", "BUSDT", "CUSDT"} {
		h.callback(t, run.ID, sym, refresh.ItemDone)
	}

	assert.Equal(t, refresh.RunSuccess, h.run(t, run.ID).Status)
	assert.Equal(t, 3, h.notifier.tries)
	assert.Len(t, h.notifier.Sent(), 2)
}

func TestMultiNotifier(t *testing.T) {
	var a, b recordingNotifier
	a.fail = map[string]bool{"BTCUSDT": true}
	multi := refresh.MultiNotifier{&a, nil, &b}

	err := multi.NotifyReady(context.Background(), refresh.AnalysisNotification{Symbol: "BTCUSDT", Timeframe: "1m"})
	assert.Error(t, err)
	assert.Len(t, b.Sent(), 1)
}
