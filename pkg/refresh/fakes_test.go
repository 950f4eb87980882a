package refresh_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nof0-refresh/pkg/refresh"
)

// boundary is a shared 4h/1h/15m/5m/1m candle close used across tests.
var boundary = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingSubmitter struct {
	mu   sync.Mutex
	jobs []refresh.FetchJob
	fail map[string]error
}

func (s *recordingSubmitter) Submit(ctx context.Context, job refresh.FetchJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.fail[job.Symbol]; ok {
		return err
	}
	s.jobs = append(s.jobs, job)
	return nil
}

func (s *recordingSubmitter) Jobs() []refresh.FetchJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]refresh.FetchJob(nil), s.jobs...)
}

func (s *recordingSubmitter) Symbols(runID int64) []string {
	var out []string
	for _, job := range s.Jobs() {
		if job.RunID == runID {
			out = append(out, job.Symbol)
		}
	}
	return out
}

type recordingNotifier struct {
	mu    sync.Mutex
	sent  []refresh.AnalysisNotification
	fail  map[string]bool
	tries int
}

func (n *recordingNotifier) NotifyReady(ctx context.Context, msg refresh.AnalysisNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tries++
	if n.fail[msg.Symbol] {
		return errors.New("downstream unavailable")
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) Sent() []refresh.AnalysisNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]refresh.AnalysisNotification(nil), n.sent...)
}

type countingUniverse struct {
	symbols []string
	calls   atomic.Int32
}

func (u *countingUniverse) ListActiveSymbols(ctx context.Context) ([]string, error) {
	u.calls.Add(1)
	// widen the window in which concurrent triggers overlap
	time.Sleep(5 * time.Millisecond)
	return append([]string(nil), u.symbols...), nil
}

type failingBlacklist struct{}

func (failingBlacklist) IsBlacklisted(ctx context.Context, symbol string) (bool, error) {
	return false, errors.New("blacklist backend down")
}

type harness struct {
	store     *refresh.MemoryStore
	locker    *refresh.MemoryLocker
	submitter *recordingSubmitter
	notifier  *recordingNotifier
	universe  *countingUniverse
	orch      *refresh.Orchestrator

	completions atomic.Int32
}

type harnessOption func(*refresh.Deps, *[]refresh.Option)

func withBlacklist(bl refresh.Blacklist) harnessOption {
	return func(d *refresh.Deps, _ *[]refresh.Option) { d.Blacklist = bl }
}

func withWatchlist(symbols ...string) harnessOption {
	return func(d *refresh.Deps, _ *[]refresh.Option) { d.Watchlist = refresh.StaticSymbols(symbols) }
}

func withOptions(opts ...refresh.Option) harnessOption {
	return func(_ *refresh.Deps, o *[]refresh.Option) { *o = append(*o, opts...) }
}

func newHarness(t *testing.T, universe []string, opts ...harnessOption) *harness {
	t.Helper()
	h := &harness{
		store:     refresh.NewMemoryStore(),
		locker:    refresh.NewMemoryLocker(),
		submitter: &recordingSubmitter{},
		notifier:  &recordingNotifier{},
		universe:  &countingUniverse{symbols: universe},
	}
	deps := refresh.Deps{
		Store:     h.store,
		Locker:    h.locker,
		Universe:  h.universe,
		Watchlist: refresh.StaticSymbols{},
		Submitter: h.submitter,
		Notifier:  h.notifier,
	}
	options := []refresh.Option{
		refresh.WithCallbackURL("http://refresher.local/refresh/callback"),
		refresh.WithClock(func() time.Time { return boundary }),
		refresh.WithCompletionHook(func(ctx context.Context, run *refresh.Run, items []refresh.RunItem) {
			h.completions.Add(1)
		}),
	}
	for _, opt := range opts {
		opt(&deps, &options)
	}
	orch, err := refresh.NewOrchestrator(deps, options...)
	require.NoError(t, err)
	h.orch = orch
	return h
}

func (h *harness) callback(t *testing.T, runID int64, symbol string, status refresh.ItemStatus) {
	t.Helper()
	require.NoError(t, h.orch.HandleTerminalCallback(context.Background(), refresh.TerminalCallback{
		RunID:  runID,
		Symbol: symbol,
		Status: status,
	}))
}

func (h *harness) run(t *testing.T, runID int64) *refresh.Run {
	t.Helper()
	run, err := h.store.FindRun(context.Background(), runID)
	require.NoError(t, err)
	return run
}

// seedSuccess stores a finished run of tf ending at slotEnd whose items end
// in the given statuses.
func seedSuccess(t *testing.T, store refresh.Store, tf refresh.Timeframe, slotEnd time.Time, outcomes map[string]refresh.ItemStatus, order ...string) *refresh.Run {
	t.Helper()
	ctx := context.Background()
	run, err := store.GetOrCreate(ctx, tf, slotEnd.Add(-tf.Duration()), slotEnd)
	require.NoError(t, err)
	applied, err := store.SaveSnapshot(ctx, run.ID, refresh.SourceUniverse, order)
	require.NoError(t, err)
	require.True(t, applied)
	_, err = store.MarkRunning(ctx, run.ID)
	require.NoError(t, err)
	items, err := store.ListItems(ctx, run.ID)
	require.NoError(t, err)
	for _, item := range items {
		_, err := store.MarkEnqueued(ctx, run.ID, item.ID)
		require.NoError(t, err)
		_, err = store.ApplyTerminal(ctx, run.ID, item.Symbol, outcomes[item.Symbol], "")
		require.NoError(t, err)
		n, err := store.DecrementRemaining(ctx, run.ID)
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
	}
	ok, err := store.MarkSuccess(ctx, run.ID)
	require.NoError(t, err)
	require.True(t, ok)
	run, err = store.FindRun(ctx, run.ID)
	require.NoError(t, err)
	return run
}
