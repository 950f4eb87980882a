package refresh

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidStatus is returned when a callback carries a non-terminal status.
var ErrInvalidStatus = errors.New("refresh: invalid item status")

// RunStatus is the lifecycle state of a Run. Transitions are monotonic:
// CREATED -> RUNNING -> SUCCESS.
type RunStatus string

const (
	RunCreated RunStatus = "CREATED"
	RunRunning RunStatus = "RUNNING"
	RunSuccess RunStatus = "SUCCESS"
)

// ItemStatus is the lifecycle state of a RunItem.
type ItemStatus string

const (
	ItemPending  ItemStatus = "PENDING"
	ItemEnqueued ItemStatus = "ENQUEUED"
	ItemDone     ItemStatus = "DONE"
	ItemFailed   ItemStatus = "FAILED"
	ItemSkipped  ItemStatus = "SKIPPED"
)

// IsTerminal reports whether the status is a sink state.
func (s ItemStatus) IsTerminal() bool {
	switch s {
	case ItemDone, ItemFailed, ItemSkipped:
		return true
	default:
		return false
	}
}

// ParseTerminalStatus accepts DONE, FAILED or SKIPPED in any case.
func ParseTerminalStatus(s string) (ItemStatus, error) {
	status := ItemStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.IsTerminal() {
		return "", fmt.Errorf("%w %q", ErrInvalidStatus, s)
	}
	return status, nil
}

// SnapshotSource records where a run's symbol list came from.
type SnapshotSource string

const (
	SourceUniverse  SnapshotSource = "external-universe"
	SourceInherited SnapshotSource = "inherited"
	SourceFallback  SnapshotSource = "fallback-cache"
)

// Run is one refresh cycle for a (timeframe, slot) pair.
type Run struct {
	ID        int64
	Timeframe Timeframe
	SlotStart time.Time
	SlotEnd   time.Time
	Status    RunStatus

	SnapshotDone   bool
	SnapshotSource SnapshotSource
	SnapshotCount  int

	Enqueued  int
	Completed int
	Failed    int
	Skipped   int
	Remaining int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Settled is the number of items that reached a terminal state.
func (r *Run) Settled() int {
	return r.Completed + r.Failed + r.Skipped
}

// Reconciled reports whether the terminal counters add up to the enqueued
// count. It is only meaningful once Remaining reaches zero.
func (r *Run) Reconciled() bool {
	return r.Settled() == r.Enqueued
}

// RunItem is one symbol's fetch job within a Run.
type RunItem struct {
	ID        int64
	RunID     int64
	Symbol    string
	Status    ItemStatus
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TerminalCallback is a per-symbol outcome reported by a fetch worker.
type TerminalCallback struct {
	RunID  int64
	Symbol string
	Status ItemStatus
	Error  string
}

// FetchJob is the payload submitted to the external worker pool.
type FetchJob struct {
	RunID           int64     `json:"runId" msgpack:"run_id"`
	Symbol          string    `json:"symbol" msgpack:"symbol"`
	Timeframe       string    `json:"timeframe" msgpack:"timeframe"`
	WindowStart     time.Time `json:"windowStart" msgpack:"window_start"`
	WindowEnd       time.Time `json:"windowEnd" msgpack:"window_end"`
	CallbackAddress string    `json:"callbackAddress" msgpack:"callback_address"`
}

// AnalysisNotification tells the decision engine a symbol is ready.
type AnalysisNotification struct {
	Symbol    string    `json:"symbol" msgpack:"symbol"`
	Timeframe string    `json:"timeframe" msgpack:"timeframe"`
	RunID     int64     `json:"runId" msgpack:"run_id"`
	SlotEnd   time.Time `json:"slotEnd" msgpack:"slot_end"`
}

// NormalizeSymbols upper-cases and trims symbols, dropping empties and
// duplicates while keeping first-seen order.
func NormalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}
