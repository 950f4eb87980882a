package refresh

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Store lookups that match nothing.
var ErrNotFound = errors.New("refresh: not found")

// Store is the durable state behind runs and their items. Every mutating
// method is a single self-contained transaction whose precondition is part
// of the write, so callers never need a read-then-write sequence.
type Store interface {
	// GetOrCreate returns the run for (tf, slotStart), creating it in CREATED
	// state when absent. Concurrent callers observe the same run.
	GetOrCreate(ctx context.Context, tf Timeframe, slotStart, slotEnd time.Time) (*Run, error)
	// FindRun loads a run by id.
	FindRun(ctx context.Context, runID int64) (*Run, error)
	// FindActiveOrCreated returns the CREATED or RUNNING run for (tf, slotStart).
	FindActiveOrCreated(ctx context.Context, tf Timeframe, slotStart time.Time) (*Run, error)
	// FindLastSuccessBefore returns the most recent SUCCESS run of tf whose
	// slot ends at or before cutoff.
	FindLastSuccessBefore(ctx context.Context, tf Timeframe, cutoff time.Time) (*Run, error)

	// SaveSnapshot inserts one PENDING item per symbol and marks the snapshot
	// done with remaining = len(symbols). It applies only while the run's
	// snapshot is not yet done and reports whether it did.
	SaveSnapshot(ctx context.Context, runID int64, source SnapshotSource, symbols []string) (bool, error)
	// ListItems returns the run's items, optionally filtered by status.
	ListItems(ctx context.Context, runID int64, statuses ...ItemStatus) ([]RunItem, error)
	// FindItem loads the item for (runID, symbol).
	FindItem(ctx context.Context, runID int64, symbol string) (*RunItem, error)

	// MarkRunning moves a CREATED run to RUNNING.
	MarkRunning(ctx context.Context, runID int64) (bool, error)
	// MarkEnqueued moves a PENDING item to ENQUEUED and bumps run.enqueued.
	MarkEnqueued(ctx context.Context, runID, itemID int64) (bool, error)
	// ApplyTerminal settles a non-terminal item and bumps the matching run
	// counter. It reports false when the item was already terminal.
	ApplyTerminal(ctx context.Context, runID int64, symbol string, status ItemStatus, errMsg string) (bool, error)
	// DecrementRemaining runs remaining = remaining - 1 WHERE remaining > 0
	// and returns the affected row count (0 or 1).
	DecrementRemaining(ctx context.Context, runID int64) (int64, error)
	// MarkSuccess moves a run with remaining = 0 to SUCCESS unless it already is.
	MarkSuccess(ctx context.Context, runID int64) (bool, error)
}
