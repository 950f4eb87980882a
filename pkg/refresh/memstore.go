package refresh

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

type slotKey struct {
	tf    Timeframe
	start int64
}

// MemoryStore is an in-process Store. A single mutex makes each method
// atomic, mirroring the transactional guarantees of the Postgres store.
type MemoryStore struct {
	mu sync.Mutex

	nextRunID  int64
	nextItemID int64

	runs   map[int64]*Run
	bySlot map[slotKey]int64
	items  map[int64][]*RunItem // run id -> items in snapshot order

	now func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:   make(map[int64]*Run),
		bySlot: make(map[slotKey]int64),
		items:  make(map[int64][]*RunItem),
		now:    time.Now,
	}
}

func (s *MemoryStore) GetOrCreate(ctx context.Context, tf Timeframe, slotStart, slotEnd time.Time) (*Run, error) {
	if !tf.Valid() {
		return nil, fmt.Errorf("%w %d", ErrUnknownTimeframe, int(tf))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := slotKey{tf: tf, start: slotStart.UTC().UnixNano()}
	if id, ok := s.bySlot[key]; ok {
		return s.copyRun(id), nil
	}
	s.nextRunID++
	now := s.now().UTC()
	run := &Run{
		ID:        s.nextRunID,
		Timeframe: tf,
		SlotStart: slotStart.UTC(),
		SlotEnd:   slotEnd.UTC(),
		Status:    RunCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.runs[run.ID] = run
	s.bySlot[key] = run.ID
	return s.copyRun(run.ID), nil
}

func (s *MemoryStore) FindRun(ctx context.Context, runID int64) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[runID]; !ok {
		return nil, ErrNotFound
	}
	return s.copyRun(runID), nil
}

func (s *MemoryStore) FindActiveOrCreated(ctx context.Context, tf Timeframe, slotStart time.Time) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.bySlot[slotKey{tf: tf, start: slotStart.UTC().UnixNano()}]
	if !ok || s.runs[id].Status == RunSuccess {
		return nil, ErrNotFound
	}
	return s.copyRun(id), nil
}

func (s *MemoryStore) FindLastSuccessBefore(ctx context.Context, tf Timeframe, cutoff time.Time) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *Run
	for _, run := range s.runs {
		if run.Timeframe != tf || run.Status != RunSuccess || run.SlotEnd.After(cutoff) {
			continue
		}
		if best == nil || run.SlotEnd.After(best.SlotEnd) {
			best = run
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return s.copyRun(best.ID), nil
}

func (s *MemoryStore) SaveSnapshot(ctx context.Context, runID int64, source SnapshotSource, symbols []string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return false, ErrNotFound
	}
	if run.SnapshotDone {
		return false, nil
	}
	symbols = NormalizeSymbols(symbols)
	now := s.now().UTC()
	items := make([]*RunItem, 0, len(symbols))
	for _, sym := range symbols {
		s.nextItemID++
		items = append(items, &RunItem{
			ID:        s.nextItemID,
			RunID:     runID,
			Symbol:    sym,
			Status:    ItemPending,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	s.items[runID] = items
	run.SnapshotDone = true
	run.SnapshotSource = source
	run.SnapshotCount = len(items)
	run.Remaining = len(items)
	run.UpdatedAt = now
	return true, nil
}

func (s *MemoryStore) ListItems(ctx context.Context, runID int64, statuses ...ItemStatus) ([]RunItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RunItem, 0, len(s.items[runID]))
	for _, item := range s.items[runID] {
		if len(statuses) > 0 && !containsStatus(statuses, item.Status) {
			continue
		}
		out = append(out, *item)
	}
	return out, nil
}

func (s *MemoryStore) FindItem(ctx context.Context, runID int64, symbol string) (*RunItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.lookupItem(runID, symbol)
	if item == nil {
		return nil, ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (s *MemoryStore) MarkRunning(ctx context.Context, runID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return false, ErrNotFound
	}
	if run.Status != RunCreated {
		return false, nil
	}
	run.Status = RunRunning
	run.UpdatedAt = s.now().UTC()
	return true, nil
}

func (s *MemoryStore) MarkEnqueued(ctx context.Context, runID, itemID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return false, ErrNotFound
	}
	for _, item := range s.items[runID] {
		if item.ID != itemID {
			continue
		}
		if item.Status != ItemPending {
			return false, nil
		}
		now := s.now().UTC()
		item.Status = ItemEnqueued
		item.UpdatedAt = now
		run.Enqueued++
		run.UpdatedAt = now
		return true, nil
	}
	return false, ErrNotFound
}

func (s *MemoryStore) ApplyTerminal(ctx context.Context, runID int64, symbol string, status ItemStatus, errMsg string) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("%w %q", ErrInvalidStatus, status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return false, ErrNotFound
	}
	item := s.lookupItem(runID, symbol)
	if item == nil {
		return false, ErrNotFound
	}
	if item.Status.IsTerminal() {
		return false, nil
	}
	now := s.now().UTC()
	item.Status = status
	item.Error = errMsg
	item.UpdatedAt = now
	switch status {
	case ItemDone:
		run.Completed++
	case ItemFailed:
		run.Failed++
	case ItemSkipped:
		run.Skipped++
	}
	run.UpdatedAt = now
	return true, nil
}

func (s *MemoryStore) DecrementRemaining(ctx context.Context, runID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok || run.Remaining <= 0 {
		return 0, nil
	}
	run.Remaining--
	run.UpdatedAt = s.now().UTC()
	return 1, nil
}

func (s *MemoryStore) MarkSuccess(ctx context.Context, runID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return false, ErrNotFound
	}
	if run.Status == RunSuccess || run.Remaining != 0 || !run.SnapshotDone {
		return false, nil
	}
	run.Status = RunSuccess
	run.UpdatedAt = s.now().UTC()
	return true, nil
}

func (s *MemoryStore) copyRun(id int64) *Run {
	cp := *s.runs[id]
	return &cp
}

func (s *MemoryStore) lookupItem(runID int64, symbol string) *RunItem {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, item := range s.items[runID] {
		if item.Symbol == symbol {
			return item
		}
	}
	return nil
}

func containsStatus(statuses []ItemStatus, status ItemStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
