package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"nof0-refresh/pkg/refresh"
)

// RunRecord captures a completed refresh cycle for audit and analysis.
type RunRecord struct {
	Timestamp      time.Time         `json:"timestamp"`
	Sequence       int               `json:"sequence"`
	RunID          int64             `json:"run_id"`
	Timeframe      string            `json:"timeframe"`
	SlotStart      time.Time         `json:"slot_start"`
	SlotEnd        time.Time         `json:"slot_end"`
	SnapshotSource string            `json:"snapshot_source,omitempty"`
	SnapshotCount  int               `json:"snapshot_count"`
	Enqueued       int               `json:"enqueued"`
	Completed      int               `json:"completed"`
	Failed         int               `json:"failed"`
	Skipped        int               `json:"skipped"`
	Reconciled     bool              `json:"reconciled"`
	Ready          []string          `json:"ready,omitempty"`
	Errors         map[string]string `json:"errors,omitempty"`
}

// NewRunRecord summarises run and its items.
func NewRunRecord(run *refresh.Run, items []refresh.RunItem) *RunRecord {
	rec := &RunRecord{
		RunID:          run.ID,
		Timeframe:      run.Timeframe.String(),
		SlotStart:      run.SlotStart.UTC(),
		SlotEnd:        run.SlotEnd.UTC(),
		SnapshotSource: string(run.SnapshotSource),
		SnapshotCount:  run.SnapshotCount,
		Enqueued:       run.Enqueued,
		Completed:      run.Completed,
		Failed:         run.Failed,
		Skipped:        run.Skipped,
		Reconciled:     run.Reconciled(),
	}
	for _, item := range items {
		switch item.Status {
		case refresh.ItemDone:
			rec.Ready = append(rec.Ready, item.Symbol)
		case refresh.ItemFailed, refresh.ItemSkipped:
			if rec.Errors == nil {
				rec.Errors = make(map[string]string)
			}
			rec.Errors[item.Symbol] = fmt.Sprintf("%s: %s", item.Status, item.Error)
		}
	}
	return rec
}

// Writer persists run records to a directory as JSON files (journal style).
type Writer struct {
	mu    sync.Mutex
	dir   string
	seq   int
	nowFn func() time.Time
}

// NewWriter constructs a journal writer.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		dir = "journal"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create %s: %w", dir, err)
	}
	return &Writer{dir: dir, nowFn: time.Now}, nil
}

// WriteRun writes a run record to a file named after its timeframe and slot.
func (w *Writer) WriteRun(rec *RunRecord) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("journal: nil record")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = w.nowFn()
	}
	w.seq++
	rec.Sequence = w.seq
	name := fmt.Sprintf("run_%s_%s_%d.json", rec.Timeframe, rec.SlotEnd.UTC().Format("20060102_150405"), rec.RunID)
	path := filepath.Join(w.dir, name)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Hook adapts the writer to a completion hook. Write failures are logged.
func (w *Writer) Hook() refresh.CompletionHook {
	return func(ctx context.Context, run *refresh.Run, items []refresh.RunItem) {
		path, err := w.WriteRun(NewRunRecord(run, items))
		if err != nil {
			logx.WithContext(ctx).Errorf("journal: write run=%d: %v", run.ID, err)
			return
		}
		logx.WithContext(ctx).Debugf("journal: run=%d written to %s", run.ID, path)
	}
}
