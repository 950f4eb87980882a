package refreshpersist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"nof0-refresh/internal/model"
	"nof0-refresh/pkg/refresh"
)

var _ refresh.Store = (*Store)(nil)

const pgUniqueViolation = "23505"

// counterColumns maps a terminal status to the run counter it bumps.
var counterColumns = map[refresh.ItemStatus]string{
	refresh.ItemDone:    "completed",
	refresh.ItemFailed:  "failed",
	refresh.ItemSkipped: "skipped",
}

// Store persists runs and items in Postgres. Every mutation is a single
// conditional statement or one transaction, so concurrent processes can
// share the tables without further coordination.
type Store struct {
	conn  sqlx.SqlConn
	runs  model.RefreshRunsModel
	items model.RefreshRunItemsModel
}

// Config enumerates dependencies required to persist refresh runs.
type Config struct {
	SQLConn    sqlx.SqlConn
	RunsModel  model.RefreshRunsModel
	ItemsModel model.RefreshRunItemsModel
}

// NewStore wires a Postgres store. Models default to ones built on SQLConn.
func NewStore(cfg Config) (*Store, error) {
	if cfg.SQLConn == nil {
		return nil, errors.New("refreshstore: sql connection is required")
	}
	if cfg.RunsModel == nil {
		cfg.RunsModel = model.NewRefreshRunsModel(cfg.SQLConn)
	}
	if cfg.ItemsModel == nil {
		cfg.ItemsModel = model.NewRefreshRunItemsModel(cfg.SQLConn)
	}
	return &Store{conn: cfg.SQLConn, runs: cfg.RunsModel, items: cfg.ItemsModel}, nil
}

func (s *Store) GetOrCreate(ctx context.Context, tf refresh.Timeframe, slotStart, slotEnd time.Time) (*refresh.Run, error) {
	if !tf.Valid() {
		return nil, fmt.Errorf("%w %d", refresh.ErrUnknownTimeframe, int(tf))
	}
	slotStart, slotEnd = slotStart.UTC(), slotEnd.UTC()
	row, err := s.runs.FindOneByTimeframeSlotStart(ctx, tf.String(), slotStart)
	if err == nil {
		return toRun(row)
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("refreshstore: find run tf=%s: %w", tf, err)
	}

	const insert = `
INSERT INTO public.refresh_runs (
    timeframe, slot_start, slot_end, status, snapshot_done, snapshot_count,
    enqueued, completed, failed, skipped, remaining, created_at, updated_at
) VALUES (
    $1, $2, $3, 'CREATED', FALSE, 0,
    0, 0, 0, 0, 0, NOW(), NOW()
)
RETURNING id`
	var id int64
	if err := s.conn.QueryRowCtx(ctx, &id, insert, tf.String(), slotStart, slotEnd); err != nil {
		if !isUniqueViolation(err) {
			return nil, fmt.Errorf("refreshstore: insert run tf=%s: %w", tf, err)
		}
		logx.WithContext(ctx).Debugf("refreshstore: run tf=%s slot=%s created concurrently", tf, slotStart.Format(time.RFC3339))
		row, err = s.runs.FindOneByTimeframeSlotStart(ctx, tf.String(), slotStart)
	} else {
		row, err = s.runs.FindOne(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("refreshstore: reload run tf=%s: %w", tf, mapNotFound(err))
	}
	return toRun(row)
}

func (s *Store) FindRun(ctx context.Context, runID int64) (*refresh.Run, error) {
	row, err := s.runs.FindOne(ctx, runID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return toRun(row)
}

func (s *Store) FindActiveOrCreated(ctx context.Context, tf refresh.Timeframe, slotStart time.Time) (*refresh.Run, error) {
	row, err := s.runs.FindActiveBySlot(ctx, tf.String(), slotStart.UTC())
	if err != nil {
		return nil, mapNotFound(err)
	}
	return toRun(row)
}

func (s *Store) FindLastSuccessBefore(ctx context.Context, tf refresh.Timeframe, cutoff time.Time) (*refresh.Run, error) {
	row, err := s.runs.FindLastSuccessBefore(ctx, tf.String(), cutoff.UTC())
	if err != nil {
		return nil, mapNotFound(err)
	}
	return toRun(row)
}

func (s *Store) SaveSnapshot(ctx context.Context, runID int64, source refresh.SnapshotSource, symbols []string) (bool, error) {
	symbols = refresh.NormalizeSymbols(symbols)
	applied := false
	err := s.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		var done bool
		lockRun := `SELECT snapshot_done FROM public.refresh_runs WHERE id = $1 FOR UPDATE`
		if err := session.QueryRowCtx(ctx, &done, lockRun, runID); err != nil {
			return mapNotFound(err)
		}
		if done {
			return nil
		}
		if len(symbols) > 0 {
			insertItems := `
INSERT INTO public.refresh_run_items (run_id, symbol, status, created_at, updated_at)
SELECT $1, t.symbol, 'PENDING', NOW(), NOW()
FROM unnest($2::text[]) WITH ORDINALITY AS t(symbol, ord)
ORDER BY t.ord`
			if _, err := session.ExecCtx(ctx, insertItems, runID, pq.Array(symbols)); err != nil {
				return fmt.Errorf("insert items: %w", err)
			}
		}
		markDone := `
UPDATE public.refresh_runs
SET snapshot_done = TRUE, snapshot_source = $2, snapshot_count = $3, remaining = $3, updated_at = NOW()
WHERE id = $1`
		if _, err := session.ExecCtx(ctx, markDone, runID, string(source), len(symbols)); err != nil {
			return fmt.Errorf("mark snapshot done: %w", err)
		}
		applied = true
		return nil
	})
	if err != nil {
		if errors.Is(err, refresh.ErrNotFound) {
			return false, err
		}
		return false, fmt.Errorf("refreshstore: save snapshot run=%d: %w", runID, err)
	}
	return applied, nil
}

func (s *Store) ListItems(ctx context.Context, runID int64, statuses ...refresh.ItemStatus) ([]refresh.RunItem, error) {
	filter := make([]string, 0, len(statuses))
	for _, status := range statuses {
		filter = append(filter, string(status))
	}
	rows, err := s.items.ListByRun(ctx, runID, filter)
	if err != nil {
		return nil, fmt.Errorf("refreshstore: %w", err)
	}
	out := make([]refresh.RunItem, 0, len(rows))
	for i := range rows {
		out = append(out, toItem(&rows[i]))
	}
	return out, nil
}

func (s *Store) FindItem(ctx context.Context, runID int64, symbol string) (*refresh.RunItem, error) {
	row, err := s.items.FindOneByRunIdSymbol(ctx, runID, normalizeSymbol(symbol))
	if err != nil {
		return nil, mapNotFound(err)
	}
	item := toItem(row)
	return &item, nil
}

func (s *Store) MarkRunning(ctx context.Context, runID int64) (bool, error) {
	const stmt = `UPDATE public.refresh_runs SET status = 'RUNNING', updated_at = NOW() WHERE id = $1 AND status = 'CREATED'`
	return s.execAffected(ctx, "mark running", stmt, runID)
}

func (s *Store) MarkEnqueued(ctx context.Context, runID, itemID int64) (bool, error) {
	claimed := false
	err := s.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		claim := `
UPDATE public.refresh_run_items SET status = 'ENQUEUED', updated_at = NOW()
WHERE id = $1 AND run_id = $2 AND status = 'PENDING'`
		res, err := session.ExecCtx(ctx, claim, itemID, runID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil || n == 0 {
			return err
		}
		bump := `UPDATE public.refresh_runs SET enqueued = enqueued + 1, updated_at = NOW() WHERE id = $1`
		if _, err := session.ExecCtx(ctx, bump, runID); err != nil {
			return err
		}
		claimed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("refreshstore: mark enqueued run=%d item=%d: %w", runID, itemID, err)
	}
	return claimed, nil
}

func (s *Store) ApplyTerminal(ctx context.Context, runID int64, symbol string, status refresh.ItemStatus, errMsg string) (bool, error) {
	column, ok := counterColumns[status]
	if !ok {
		return false, fmt.Errorf("%w %q", refresh.ErrInvalidStatus, status)
	}
	symbol = normalizeSymbol(symbol)
	errValue := sql.NullString{String: errMsg, Valid: strings.TrimSpace(errMsg) != ""}

	applied := false
	err := s.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		settle := `
UPDATE public.refresh_run_items SET status = $3, error = $4, updated_at = NOW()
WHERE run_id = $1 AND symbol = $2 AND status IN ('PENDING', 'ENQUEUED')`
		res, err := session.ExecCtx(ctx, settle, runID, symbol, string(status), errValue)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			var exists bool
			probe := `SELECT EXISTS (SELECT 1 FROM public.refresh_run_items WHERE run_id = $1 AND symbol = $2)`
			if err := session.QueryRowCtx(ctx, &exists, probe, runID, symbol); err != nil {
				return err
			}
			if !exists {
				return refresh.ErrNotFound
			}
			return nil
		}
		bump := fmt.Sprintf(`UPDATE public.refresh_runs SET %s = %s + 1, updated_at = NOW() WHERE id = $1`, column, column)
		if _, err := session.ExecCtx(ctx, bump, runID); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		if errors.Is(err, refresh.ErrNotFound) {
			return false, err
		}
		return false, fmt.Errorf("refreshstore: apply %s run=%d symbol=%s: %w", status, runID, symbol, err)
	}
	return applied, nil
}

func (s *Store) DecrementRemaining(ctx context.Context, runID int64) (int64, error) {
	const stmt = `UPDATE public.refresh_runs SET remaining = remaining - 1, updated_at = NOW() WHERE id = $1 AND remaining > 0`
	res, err := s.conn.ExecCtx(ctx, stmt, runID)
	if err != nil {
		return 0, fmt.Errorf("refreshstore: decrement run=%d: %w", runID, err)
	}
	return res.RowsAffected()
}

func (s *Store) MarkSuccess(ctx context.Context, runID int64) (bool, error) {
	const stmt = `
UPDATE public.refresh_runs SET status = 'SUCCESS', updated_at = NOW()
WHERE id = $1 AND status <> 'SUCCESS' AND remaining = 0 AND snapshot_done`
	return s.execAffected(ctx, "mark success", stmt, runID)
}

func (s *Store) execAffected(ctx context.Context, op, stmt string, args ...any) (bool, error) {
	res, err := s.conn.ExecCtx(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("refreshstore: %s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("refreshstore: %s rows affected: %w", op, err)
	}
	return n == 1, nil
}

func toRun(row *model.RefreshRuns) (*refresh.Run, error) {
	tf, err := refresh.ParseTimeframe(row.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("refreshstore: run=%d: %w", row.Id, err)
	}
	return &refresh.Run{
		ID:             row.Id,
		Timeframe:      tf,
		SlotStart:      row.SlotStart.UTC(),
		SlotEnd:        row.SlotEnd.UTC(),
		Status:         refresh.RunStatus(row.Status),
		SnapshotDone:   row.SnapshotDone,
		SnapshotSource: refresh.SnapshotSource(row.SnapshotSource.String),
		SnapshotCount:  int(row.SnapshotCount),
		Enqueued:       int(row.Enqueued),
		Completed:      int(row.Completed),
		Failed:         int(row.Failed),
		Skipped:        int(row.Skipped),
		Remaining:      int(row.Remaining),
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}, nil
}

func toItem(row *model.RefreshRunItems) refresh.RunItem {
	return refresh.RunItem{
		ID:        row.Id,
		RunID:     row.RunId,
		Symbol:    row.Symbol,
		Status:    refresh.ItemStatus(row.Status),
		Error:     row.Error.String,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, model.ErrNotFound) || errors.Is(err, sql.ErrNoRows) {
		return refresh.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
