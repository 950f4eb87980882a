package model

import (
	"context"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ RefreshRunsModel = (*customRefreshRunsModel)(nil)

type (
	// RefreshRunsModel is an interface to be customized, add more methods here,
	// and implement the added methods in customRefreshRunsModel.
	RefreshRunsModel interface {
		refreshRunsModel
		FindActiveBySlot(ctx context.Context, timeframe string, slotStart time.Time) (*RefreshRuns, error)
		FindLastSuccessBefore(ctx context.Context, timeframe string, cutoff time.Time) (*RefreshRuns, error)
	}

	customRefreshRunsModel struct {
		*defaultRefreshRunsModel
	}
)

// NewRefreshRunsModel returns a model for the database table.
func NewRefreshRunsModel(conn sqlx.SqlConn) RefreshRunsModel {
	return &customRefreshRunsModel{
		defaultRefreshRunsModel: newRefreshRunsModel(conn),
	}
}

// FindActiveBySlot returns the CREATED or RUNNING run of a slot.
func (m *customRefreshRunsModel) FindActiveBySlot(ctx context.Context, timeframe string, slotStart time.Time) (*RefreshRuns, error) {
	query := fmt.Sprintf(`select %s from %s
where timeframe = $1 and slot_start = $2 and status in ('CREATED', 'RUNNING')
limit 1`, refreshRunsRows, m.table)
	var resp RefreshRuns
	switch err := m.conn.QueryRowCtx(ctx, &resp, query, timeframe, slotStart); err {
	case nil:
		return &resp, nil
	case sqlx.ErrNotFound:
		return nil, ErrNotFound
	default:
		return nil, err
	}
}

// FindLastSuccessBefore returns the most recent SUCCESS run whose slot ends
// at or before cutoff.
func (m *customRefreshRunsModel) FindLastSuccessBefore(ctx context.Context, timeframe string, cutoff time.Time) (*RefreshRuns, error) {
	query := fmt.Sprintf(`select %s from %s
where timeframe = $1 and status = 'SUCCESS' and slot_end <= $2
order by slot_end desc
limit 1`, refreshRunsRows, m.table)
	var resp RefreshRuns
	switch err := m.conn.QueryRowCtx(ctx, &resp, query, timeframe, cutoff); err {
	case nil:
		return &resp, nil
	case sqlx.ErrNotFound:
		return nil, ErrNotFound
	default:
		return nil, err
	}
}
