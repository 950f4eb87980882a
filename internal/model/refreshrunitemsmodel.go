package model

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ RefreshRunItemsModel = (*customRefreshRunItemsModel)(nil)

type (
	// RefreshRunItemsModel is an interface to be customized, add more methods here,
	// and implement the added methods in customRefreshRunItemsModel.
	RefreshRunItemsModel interface {
		refreshRunItemsModel
		ListByRun(ctx context.Context, runID int64, statuses []string) ([]RefreshRunItems, error)
	}

	customRefreshRunItemsModel struct {
		*defaultRefreshRunItemsModel
	}
)

// NewRefreshRunItemsModel returns a model for the database table.
func NewRefreshRunItemsModel(conn sqlx.SqlConn) RefreshRunItemsModel {
	return &customRefreshRunItemsModel{
		defaultRefreshRunItemsModel: newRefreshRunItemsModel(conn),
	}
}

// ListByRun returns a run's items in insertion order. An empty statuses
// slice returns every item.
func (m *customRefreshRunItemsModel) ListByRun(ctx context.Context, runID int64, statuses []string) ([]RefreshRunItems, error) {
	const baseQuery = `select %s from %s
where run_id = $1
%s
order by id`

	args := []any{runID}
	clause := ""
	if len(statuses) > 0 {
		clause = "and status = ANY($2)"
		args = append(args, pq.Array(statuses))
	}

	var rows []RefreshRunItems
	query := fmt.Sprintf(baseQuery, refreshRunItemsRows, m.table, clause)
	if err := m.conn.QueryRowsCtx(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("refresh_run_items.ListByRun query: %w", err)
	}
	return rows, nil
}
