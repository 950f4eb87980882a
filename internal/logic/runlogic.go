package logic

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/redis"

	"nof0-refresh/internal/cache"
	"nof0-refresh/internal/svc"
	"nof0-refresh/internal/types"
	refreshpkg "nof0-refresh/pkg/refresh"
)

var errBadRequest = errors.New("bad request")

// IsBadRequest reports whether err was caused by malformed input.
func IsBadRequest(err error) bool {
	return errors.Is(err, errBadRequest) ||
		errors.Is(err, refreshpkg.ErrInvalidStatus) ||
		errors.Is(err, refreshpkg.ErrUnknownTimeframe)
}

type RunLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewRunLogic(ctx context.Context, svcCtx *svc.ServiceContext) *RunLogic {
	return &RunLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Run renders a run and optionally its items. Finished runs never change, so
// their payload is cached in Redis when it is configured.
func (l *RunLogic) Run(req *types.RunRequest) (*types.RunResponse, error) {
	key := cache.RunKey(req.ID)
	if req.Items {
		key = cache.FormatCacheKey(key, "items")
	}
	if resp, ok := l.cached(key); ok {
		return resp, nil
	}

	store := l.svcCtx.Store
	run, err := store.FindRun(l.ctx, req.ID)
	if err != nil {
		return nil, err
	}
	var items []refreshpkg.RunItem
	if req.Items {
		if items, err = store.ListItems(l.ctx, run.ID); err != nil {
			return nil, err
		}
	}
	resp := toRunResponse(run, items)
	if run.Status == refreshpkg.RunSuccess {
		l.store(key, resp)
	}
	return resp, nil
}

func (l *RunLogic) cached(key string) (*types.RunResponse, bool) {
	rds := l.svcCtx.Redis
	if rds == nil {
		return nil, false
	}
	val, err := rds.GetCtx(l.ctx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			l.Errorf("run cache get %s: %v", key, err)
		}
		return nil, false
	}
	if val == "" {
		return nil, false
	}
	var resp types.RunResponse
	if err := json.Unmarshal([]byte(val), &resp); err != nil {
		l.Errorf("run cache decode %s: %v", key, err)
		return nil, false
	}
	return &resp, true
}

func (l *RunLogic) store(key string, resp *types.RunResponse) {
	rds := l.svcCtx.Redis
	if rds == nil {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	ttl := cache.RunTTL(l.svcCtx.TTL)
	if err := rds.SetexCtx(l.ctx, key, string(data), int(ttl/time.Second)); err != nil {
		l.Errorf("run cache set %s: %v", key, err)
	}
}

func toRunResponse(run *refreshpkg.Run, items []refreshpkg.RunItem) *types.RunResponse {
	resp := &types.RunResponse{
		ID:             run.ID,
		Timeframe:      run.Timeframe.String(),
		SlotStart:      run.SlotStart.UTC().Format(time.RFC3339),
		SlotEnd:        run.SlotEnd.UTC().Format(time.RFC3339),
		Status:         string(run.Status),
		SnapshotDone:   run.SnapshotDone,
		SnapshotSource: string(run.SnapshotSource),
		SnapshotCount:  run.SnapshotCount,
		Enqueued:       run.Enqueued,
		Completed:      run.Completed,
		Failed:         run.Failed,
		Skipped:        run.Skipped,
		Remaining:      run.Remaining,
	}
	for _, item := range items {
		resp.Items = append(resp.Items, types.RunItem{
			Symbol:    item.Symbol,
			Status:    string(item.Status),
			Error:     item.Error,
			UpdatedAt: item.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return resp
}
