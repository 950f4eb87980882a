package logic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"nof0-refresh/internal/svc"
	"nof0-refresh/internal/types"
	refreshpkg "nof0-refresh/pkg/refresh"
)

type TriggerLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewTriggerLogic(ctx context.Context, svcCtx *svc.ServiceContext) *TriggerLogic {
	return &TriggerLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *TriggerLogic) Trigger(req *types.TriggerRequest) (*types.RunResponse, error) {
	tf, err := refreshpkg.ParseTimeframe(req.Timeframe)
	if err != nil {
		return nil, err
	}

	var run *refreshpkg.Run
	if at := strings.TrimSpace(req.At); at != "" {
		ts, perr := time.Parse(time.RFC3339, at)
		if perr != nil {
			return nil, fmt.Errorf("%w: at must be RFC3339: %v", errBadRequest, perr)
		}
		run, err = l.svcCtx.Orchestrator.AskForRefreshAt(l.ctx, tf, ts)
	} else {
		run, err = l.svcCtx.Orchestrator.AskForRefresh(l.ctx, tf)
	}
	if err != nil {
		return nil, err
	}
	l.Infof("manual trigger tf=%s run=%d status=%s", tf, run.ID, run.Status)
	return toRunResponse(run, nil), nil
}
