package logic

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"nof0-refresh/internal/svc"
	"nof0-refresh/internal/types"
	refreshpkg "nof0-refresh/pkg/refresh"
)

type CallbackLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewCallbackLogic(ctx context.Context, svcCtx *svc.ServiceContext) *CallbackLogic {
	return &CallbackLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Callback applies one worker outcome. Unknown runs or symbols are accepted
// so the worker stops retrying them.
func (l *CallbackLogic) Callback(req *types.CallbackRequest) (*types.CallbackResponse, error) {
	status, err := refreshpkg.ParseTerminalStatus(req.Status)
	if err != nil {
		return nil, err
	}
	err = l.svcCtx.Orchestrator.HandleTerminalCallback(l.ctx, refreshpkg.TerminalCallback{
		RunID:  req.RunID,
		Symbol: req.Symbol,
		Status: status,
		Error:  req.Error,
	})
	if err != nil {
		return nil, err
	}
	return &types.CallbackResponse{Accepted: true}, nil
}
