package logic

import (
	"context"
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"nof0-refresh/internal/svc"
	"nof0-refresh/internal/types"
	refreshpkg "nof0-refresh/pkg/refresh"
)

type UniverseLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewUniverseLogic(ctx context.Context, svcCtx *svc.ServiceContext) *UniverseLogic {
	return &UniverseLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Sync replaces the listed symbol set of one provider.
func (l *UniverseLogic) Sync(req *types.UniverseRequest) (*types.UniverseResponse, error) {
	if l.svcCtx.Assets == nil {
		return nil, fmt.Errorf("%w: universe sync requires postgres", errBadRequest)
	}
	provider := strings.TrimSpace(req.Provider)
	if provider == "" {
		return nil, fmt.Errorf("%w: provider is required", errBadRequest)
	}
	symbols := refreshpkg.NormalizeSymbols(req.Symbols)
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%w: symbols must not be empty", errBadRequest)
	}

	res, err := l.svcCtx.Assets.SyncUniverse(l.ctx, provider, symbols)
	if err != nil {
		return nil, err
	}
	l.Infof("universe sync provider=%s symbols=%d listed=%d delisted=%d",
		provider, len(symbols), res.Listed, res.Delisted)
	return &types.UniverseResponse{
		Provider: provider,
		Listed:   res.Listed,
		Delisted: res.Delisted,
	}, nil
}
