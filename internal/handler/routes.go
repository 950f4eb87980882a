// Code scaffolded by goctl. Safe to edit.
// goctl 1.9.2

package handler

import (
	"net/http"

	"nof0-refresh/internal/svc"

	"github.com/zeromicro/go-zero/rest"
)

func RegisterHandlers(server *rest.Server, serverCtx *svc.ServiceContext) {
	server.AddRoutes(
		[]rest.Route{
			{
				Method:  http.MethodPost,
				Path:    "/refresh/callback",
				Handler: CallbackHandler(serverCtx),
			},
			{
				Method:  http.MethodPost,
				Path:    "/refresh/trigger",
				Handler: TriggerHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/refresh/runs/:id",
				Handler: RunHandler(serverCtx),
			},
			{
				Method:  http.MethodPost,
				Path:    "/refresh/universe",
				Handler: UniverseHandler(serverCtx),
			},
		},
	)
}
