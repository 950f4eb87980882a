package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"nof0-refresh/internal/logic"
	"nof0-refresh/internal/svc"
	"nof0-refresh/internal/types"
)

func UniverseHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.UniverseRequest
		if err := httpx.Parse(r, &req); err != nil {
			writeError(w, r, badRequest(err))
			return
		}

		l := logic.NewUniverseLogic(r.Context(), svcCtx)
		resp, err := l.Sync(&req)
		if err != nil {
			writeError(w, r, err)
		} else {
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}
