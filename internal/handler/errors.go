package handler

import (
	"errors"
	"net/http"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest/httpx"

	"nof0-refresh/internal/logic"
	"nof0-refresh/internal/types"
	refreshpkg "nof0-refresh/pkg/refresh"
)

type parseError struct{ err error }

func (e parseError) Error() string { return e.err.Error() }
func (e parseError) Unwrap() error { return e.err }

func badRequest(err error) error { return parseError{err: err} }

// writeError maps errors onto status codes. Workers retry on 5xx only, so
// input errors must stay 4xx.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	var pe parseError
	switch {
	case errors.As(err, &pe), logic.IsBadRequest(err):
		code = http.StatusBadRequest
	case errors.Is(err, refreshpkg.ErrNotFound):
		code = http.StatusNotFound
	default:
		logx.WithContext(r.Context()).Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	httpx.WriteJsonCtx(r.Context(), w, code, types.ErrorResponse{Error: err.Error()})
}
