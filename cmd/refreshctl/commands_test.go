package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nof0-refresh/internal/types"
)

type captured struct {
	method string
	path   string
	query  string
	body   map[string]any
}

func fakeRefresher(t *testing.T, status int, reply any) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method, got.path, got.query = r.Method, r.URL.Path, r.URL.RawQuery
		if r.Body != nil && r.ContentLength != 0 {
			_ = json.NewDecoder(r.Body).Decode(&got.body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestTriggerCommand(t *testing.T) {
	srv, got := fakeRefresher(t, http.StatusOK, types.RunResponse{ID: 3, Timeframe: "1h", Status: "RUNNING"})
	triggerAt = ""

	out, err := execute(t, "--server", srv.URL, "trigger", "1H")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/refresh/trigger", got.path)
	assert.Equal(t, "1h", got.body["timeframe"])
	assert.Contains(t, out, `"status": "RUNNING"`)
}

func TestTriggerCommandRejectsUnknownTimeframe(t *testing.T) {
	_, err := execute(t, "trigger", "2h")
	assert.Error(t, err)
}

func TestCallbackCommand(t *testing.T) {
	srv, got := fakeRefresher(t, http.StatusOK, types.CallbackResponse{Accepted: true})

	out, err := execute(t, "--server", srv.URL, "callback", "12", "ethusdt", "failed", "--error", "worker crashed")
	require.NoError(t, err)
	assert.Equal(t, "/refresh/callback", got.path)
	assert.EqualValues(t, 12, got.body["runId"])
	assert.Equal(t, "FAILED", got.body["status"])
	assert.Equal(t, "worker crashed", got.body["error"])
	assert.Contains(t, out, `"accepted": true`)

	_, err = execute(t, "--server", srv.URL, "callback", "12", "ethusdt", "pending")
	assert.Error(t, err)
}

func TestShowCommandSurfacesAPIErrors(t *testing.T) {
	srv, got := fakeRefresher(t, http.StatusNotFound, types.ErrorResponse{Error: "refresh: not found"})

	_, err := execute(t, "--server", srv.URL, "show", "99", "--items")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh: not found")
	assert.Equal(t, http.MethodGet, got.method)
	assert.Equal(t, "/refresh/runs/99", got.path)
	assert.Contains(t, got.query, "items=true")
}

func TestUniverseCommand(t *testing.T) {
	srv, got := fakeRefresher(t, http.StatusOK, types.UniverseResponse{Provider: "hyperliquid", Listed: 2, Delisted: 1})

	out, err := execute(t, "--server", srv.URL, "universe", "hyperliquid", "btcusdt", "ETHUSDT", "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "/refresh/universe", got.path)
	assert.Equal(t, "hyperliquid", got.body["provider"])
	assert.Equal(t, []any{"BTCUSDT", "ETHUSDT"}, got.body["symbols"])
	assert.Contains(t, out, `"delisted": 1`)
}
