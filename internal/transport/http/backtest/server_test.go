package backtesthttp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratlab/internal/backtest"
)

func newTestServer(t *testing.T) (*Server, *backtest.RunStore) {
	t.Helper()
	runs, err := backtest.NewRunStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = runs.Close() })

	srv, err := NewServer(Config{
		Engine: backtest.NewEngine(backtest.EngineConfig{}),
		Runs:   runs,
	})
	require.NoError(t, err)
	return srv, runs
}

func postJSON(t *testing.T, srv *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func syntheticRunRequest() map[string]any {
	return map[string]any{
		"synthetic": true,
		"seed":      42,
		"bars":      300,
		"strategy": json.RawMessage(`{
			"name": "RSI Reversion",
			"timeframe": "1h",
			"entryConditions": [
				{"indicator": "RSI", "operator": "<", "value": 45, "params": {"period": 14}}
			],
			"exitConditions": [
				{"indicator": "RSI", "operator": ">", "value": 55, "params": {"period": 14}}
			],
			"stopLossPct": 0.02,
			"takeProfitPct": 0.05,
			"riskParametersEnabled": true
		}`),
	}
}

func TestHandleRunPersistsStats(t *testing.T) {
	srv, runs := newTestServer(t)

	w := postJSON(t, srv, "/api/backtest/run", syntheticRunRequest())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		RunID string          `json:"run_id"`
		Stats backtest.Result `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.RunID)

	run, ok, err := runs.GetRun(context.Background(), resp.RunID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, backtest.RunKindBacktest, run.Kind)
	assert.Equal(t, backtest.RunStatusDone, run.Status)
	require.NotNil(t, run.Stats)
	assert.Equal(t, resp.Stats.TotalTrades, run.Stats.TotalTrades)
	assert.InDelta(t, resp.Stats.TotalPnL, run.Stats.TotalPnL, 1e-9)
	assert.Equal(t, 300, run.Candles)
}

func TestHandleRunRejectsInvalidStrategy(t *testing.T) {
	srv, runs := newTestServer(t)

	body := syntheticRunRequest()
	body["strategy"] = json.RawMessage(`{"name": "x", "timeframe": "1h"}`)
	w := postJSON(t, srv, "/api/backtest/run", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	list, err := runs.ListRuns(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestHandleRunWithoutDataService(t *testing.T) {
	srv, _ := newTestServer(t)

	body := syntheticRunRequest()
	body["synthetic"] = false
	body["symbol"] = "BTCUSDT"
	w := postJSON(t, srv, "/api/backtest/run", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
