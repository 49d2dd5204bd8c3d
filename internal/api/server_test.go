// Package api_test provides tests for the API server.
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/atlas-desktop/papertrade-engine/internal/api"
	"github.com/atlas-desktop/papertrade-engine/internal/metrics"
	"github.com/atlas-desktop/papertrade-engine/internal/orchestrator"
	"github.com/atlas-desktop/papertrade-engine/internal/risk"
	"github.com/atlas-desktop/papertrade-engine/pkg/types"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeUpdater struct {
	quotes []types.MarketQuote
	err    error
}

func (f *fakeUpdater) Process(_ context.Context, quotes []types.MarketQuote) (*orchestrator.Result, error) {
	f.quotes = quotes
	if f.err != nil {
		return nil, f.err
	}
	if len(quotes) == 0 {
		return nil, types.ErrNoQuotes
	}
	return &orchestrator.Result{PositionsUpdated: len(quotes), PositionsClosed: 1}, nil
}

type fakeRisk struct {
	lastRequest risk.RiskRequest
	scenarios   []types.StressScenario
	err         error
}

func (f *fakeRisk) CalculatePortfolioRisk(_ context.Context, id string, req risk.RiskRequest) (*types.RiskMetrics, error) {
	f.lastRequest = req
	if f.err != nil {
		return nil, f.err
	}
	return &types.RiskMetrics{ID: "snap-1", PortfolioID: id, VaR: 42}, nil
}

func (f *fakeRisk) RiskHistory(_ context.Context, id string, limit int) ([]*types.RiskMetrics, error) {
	return []*types.RiskMetrics{{ID: "a", PortfolioID: id}}, f.err
}

func (f *fakeRisk) RunStressTest(_ context.Context, _ string, scenarios []types.StressScenario) ([]types.StressTestResult, error) {
	f.scenarios = scenarios
	return []types.StressTestResult{{ScenarioName: "Market Crash"}}, f.err
}

func (f *fakeRisk) SimulateMonteCarlo(_ context.Context, id string, req types.MonteCarloRequest) (*types.MonteCarloSimulation, error) {
	return &types.MonteCarloSimulation{PortfolioID: id, Request: req}, f.err
}

func (f *fakeRisk) LiquidityRisk(_ context.Context, id string) (*types.LiquidityRisk, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &types.LiquidityRisk{PortfolioID: id, LiquidityScore: 99}, nil
}

type fakePositions struct{}

func (fakePositions) FindByID(_ context.Context, id string) (*types.Position, error) {
	if id != "p1" {
		return nil, &types.NotFoundError{Entity: "position", ID: id}
	}
	return &types.Position{
		ID:         "p1",
		Symbol:     "AAPL",
		Side:       types.PositionSideLong,
		Quantity:   decimal.NewFromInt(10),
		EntryPrice: decimal.NewFromInt(100),
		StopLoss:   decimal.NewNullDecimal(decimal.NewFromInt(95)),
		Status:     types.PositionStatusOpen,
	}, nil
}

func (fakePositions) ListClosedPnL(context.Context, string) ([]decimal.Decimal, error) {
	return []decimal.Decimal{decimal.NewFromInt(100), decimal.NewFromInt(-50)}, nil
}

type testEnv struct {
	ts      *httptest.Server
	updater *fakeUpdater
	risk    *fakeRisk
	hub     *api.Hub
}

func setupTestServer(t *testing.T, cfg api.Config) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	reg := prometheus.NewRegistry()

	env := &testEnv{
		updater: &fakeUpdater{},
		risk:    &fakeRisk{},
		hub:     api.NewHub(logger),
	}
	ctx, cancel := context.WithCancel(context.Background())
	go env.hub.Run(ctx)

	server := api.NewServer(logger, cfg, api.Dependencies{
		Updater:   env.updater,
		Risk:      env.risk,
		Positions: fakePositions{},
		Hub:       env.hub,
		Metrics:   metrics.New(reg),
		Gatherer:  reg,
	})
	env.ts = httptest.NewServer(server.Handler())
	t.Cleanup(func() {
		env.ts.Close()
		cancel()
	})
	return env
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(bytes.TrimSpace(raw)) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func TestHealthEndpoint(t *testing.T) {
	env := setupTestServer(t, api.Config{})

	resp, body := doJSON(t, http.MethodGet, env.ts.URL+"/api/v1/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
}

func TestQuotesEndpoint(t *testing.T) {
	env := setupTestServer(t, api.Config{})

	resp, body := doJSON(t, http.MethodPost, env.ts.URL+"/api/v1/market/quotes",
		`{"quotes":[{"symbol":"AAPL","price":"101.5"},{"symbol":"MSFT","price":300}]}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2.0, body["positionsUpdated"])
	require.Len(t, env.updater.quotes, 2)
	assert.True(t, env.updater.quotes[0].Price.Equal(decimal.RequireFromString("101.5")))

	resp, body = doJSON(t, http.MethodPost, env.ts.URL+"/api/v1/market/quotes", `{"quotes":[]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, types.ErrNoQuotes.Error(), body["error"])

	resp, _ = doJSON(t, http.MethodPost, env.ts.URL+"/api/v1/market/quotes", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQuotesEndpointHidesFailureCause(t *testing.T) {
	env := setupTestServer(t, api.Config{})
	env.updater.err = &types.OperationError{
		Op:   "close position",
		Kind: types.ErrMarketUpdateFailed,
		Err:  errors.New("pq: deadlock detected"),
	}

	resp, body := doJSON(t, http.MethodPost, env.ts.URL+"/api/v1/market/quotes", `{"quotes":[{"symbol":"AAPL","price":1}]}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, types.ErrMarketUpdateFailed.Error(), body["error"])
}

func TestPositionTriggers(t *testing.T) {
	env := setupTestServer(t, api.Config{})

	resp, body := doJSON(t, http.MethodGet, env.ts.URL+"/api/v1/positions/p1/triggers?price=94", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stop := body["stopLoss"].(map[string]interface{})
	assert.Equal(t, true, stop["set"])
	assert.Equal(t, true, stop["triggered"])
	take := body["takeProfit"].(map[string]interface{})
	assert.Equal(t, false, take["set"])

	resp, _ = doJSON(t, http.MethodGet, env.ts.URL+"/api/v1/positions/p1/triggers", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, env.ts.URL+"/api/v1/positions/nope/triggers?price=1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRiskEndpoints(t *testing.T) {
	env := setupTestServer(t, api.Config{})

	resp, body := doJSON(t, http.MethodGet, env.ts.URL+"/api/v1/portfolios/pf-1/risk?confidence=0.99&horizon=60", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pf-1", body["portfolioId"])
	assert.Equal(t, 0.99, env.risk.lastRequest.ConfidenceLevel)
	assert.Equal(t, 60, env.risk.lastRequest.LookbackDays)

	resp, _ = doJSON(t, http.MethodGet, env.ts.URL+"/api/v1/portfolios/pf-1/risk?confidence=1.5", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, env.ts.URL+"/api/v1/portfolios/pf-1/risk/history?limit=5", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1.0, body["count"])

	resp, _ = doJSON(t, http.MethodGet, env.ts.URL+"/api/v1/portfolios/pf-1/risk/history?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, env.ts.URL+"/api/v1/portfolios/pf-1/liquidity", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 99.0, body["liquidityScore"])

	env.risk.err = &types.NotFoundError{Entity: "portfolio", ID: "pf-1"}
	resp, _ = doJSON(t, http.MethodGet, env.ts.URL+"/api/v1/portfolios/pf-1/liquidity", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStressTestEndpoint(t *testing.T) {
	env := setupTestServer(t, api.Config{})

	resp, _ := doJSON(t, http.MethodPost, env.ts.URL+"/api/v1/portfolios/pf-1/stress-test", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, env.risk.scenarios)

	resp, _ = doJSON(t, http.MethodPost, env.ts.URL+"/api/v1/portfolios/pf-1/stress-test",
		`{"scenarios":[{"name":"Tech Selloff","marketChangePercent":-15,"volatilityMultiplier":2,"assetShocks":{"AAPL":-25}}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, env.risk.scenarios, 1)
	assert.Equal(t, -25.0, env.risk.scenarios[0].AssetShocks["AAPL"])

	resp, _ = doJSON(t, http.MethodPost, env.ts.URL+"/api/v1/portfolios/pf-1/stress-test",
		`{"scenarios":[{"name":"","marketChangePercent":-15}]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMonteCarloEndpoint(t *testing.T) {
	env := setupTestServer(t, api.Config{})

	resp, body := doJSON(t, http.MethodPost, env.ts.URL+"/api/v1/portfolios/pf-1/monte-carlo",
		`{"numberOfSimulations":500,"timeHorizon":"3M","seed":7}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	req := body["request"].(map[string]interface{})
	assert.Equal(t, "3M", req["timeHorizon"])

	resp, _ = doJSON(t, http.MethodPost, env.ts.URL+"/api/v1/portfolios/pf-1/monte-carlo", `{"timeHorizon":"2Y"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, env.ts.URL+"/api/v1/portfolios/pf-1/monte-carlo", `{"numberOfSimulations":1000000}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPerformanceEndpoints(t *testing.T) {
	env := setupTestServer(t, api.Config{})

	resp, body := doJSON(t, http.MethodPost, env.ts.URL+"/api/v1/performance", `{"pnls":[100,-50,"25.5"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3.0, body["totalTrades"])
	assert.Equal(t, 2.0, body["winningTrades"])

	resp, body = doJSON(t, http.MethodGet, env.ts.URL+"/api/v1/owners/u1/performance", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2.0, body["totalTrades"])
	assert.Equal(t, 50.0, body["totalPnl"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupTestServer(t, api.Config{})

	doJSON(t, http.MethodGet, env.ts.URL+"/api/v1/health", "")

	resp, err := http.Get(env.ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `papertrade_http_requests_total{method="GET",route="/api/v1/health",status="200"} 1`)
}

func TestRateLimit(t *testing.T) {
	env := setupTestServer(t, api.Config{RateLimitRPS: 0.001, RateLimitBurst: 1})

	resp, _ := doJSON(t, http.MethodGet, env.ts.URL+"/api/v1/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, env.ts.URL+"/api/v1/health", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestWebSocketSubscriptions(t *testing.T) {
	env := setupTestServer(t, api.Config{})

	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	channel := orchestrator.PositionChannel("u1")
	require.NoError(t, conn.WriteJSON(api.WSMessage{Type: api.MsgTypeSubscribe, Channel: channel}))

	var ack api.WSMessage
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, api.MsgTypeSubscribed, ack.Type)
	assert.Equal(t, channel, ack.Channel)

	// Events on other channels are not delivered.
	env.hub.Notify(orchestrator.Event{Type: orchestrator.EventAlertTriggered, Channel: orchestrator.AlertChannel("u1")})
	env.hub.Notify(orchestrator.Event{
		Type:    orchestrator.EventPositionClosed,
		Channel: channel,
		Symbol:  "AAPL",
		Data:    map[string]string{"positionId": "p1"},
	})

	var event api.WSMessage
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, api.MessageType(orchestrator.EventPositionClosed), event.Type)
	assert.Equal(t, channel, event.Channel)
	assert.JSONEq(t, `{"positionId":"p1"}`, string(event.Data))

	require.NoError(t, conn.WriteJSON(api.WSMessage{Type: api.MsgTypePing}))
	var pong api.WSMessage
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, api.MsgTypePong, pong.Type)
}
