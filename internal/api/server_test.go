package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-signal-trader/internal/approval"
	"github.com/ducminhle1904/crypto-signal-trader/internal/monitoring"
	"github.com/ducminhle1904/crypto-signal-trader/internal/store"
	"github.com/ducminhle1904/crypto-signal-trader/pkg/reporting"
	"github.com/ducminhle1904/crypto-signal-trader/pkg/types"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*Server, *store.MemoryStore) {
	t.Helper()
	clock := func() time.Time { return testNow }
	st := store.NewMemoryStore(store.WithClock(clock))
	approvals := approval.NewService(st, approval.Policy{
		MinConfidence: 90, StopLossPct: 0.02, TakeProfitPct: 0.04, Expiry: 4 * time.Hour,
	}, nil, nil, approval.WithClock(clock))
	health := monitoring.NewHealthChecker(time.Hour)
	return NewServer(":0", st, approvals, health, monitoring.NewMetrics(), nil), st
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

// TestSignalLifecycleEndpoints tests submit, list, approve and reject over HTTP
func TestSignalLifecycleEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/signals", `{"symbol":"btc/usdt","signal_type":"buy","confidence":93,"entry_price":50000}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sig types.Signal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sig))
	assert.Equal(t, "BTCUSDT", sig.Symbol)
	assert.Equal(t, types.SideBuy, sig.Side)
	assert.InDelta(t, 49000, sig.StopLossPrice, 1e-6)

	rec = do(t, s, http.MethodPost, "/signals", `{"symbol":"ETHUSDT","signal_type":"SELL","confidence":50,"entry_price":2000}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/signals?status=pending", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Signals []types.Signal `json:"signals"`
		Count   int            `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)

	rec = do(t, s, http.MethodPost, "/signals/"+sig.ID+"/approve", `{"by":"alice"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sig))
	assert.Equal(t, types.SignalStatusApproved, sig.Status)
	assert.Equal(t, "alice", sig.ApprovedBy)

	rec = do(t, s, http.MethodPost, "/signals/"+sig.ID+"/reject", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, s, http.MethodPost, "/signals/unknown/approve", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodGet, "/signals?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestTradeEndpoints tests trades, stats and portfolio reads
func TestTradeEndpoints(t *testing.T) {
	s, st := newTestServer(t)
	ctx := context.Background()

	win, err := st.CreateTrade(ctx, types.TradeCreate{Symbol: "BTCUSDT", Side: types.SideBuy, EntryPrice: 50000, Quantity: 1, StopLossPrice: 49000, TakeProfitPrice: 52000})
	require.NoError(t, err)
	_, err = st.CloseTrade(ctx, win.ID, types.TradeClose{ExitPrice: 52000, Status: types.TradeStatusTakeProfit, PnLAmount: 2000, PnLPercentage: 4})
	require.NoError(t, err)
	_, err = st.CreateTrade(ctx, types.TradeCreate{Symbol: "ETHUSDT", Side: types.SideSell, EntryPrice: 2000, Quantity: 1, StopLossPrice: 2100, TakeProfitPrice: 1800})
	require.NoError(t, err)
	require.NoError(t, st.UpdatePortfolio(ctx, types.PortfolioSnapshot{Asset: "USDT", TotalBalance: 1000, AvailableBalance: 1000}))

	rec := do(t, s, http.MethodGet, "/trades?status=OPEN", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = do(t, s, http.MethodGet, "/trades/"+win.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"TAKE_PROFIT"`)

	rec = do(t, s, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats reporting.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.TotalTrades)
	assert.Equal(t, 1, stats.Wins)
	assert.Equal(t, 2000.0, stats.RealisedPnL)

	rec = do(t, s, http.MethodGet, "/portfolio?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_balance":1000`)

	rec = do(t, s, http.MethodGet, "/portfolio?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestHealthAndMetrics tests the observability endpoints
func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"starting"`)

	s.health.RecordCycle(testNow, 0, assert.AnError, nil)
	rec = do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	s.metrics.RecordCycle("ok", time.Second)
	rec = do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "signal_trader_cycles_total")
}
