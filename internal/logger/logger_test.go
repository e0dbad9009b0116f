package logger

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ducminhle1904/crypto-signal-trader/pkg/types"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, lvl)

	lvl, err = ParseLevel("WARNING")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, lvl)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

// TestNew_WritesDailyFile tests that the file core writes JSON into the dated file
func TestNew_WritesDailyFile(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Config{Level: "debug", Dir: dir})
	require.NoError(t, err)

	l.Debug("cycle finished", zap.Int("executed", 1))
	require.NoError(t, l.Close())

	assert.Contains(t, l.Path(), "trader_"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"msg":"cycle finished"`))
	assert.True(t, strings.Contains(string(data), `"executed":1`))
}

func TestNew_NoCores(t *testing.T) {
	l, err := New(Config{})
	require.NoError(t, err)
	l.Info("dropped")
	assert.Empty(t, l.Path())
	assert.NoError(t, l.Close())
}

func TestTradeHelpers(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	trade, err := types.NewTrade("tr-1", types.TradeCreate{
		SignalID: "sig-1", Symbol: "BTCUSDT", Side: types.SideBuy,
		EntryPrice: 50000, Quantity: 1, StopLossPrice: 49000, TakeProfitPrice: 52000,
	}, time.Now())
	require.NoError(t, err)

	TradeOpened(log, trade)
	ProtectionDegraded(log, "sig-1", "BTCUSDT", "stop_loss", errors.New("rejected"))

	require.NoError(t, trade.Close(types.TradeClose{ExitPrice: 52000, Status: types.TradeStatusTakeProfit, PnLAmount: 2000, PnLPercentage: 4, ClosedAt: time.Now()}))
	TradeClosed(log, trade)

	require.Equal(t, 3, logs.Len())
	entries := logs.All()
	assert.Equal(t, "trade opened", entries[0].Message)
	assert.Equal(t, false, entries[0].ContextMap()["fully_protected"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "stop_loss", entries[1].ContextMap()["leg"])

	assert.Equal(t, 2000.0, entries[2].ContextMap()["pnl"])
	assert.Equal(t, "TAKE_PROFIT", entries[2].ContextMap()["status"])
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := zap.NewExample()
	assert.Same(t, l, OrNop(l))
}
