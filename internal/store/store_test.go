package store

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-signal-trader/pkg/types"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func buySignal(symbol string) types.SignalCreate {
	return types.SignalCreate{
		Symbol:          symbol,
		Side:            types.SideBuy,
		Confidence:      92,
		EntryPrice:      100,
		StopLossPrice:   95,
		TakeProfitPrice: 110,
	}
}

func tradeFor(signalID string) types.TradeCreate {
	return types.TradeCreate{
		SignalID:        signalID,
		Symbol:          "BTCUSDT",
		Side:            types.SideBuy,
		EntryPrice:      100,
		Quantity:        4,
		StopLossPrice:   95,
		TakeProfitPrice: 110,
	}
}

// storeFactories lets every behaviour test run against both drivers
func storeFactories(t *testing.T) map[string]func(clock *testClock) Store {
	return map[string]func(clock *testClock) Store{
		"memory": func(clock *testClock) Store {
			return NewMemoryStore(WithClock(clock.Now), WithIDGenerator(sequentialIDs("id")))
		},
		"file": func(clock *testClock) Store {
			s, err := NewFileStore(filepath.Join(t.TempDir(), "state.json"), WithClock(clock.Now), WithIDGenerator(sequentialIDs("id")))
			require.NoError(t, err)
			return s
		},
	}
}

// TestSignalLifecycle tests creation, ordering and status transitions
func TestSignalLifecycle(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := testContext(t)
			clock := &testClock{now: epoch}
			s := newStore(clock)

			first, err := s.CreateSignal(ctx, buySignal("btc/usdt"), time.Hour)
			require.NoError(t, err)
			assert.Equal(t, "BTCUSDT", first.Symbol)
			assert.Equal(t, types.SignalStatusPending, first.Status)
			require.NotNil(t, first.ExpiresAt)
			assert.Equal(t, epoch.Add(time.Hour), *first.ExpiresAt)

			second, err := s.CreateSignal(ctx, buySignal("ETHUSDT"), time.Hour)
			require.NoError(t, err)

			_, err = s.UpdateSignalStatus(ctx, second.ID, types.SignalStatusApproved, WithApprover("alice"))
			require.NoError(t, err)
			_, err = s.UpdateSignalStatus(ctx, first.ID, types.SignalStatusApproved, WithApprover("bob"))
			require.NoError(t, err)

			approved, err := s.GetApprovedSignals(ctx)
			require.NoError(t, err)
			require.Len(t, approved, 2)
			assert.Equal(t, first.ID, approved[0].ID, "listing follows creation order")
			assert.Equal(t, "bob", approved[0].ApprovedBy)
			require.NotNil(t, approved[0].ApprovedAt)

			_, err = s.UpdateSignalStatus(ctx, first.ID, types.SignalStatusPending)
			assert.ErrorIs(t, err, types.ErrInvalidTransition)

			_, err = s.GetSignal(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

// TestCreateSignalRejectsMalformed tests validation at the store boundary
func TestCreateSignalRejectsMalformed(t *testing.T) {
	s := NewMemoryStore()
	bad := buySignal("BTCUSDT")
	bad.StopLossPrice = 120

	_, err := s.CreateSignal(testContext(t), bad, time.Hour)
	var vErr *types.ValidationError
	assert.ErrorAs(t, err, &vErr)

	all, err := s.ListSignals(testContext(t))
	require.NoError(t, err)
	assert.Empty(t, all)
}

// TestExpireSignals tests the expiry sweep over PENDING and APPROVED signals
func TestExpireSignals(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := testContext(t)
			clock := &testClock{now: epoch}
			s := newStore(clock)

			pending, err := s.CreateSignal(ctx, buySignal("BTCUSDT"), time.Hour)
			require.NoError(t, err)
			approved, err := s.CreateSignal(ctx, buySignal("ETHUSDT"), time.Hour)
			require.NoError(t, err)
			_, err = s.UpdateSignalStatus(ctx, approved.ID, types.SignalStatusApproved)
			require.NoError(t, err)
			forever, err := s.CreateSignal(ctx, buySignal("SOLUSDT"), 0)
			require.NoError(t, err)

			n, err := s.ExpireSignals(ctx, epoch.Add(30*time.Minute))
			require.NoError(t, err)
			assert.Zero(t, n)

			n, err = s.ExpireSignals(ctx, epoch.Add(time.Hour))
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			for _, id := range []string{pending.ID, approved.ID} {
				got, err := s.GetSignal(ctx, id)
				require.NoError(t, err)
				assert.Equal(t, types.SignalStatusExpired, got.Status)
			}
			got, err := s.GetSignal(ctx, forever.ID)
			require.NoError(t, err)
			assert.Equal(t, types.SignalStatusPending, got.Status)
		})
	}
}

// TestTradeLifecycle tests creation, idempotence, order ids and closing
func TestTradeLifecycle(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := testContext(t)
			clock := &testClock{now: epoch}
			s := newStore(clock)

			trade, err := s.CreateTrade(ctx, tradeFor("sig-1"))
			require.NoError(t, err)
			assert.Equal(t, types.TradeStatusOpen, trade.Status)
			assert.Equal(t, epoch, trade.OpenedAt)

			_, err = s.CreateTrade(ctx, tradeFor("sig-1"))
			assert.ErrorIs(t, err, ErrDuplicateTrade)

			bySignal, err := s.GetTradeBySignal(ctx, "sig-1")
			require.NoError(t, err)
			assert.Equal(t, trade.ID, bySignal.ID)
			_, err = s.GetTradeBySignal(ctx, "sig-2")
			assert.ErrorIs(t, err, ErrNotFound)

			ids := types.OrderIDs{Entry: "e1", StopLoss: "s1", TakeProfit: "t1"}
			require.NoError(t, s.UpdateTradeOrderIDs(ctx, trade.ID, ids))

			count, err := s.GetOpenTradeCount(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, count)

			clock.Advance(time.Hour)
			closed, err := s.CloseTrade(ctx, trade.ID, types.TradeClose{
				ExitPrice:     95,
				Status:        types.TradeStatusStoppedOut,
				PnLAmount:     -20,
				PnLPercentage: -5,
			})
			require.NoError(t, err)
			assert.Equal(t, types.TradeStatusStoppedOut, closed.Status)
			assert.Equal(t, ids, closed.OrderIDs)
			require.NotNil(t, closed.ClosedAt)
			assert.Equal(t, epoch.Add(time.Hour), *closed.ClosedAt)

			_, err = s.CloseTrade(ctx, trade.ID, types.TradeClose{ExitPrice: 96, Status: types.TradeStatusClosed})
			assert.ErrorIs(t, err, types.ErrTradeClosed)

			open, err := s.GetOpenTrades(ctx)
			require.NoError(t, err)
			assert.Empty(t, open)

			all, err := s.ListTrades(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 1)

			assert.ErrorIs(t, s.UpdateTradeOrderIDs(ctx, "missing", ids), ErrNotFound)
		})
	}
}

// TestPortfolioHistory tests snapshot append and newest-first listing
func TestPortfolioHistory(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := testContext(t)
			clock := &testClock{now: epoch}
			s := newStore(clock)

			_, err := s.GetLatestPortfolio(ctx)
			assert.ErrorIs(t, err, ErrNotFound)

			for i := 0; i < 3; i++ {
				clock.Advance(time.Minute)
				require.NoError(t, s.UpdatePortfolio(ctx, types.PortfolioSnapshot{
					Asset:        "USDT",
					TotalBalance: float64(1000 + i),
				}))
			}

			latest, err := s.GetLatestPortfolio(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1002.0, latest.TotalBalance)
			assert.Equal(t, epoch.Add(3*time.Minute), latest.Timestamp)

			history, err := s.ListPortfolio(ctx, 2)
			require.NoError(t, err)
			require.Len(t, history, 2)
			assert.Equal(t, 1002.0, history[0].TotalBalance)
			assert.Equal(t, 1001.0, history[1].TotalBalance)

			err = s.UpdatePortfolio(ctx, types.PortfolioSnapshot{Asset: "USDT", TotalBalance: -1})
			assert.Error(t, err)
		})
	}
}

// TestFileStoreSharedBetweenHandles tests that two handles see each other's writes
func TestFileStoreSharedBetweenHandles(t *testing.T) {
	ctx := testContext(t)
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	runner, err := NewFileStore(path)
	require.NoError(t, err)
	operator, err := NewFileStore(path)
	require.NoError(t, err)

	sig, err := operator.CreateSignal(ctx, buySignal("BTCUSDT"), time.Hour)
	require.NoError(t, err)

	got, err := runner.GetSignal(ctx, sig.ID)
	require.NoError(t, err)
	assert.Equal(t, sig.ID, got.ID)

	_, err = runner.CreateTrade(ctx, tradeFor(sig.ID))
	require.NoError(t, err)

	_, err = operator.CreateTrade(ctx, tradeFor(sig.ID))
	assert.ErrorIs(t, err, ErrDuplicateTrade)

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	trades, err := reopened.ListTrades(ctx)
	require.NoError(t, err)
	assert.Len(t, trades, 1)

	_, err = os.Stat(path + ".lock")
	assert.True(t, os.IsNotExist(err), "lock released after write")
}

// TestFileStoreFailedSaveLeavesNoRecord tests that a write the file rejects is not kept in memory
func TestFileStoreFailedSaveLeavesNoRecord(t *testing.T) {
	ctx := testContext(t)
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)

	first, err := s.CreateSignal(ctx, buySignal("BTCUSDT"), time.Hour)
	require.NoError(t, err)
	second, err := s.CreateSignal(ctx, buySignal("ETHUSDT"), time.Hour)
	require.NoError(t, err)
	_, err = s.CreateTrade(ctx, tradeFor(first.ID))
	require.NoError(t, err)

	// a directory in place of the temp file makes the next save fail
	require.NoError(t, os.Mkdir(path+".tmp", 0755))
	_, err = s.CreateTrade(ctx, tradeFor(second.ID))
	require.Error(t, err)

	count, err := s.GetOpenTradeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	_, err = s.GetTradeBySignal(ctx, second.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, os.Remove(path+".tmp"))

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	trades, err := reopened.ListTrades(ctx)
	require.NoError(t, err)
	assert.Len(t, trades, 1)

	_, err = s.CreateTrade(ctx, tradeFor(second.ID))
	require.NoError(t, err)
}

// TestFileStoreFailedFirstSave tests rollback when no state file exists yet
func TestFileStoreFailedFirstSave(t *testing.T) {
	ctx := testContext(t)
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, os.Mkdir(path+".tmp", 0755))
	_, err = s.CreateSignal(ctx, buySignal("BTCUSDT"), time.Hour)
	require.Error(t, err)

	signals, err := s.ListSignals(ctx)
	require.NoError(t, err)
	assert.Empty(t, signals)
}

// TestFileStoreLocked tests that a held lock blocks writers until it goes stale
func TestFileStoreLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path+".lock", []byte("1"), 0644))
	old := time.Now().Add(-time.Minute)
	require.NoError(t, os.Chtimes(path+".lock", old, old))

	_, err = s.CreateSignal(testContext(t), buySignal("BTCUSDT"), 0)
	require.NoError(t, err, "stale lock is broken")
}

// TestFileStoreRejectsCorruptState tests validation on load
func TestFileStoreRejectsCorruptState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"signals":[{"id":"","status":"PENDING"}]}`), 0644))

	_, err := NewFileStore(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0644))
	_, err = NewFileStore(path)
	assert.Error(t, err)
}

// TestOpen tests driver selection
func TestOpen(t *testing.T) {
	s, err := Open("memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open("file", filepath.Join(t.TempDir(), "s.json"))
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = Open("postgres", "")
	assert.Error(t, err)
}
