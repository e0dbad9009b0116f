package trader

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-signal-trader/internal/exchange"
	"github.com/ducminhle1904/crypto-signal-trader/internal/risk"
	"github.com/ducminhle1904/crypto-signal-trader/internal/store"
	"github.com/ducminhle1904/crypto-signal-trader/pkg/types"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type orderCall struct {
	Symbol string
	Side   types.Side
	Qty    float64
	Price  float64
}

// fakeExchange is a scripted venue recording every call
type fakeExchange struct {
	mu sync.Mutex

	balance    types.Balance
	balanceErr error
	prices     map[string]float64
	priceErr   error
	fillPrice  float64
	marketErr  error
	stopErr    error
	tpErr      error
	roundErr   error
	step       float64

	seq     int
	markets []orderCall
	stops   []orderCall
	tps     []orderCall
	cancels []string
}

func newFakeExchange(available float64) *fakeExchange {
	return &fakeExchange{
		balance: types.Balance{Asset: "USDT", Total: available, Available: available},
		prices:  map[string]float64{},
		step:    0.001,
	}
}

func (f *fakeExchange) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeExchange) GetName() string { return "fake" }

func (f *fakeExchange) GetBalance(ctx context.Context, asset string) (*types.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	b := f.balance
	return &b, nil
}

func (f *fakeExchange) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.priceErr != nil {
		return 0, f.priceErr
	}
	p, ok := f.prices[symbol]
	if !ok {
		return 0, exchange.ErrPriceUnavailable
	}
	return p, nil
}

func (f *fakeExchange) CreateMarketOrder(ctx context.Context, symbol string, side types.Side, qty float64) (*exchange.MarketOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markets = append(f.markets, orderCall{Symbol: symbol, Side: side, Qty: qty})
	if f.marketErr != nil {
		return nil, f.marketErr
	}
	return &exchange.MarketOrder{
		OrderID:      f.nextID("mkt"),
		Symbol:       symbol,
		Side:         side,
		Quantity:     qty,
		FilledQty:    qty,
		AvgFillPrice: f.fillPrice,
		Status:       "Filled",
	}, nil
}

func (f *fakeExchange) CreateStopOrder(ctx context.Context, symbol string, side types.Side, qty, stopPrice float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, orderCall{Symbol: symbol, Side: side, Qty: qty, Price: stopPrice})
	if f.stopErr != nil {
		return "", f.stopErr
	}
	return f.nextID("sl"), nil
}

func (f *fakeExchange) CreateTakeProfitOrder(ctx context.Context, symbol string, side types.Side, qty, price float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tps = append(f.tps, orderCall{Symbol: symbol, Side: side, Qty: qty, Price: price})
	if f.tpErr != nil {
		return "", f.tpErr
	}
	return f.nextID("tp"), nil
}

func (f *fakeExchange) CancelOrder(ctx context.Context, symbol, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, orderID)
	return nil
}

func (f *fakeExchange) RoundQuantity(ctx context.Context, symbol string, qty float64) (float64, error) {
	if f.roundErr != nil {
		return 0, f.roundErr
	}
	return risk.FloorToStep(qty, f.step), nil
}

// mockCloser is a PositionCloser double for call assertions
type mockCloser struct {
	mock.Mock
}

func (m *mockCloser) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockCloser) CreateMarketOrder(ctx context.Context, symbol string, side types.Side, qty float64) (*exchange.MarketOrder, error) {
	args := m.Called(ctx, symbol, side, qty)
	order, _ := args.Get(0).(*exchange.MarketOrder)
	return order, args.Error(1)
}

func (m *mockCloser) CancelOrder(ctx context.Context, symbol, orderID string) error {
	return m.Called(ctx, symbol, orderID).Error(0)
}

// failingStore wraps a store and fails selected operations
type failingStore struct {
	store.Store
	createTradeErr error
	closeTradeErr  error
	portfolioErr   error
}

func (f *failingStore) CreateTrade(ctx context.Context, c types.TradeCreate) (*types.Trade, error) {
	if f.createTradeErr != nil {
		return nil, f.createTradeErr
	}
	return f.Store.CreateTrade(ctx, c)
}

func (f *failingStore) CloseTrade(ctx context.Context, id string, c types.TradeClose) (*types.Trade, error) {
	if f.closeTradeErr != nil {
		return nil, f.closeTradeErr
	}
	return f.Store.CloseTrade(ctx, id, c)
}

func (f *failingStore) UpdatePortfolio(ctx context.Context, snap types.PortfolioSnapshot) error {
	if f.portfolioErr != nil {
		return f.portfolioErr
	}
	return f.Store.UpdatePortfolio(ctx, snap)
}

func newTestStore() *store.MemoryStore {
	return store.NewMemoryStore(store.WithClock(func() time.Time { return testNow }))
}

func fixedClock() func() time.Time {
	return func() time.Time { return testNow }
}

// approvedSignal stores a signal and approves it
func approvedSignal(t *testing.T, st store.Store, symbol string, side types.Side, entry, stop, target float64, ttl time.Duration) *types.Signal {
	t.Helper()
	ctx := context.Background()
	sig, err := st.CreateSignal(ctx, types.SignalCreate{
		Symbol:          symbol,
		Side:            side,
		Confidence:      95,
		EntryPrice:      entry,
		StopLossPrice:   stop,
		TakeProfitPrice: target,
	}, ttl)
	require.NoError(t, err)
	sig, err = st.UpdateSignalStatus(ctx, sig.ID, types.SignalStatusApproved, store.WithApprover("tester"))
	require.NoError(t, err)
	return sig
}

// openTrade stores an OPEN trade with both legs attached
func openTrade(t *testing.T, st store.Store, side types.Side, entry, stop, target, qty float64) *types.Trade {
	t.Helper()
	ctx := context.Background()
	trade, err := st.CreateTrade(ctx, types.TradeCreate{
		Symbol:          "BTCUSDT",
		Side:            side,
		EntryPrice:      entry,
		Quantity:        qty,
		StopLossPrice:   stop,
		TakeProfitPrice: target,
	})
	require.NoError(t, err)
	ids := types.OrderIDs{Entry: "entry-1", StopLoss: "sl-1", TakeProfit: "tp-1"}
	require.NoError(t, st.UpdateTradeOrderIDs(ctx, trade.ID, ids))
	trade.OrderIDs = ids
	return trade
}

// recordingNotifier keeps every alert it is sent
type recordingNotifier struct {
	mu     sync.Mutex
	alerts []string
}

func (n *recordingNotifier) SendAlert(level, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, level+": "+message)
	return nil
}

func (n *recordingNotifier) matching(substr string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, a := range n.alerts {
		if strings.Contains(a, substr) {
			out = append(out, a)
		}
	}
	return out
}
