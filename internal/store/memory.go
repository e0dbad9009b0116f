package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ducminhle1904/crypto-signal-trader/pkg/types"
)

// Option configures a MemoryStore
type Option func(*MemoryStore)

// WithClock overrides the time source used for record timestamps
func WithClock(now func() time.Time) Option {
	return func(m *MemoryStore) { m.now = now }
}

// WithIDGenerator overrides UUIDv4 record ids
func WithIDGenerator(next func() string) Option {
	return func(m *MemoryStore) { m.newID = next }
}

// MemoryStore keeps every record in process memory, in insertion order
type MemoryStore struct {
	mu sync.RWMutex

	signals     map[string]*types.Signal
	signalOrder []string
	trades      map[string]*types.Trade
	tradeOrder  []string
	bySignal    map[string]string
	portfolio   []types.PortfolioSnapshot

	now   func() time.Time
	newID func() string
}

// NewMemoryStore creates an empty store
func NewMemoryStore(opts ...Option) *MemoryStore {
	m := &MemoryStore{
		now:   time.Now,
		newID: uuid.NewString,
	}
	m.reset()
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemoryStore) reset() {
	m.signals = make(map[string]*types.Signal)
	m.signalOrder = nil
	m.trades = make(map[string]*types.Trade)
	m.tradeOrder = nil
	m.bySignal = make(map[string]string)
	m.portfolio = nil
}

func copySignal(s *types.Signal) *types.Signal {
	c := *s
	return &c
}

func copyTrade(t *types.Trade) *types.Trade {
	c := *t
	return &c
}

// CreateSignal stores a new PENDING signal
func (m *MemoryStore) CreateSignal(ctx context.Context, c types.SignalCreate, ttl time.Duration) (*types.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := types.NewSignal(m.newID(), c, m.now(), ttl)
	if err != nil {
		return nil, err
	}
	m.signals[s.ID] = s
	m.signalOrder = append(m.signalOrder, s.ID)
	return copySignal(s), nil
}

// GetSignal returns one signal by id
func (m *MemoryStore) GetSignal(ctx context.Context, id string) (*types.Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.signals[id]
	if !ok {
		return nil, fmt.Errorf("signal %s: %w", id, ErrNotFound)
	}
	return copySignal(s), nil
}

// ListSignals returns signals in creation order
func (m *MemoryStore) ListSignals(ctx context.Context, statuses ...types.SignalStatus) ([]*types.Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*types.Signal, 0, len(m.signalOrder))
	for _, id := range m.signalOrder {
		s := m.signals[id]
		if matchesStatus(s.Status, statuses) {
			out = append(out, copySignal(s))
		}
	}
	return out, nil
}

// GetApprovedSignals returns APPROVED signals in creation order
func (m *MemoryStore) GetApprovedSignals(ctx context.Context) ([]*types.Signal, error) {
	return m.ListSignals(ctx, types.SignalStatusApproved)
}

// UpdateSignalStatus applies a state machine transition
func (m *MemoryStore) UpdateSignalStatus(ctx context.Context, id string, status types.SignalStatus, opts ...UpdateOption) (*types.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.signals[id]
	if !ok {
		return nil, fmt.Errorf("signal %s: %w", id, ErrNotFound)
	}

	now := m.now()
	next := copySignal(s)
	if err := next.Transition(status, now); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(next, now)
	}
	m.signals[id] = next
	return copySignal(next), nil
}

// ExpireSignals expires PENDING and APPROVED signals whose expiry has passed
func (m *MemoryStore) ExpireSignals(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expired := 0
	for _, id := range m.signalOrder {
		s := m.signals[id]
		if s.Status.IsTerminal() || !s.IsExpired(now) {
			continue
		}
		next := copySignal(s)
		if err := next.Transition(types.SignalStatusExpired, now); err != nil {
			return expired, err
		}
		m.signals[id] = next
		expired++
	}
	return expired, nil
}

// CreateTrade records an OPEN trade. A signal gets at most one trade.
func (m *MemoryStore) CreateTrade(ctx context.Context, c types.TradeCreate) (*types.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.SignalID != "" {
		if existing, ok := m.bySignal[c.SignalID]; ok {
			return nil, fmt.Errorf("signal %s has trade %s: %w", c.SignalID, existing, ErrDuplicateTrade)
		}
	}

	t, err := types.NewTrade(m.newID(), c, m.now())
	if err != nil {
		return nil, err
	}
	m.trades[t.ID] = t
	m.tradeOrder = append(m.tradeOrder, t.ID)
	if c.SignalID != "" {
		m.bySignal[c.SignalID] = t.ID
	}
	return copyTrade(t), nil
}

// GetTrade returns one trade by id
func (m *MemoryStore) GetTrade(ctx context.Context, id string) (*types.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.trades[id]
	if !ok {
		return nil, fmt.Errorf("trade %s: %w", id, ErrNotFound)
	}
	return copyTrade(t), nil
}

// GetTradeBySignal returns the trade opened for a signal
func (m *MemoryStore) GetTradeBySignal(ctx context.Context, signalID string) (*types.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.bySignal[signalID]
	if !ok {
		return nil, fmt.Errorf("trade for signal %s: %w", signalID, ErrNotFound)
	}
	return copyTrade(m.trades[id]), nil
}

// GetOpenTrades returns OPEN trades in creation order
func (m *MemoryStore) GetOpenTrades(ctx context.Context) ([]*types.Trade, error) {
	return m.ListTrades(ctx, types.TradeStatusOpen)
}

// GetOpenTradeCount counts OPEN trades
func (m *MemoryStore) GetOpenTradeCount(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, t := range m.trades {
		if t.IsOpen() {
			n++
		}
	}
	return n, nil
}

// ListTrades returns trades in creation order
func (m *MemoryStore) ListTrades(ctx context.Context, statuses ...types.TradeStatus) ([]*types.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*types.Trade, 0, len(m.tradeOrder))
	for _, id := range m.tradeOrder {
		t := m.trades[id]
		if matchesStatus(t.Status, statuses) {
			out = append(out, copyTrade(t))
		}
	}
	return out, nil
}

// UpdateTradeOrderIDs stores the venue order ids of a trade
func (m *MemoryStore) UpdateTradeOrderIDs(ctx context.Context, id string, ids types.OrderIDs) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.trades[id]
	if !ok {
		return fmt.Errorf("trade %s: %w", id, ErrNotFound)
	}
	next := copyTrade(t)
	next.OrderIDs = ids
	m.trades[id] = next
	return nil
}

// CloseTrade moves an OPEN trade to a terminal status
func (m *MemoryStore) CloseTrade(ctx context.Context, id string, c types.TradeClose) (*types.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.trades[id]
	if !ok {
		return nil, fmt.Errorf("trade %s: %w", id, ErrNotFound)
	}
	if c.ClosedAt.IsZero() {
		c.ClosedAt = m.now()
	}
	next := copyTrade(t)
	if err := next.Close(c); err != nil {
		return nil, err
	}
	m.trades[id] = next
	return copyTrade(next), nil
}

// UpdatePortfolio appends a balance snapshot
func (m *MemoryStore) UpdatePortfolio(ctx context.Context, snap types.PortfolioSnapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if snap.Timestamp.IsZero() {
		snap.Timestamp = m.now()
	}
	m.portfolio = append(m.portfolio, snap)
	return nil
}

// GetLatestPortfolio returns the most recent snapshot
func (m *MemoryStore) GetLatestPortfolio(ctx context.Context) (*types.PortfolioSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.portfolio) == 0 {
		return nil, fmt.Errorf("portfolio snapshot: %w", ErrNotFound)
	}
	latest := m.portfolio[len(m.portfolio)-1]
	return &latest, nil
}

// ListPortfolio returns snapshots newest first
func (m *MemoryStore) ListPortfolio(ctx context.Context, limit int) ([]types.PortfolioSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.portfolio)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]types.PortfolioSnapshot, 0, n)
	for i := len(m.portfolio) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.portfolio[i])
	}
	return out, nil
}

// Close is a no-op for the memory store
func (m *MemoryStore) Close() error {
	return nil
}

func matchesStatus[S comparable](status S, filter []S) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f == status {
			return true
		}
	}
	return false
}
