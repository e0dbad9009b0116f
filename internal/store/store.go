package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ducminhle1904/crypto-signal-trader/pkg/types"
)

var (
	// ErrNotFound is returned when no record matches the lookup
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateTrade is returned when a signal already has a trade
	ErrDuplicateTrade = errors.New("trade already exists for signal")
)

// SignalStore persists signals and their lifecycle
type SignalStore interface {
	CreateSignal(ctx context.Context, c types.SignalCreate, ttl time.Duration) (*types.Signal, error)
	GetSignal(ctx context.Context, id string) (*types.Signal, error)
	// ListSignals returns signals in creation order, optionally filtered by status
	ListSignals(ctx context.Context, statuses ...types.SignalStatus) ([]*types.Signal, error)
	GetApprovedSignals(ctx context.Context) ([]*types.Signal, error)
	UpdateSignalStatus(ctx context.Context, id string, status types.SignalStatus, opts ...UpdateOption) (*types.Signal, error)
	// ExpireSignals moves PENDING and APPROVED signals past their expiry to EXPIRED
	ExpireSignals(ctx context.Context, now time.Time) (int, error)
}

// TradeStore persists trades from open to close
type TradeStore interface {
	CreateTrade(ctx context.Context, c types.TradeCreate) (*types.Trade, error)
	GetTrade(ctx context.Context, id string) (*types.Trade, error)
	GetTradeBySignal(ctx context.Context, signalID string) (*types.Trade, error)
	GetOpenTrades(ctx context.Context) ([]*types.Trade, error)
	GetOpenTradeCount(ctx context.Context) (int, error)
	ListTrades(ctx context.Context, statuses ...types.TradeStatus) ([]*types.Trade, error)
	UpdateTradeOrderIDs(ctx context.Context, id string, ids types.OrderIDs) error
	CloseTrade(ctx context.Context, id string, c types.TradeClose) (*types.Trade, error)
}

// PortfolioStore keeps the balance snapshot history
type PortfolioStore interface {
	UpdatePortfolio(ctx context.Context, snap types.PortfolioSnapshot) error
	GetLatestPortfolio(ctx context.Context) (*types.PortfolioSnapshot, error)
	// ListPortfolio returns up to limit snapshots, newest first. Zero means all.
	ListPortfolio(ctx context.Context, limit int) ([]types.PortfolioSnapshot, error)
}

// Store is the durable record of signals, trades and portfolio snapshots
type Store interface {
	SignalStore
	TradeStore
	PortfolioStore
	Close() error
}

// UpdateOption decorates a signal status change
type UpdateOption func(*types.Signal, time.Time)

// WithApprover records who approved a signal and when
func WithApprover(name string) UpdateOption {
	return func(s *types.Signal, now time.Time) {
		s.ApprovedBy = name
		at := now
		s.ApprovedAt = &at
	}
}

// Open builds the store for a driver name: "file" or "memory"
func Open(driver, path string, opts ...Option) (Store, error) {
	switch driver {
	case "", "file":
		return NewFileStore(path, opts...)
	case "memory":
		return NewMemoryStore(opts...), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
