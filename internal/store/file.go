package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/ducminhle1904/crypto-signal-trader/pkg/types"
)

const (
	lockRetryInterval = 50 * time.Millisecond
	lockWait          = 5 * time.Second
	staleLockAge      = 30 * time.Second
	maxSnapshots      = 10000
)

// ErrLocked is returned when another process holds the state file lock
var ErrLocked = errors.New("state file is locked by another process")

// fileState is the on-disk layout of the state file
type fileState struct {
	Signals   []*types.Signal           `json:"signals"`
	Trades    []*types.Trade            `json:"trades"`
	Portfolio []types.PortfolioSnapshot `json:"portfolio"`
	SavedAt   time.Time                 `json:"saved_at"`
}

// FileStore persists the memory store as one JSON document. Every write
// takes a lock file, reloads the document, applies the change and commits
// it with a temp file and rename, so several trader processes can share it.
type FileStore struct {
	mu       sync.Mutex
	mem      *MemoryStore
	filePath string
	lockFile string
	modTime  time.Time
}

// NewFileStore opens (or creates) the state file at filePath
func NewFileStore(filePath string, opts ...Option) (*FileStore, error) {
	if filePath == "" {
		filePath = filepath.Join("data", "trader_state.json")
	}
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	f := &FileStore{
		mem:      NewMemoryStore(opts...),
		filePath: filePath,
		lockFile: filePath + ".lock",
	}
	if err := f.reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// Path returns the state file location
func (f *FileStore) Path() string {
	return f.filePath
}

// reload replaces memory contents with the file when it changed on disk
func (f *FileStore) reload() error {
	info, err := os.Stat(f.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat state file: %w", err)
	}
	if info.ModTime().Equal(f.modTime) {
		return nil
	}

	data, err := os.ReadFile(f.filePath)
	if err != nil {
		return fmt.Errorf("failed to read state file: %w", err)
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to unmarshal state file: %w", err)
	}
	if err := f.mem.restore(state); err != nil {
		return fmt.Errorf("invalid state file: %w", err)
	}
	f.modTime = info.ModTime()
	return nil
}

// save writes the memory contents to a temp file and renames it in place
func (f *FileStore) save() error {
	state := f.mem.snapshot()
	state.SavedAt = time.Now()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tempFile := f.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary state file: %w", err)
	}
	if err := os.Rename(tempFile, f.filePath); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to commit state file: %w", err)
	}

	if info, err := os.Stat(f.filePath); err == nil {
		f.modTime = info.ModTime()
	}
	return nil
}

// lock creates the lock file, waiting for another holder to release it
func (f *FileStore) lock(ctx context.Context) error {
	deadline := time.Now().Add(lockWait)
	for {
		file, err := os.OpenFile(f.lockFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			_, werr := file.WriteString(strconv.Itoa(os.Getpid()))
			cerr := file.Close()
			return errors.Join(werr, cerr)
		}
		if !os.IsExist(err) {
			return fmt.Errorf("failed to create lock file: %w", err)
		}

		if info, statErr := os.Stat(f.lockFile); statErr == nil && time.Since(info.ModTime()) > staleLockAge {
			os.Remove(f.lockFile)
			continue
		}
		if time.Now().After(deadline) {
			return ErrLocked
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

func (f *FileStore) unlock() {
	os.Remove(f.lockFile)
}

// write runs a mutation under the lock file against fresh file contents
func (f *FileStore) write(ctx context.Context, fn func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.lock(ctx); err != nil {
		return err
	}
	defer f.unlock()

	if err := f.reload(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	if err := f.save(); err != nil {
		f.rollback()
		return err
	}
	return nil
}

// rollback drops unsaved changes so memory matches the file again
func (f *FileStore) rollback() {
	f.modTime = time.Time{}
	if _, err := os.Stat(f.filePath); os.IsNotExist(err) {
		f.mem.restore(fileState{})
		return
	}
	f.reload()
}

// read refreshes from disk before a query
func (f *FileStore) read() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reload()
}

func (f *FileStore) CreateSignal(ctx context.Context, c types.SignalCreate, ttl time.Duration) (*types.Signal, error) {
	var s *types.Signal
	err := f.write(ctx, func() (err error) {
		s, err = f.mem.CreateSignal(ctx, c, ttl)
		return err
	})
	return s, err
}

func (f *FileStore) GetSignal(ctx context.Context, id string) (*types.Signal, error) {
	if err := f.read(); err != nil {
		return nil, err
	}
	return f.mem.GetSignal(ctx, id)
}

func (f *FileStore) ListSignals(ctx context.Context, statuses ...types.SignalStatus) ([]*types.Signal, error) {
	if err := f.read(); err != nil {
		return nil, err
	}
	return f.mem.ListSignals(ctx, statuses...)
}

func (f *FileStore) GetApprovedSignals(ctx context.Context) ([]*types.Signal, error) {
	return f.ListSignals(ctx, types.SignalStatusApproved)
}

func (f *FileStore) UpdateSignalStatus(ctx context.Context, id string, status types.SignalStatus, opts ...UpdateOption) (*types.Signal, error) {
	var s *types.Signal
	err := f.write(ctx, func() (err error) {
		s, err = f.mem.UpdateSignalStatus(ctx, id, status, opts...)
		return err
	})
	return s, err
}

func (f *FileStore) ExpireSignals(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := f.write(ctx, func() (err error) {
		n, err = f.mem.ExpireSignals(ctx, now)
		return err
	})
	return n, err
}

func (f *FileStore) CreateTrade(ctx context.Context, c types.TradeCreate) (*types.Trade, error) {
	var t *types.Trade
	err := f.write(ctx, func() (err error) {
		t, err = f.mem.CreateTrade(ctx, c)
		return err
	})
	return t, err
}

func (f *FileStore) GetTrade(ctx context.Context, id string) (*types.Trade, error) {
	if err := f.read(); err != nil {
		return nil, err
	}
	return f.mem.GetTrade(ctx, id)
}

func (f *FileStore) GetTradeBySignal(ctx context.Context, signalID string) (*types.Trade, error) {
	if err := f.read(); err != nil {
		return nil, err
	}
	return f.mem.GetTradeBySignal(ctx, signalID)
}

func (f *FileStore) GetOpenTrades(ctx context.Context) ([]*types.Trade, error) {
	return f.ListTrades(ctx, types.TradeStatusOpen)
}

func (f *FileStore) GetOpenTradeCount(ctx context.Context) (int, error) {
	if err := f.read(); err != nil {
		return 0, err
	}
	return f.mem.GetOpenTradeCount(ctx)
}

func (f *FileStore) ListTrades(ctx context.Context, statuses ...types.TradeStatus) ([]*types.Trade, error) {
	if err := f.read(); err != nil {
		return nil, err
	}
	return f.mem.ListTrades(ctx, statuses...)
}

func (f *FileStore) UpdateTradeOrderIDs(ctx context.Context, id string, ids types.OrderIDs) error {
	return f.write(ctx, func() error {
		return f.mem.UpdateTradeOrderIDs(ctx, id, ids)
	})
}

func (f *FileStore) CloseTrade(ctx context.Context, id string, c types.TradeClose) (*types.Trade, error) {
	var t *types.Trade
	err := f.write(ctx, func() (err error) {
		t, err = f.mem.CloseTrade(ctx, id, c)
		return err
	})
	return t, err
}

func (f *FileStore) UpdatePortfolio(ctx context.Context, snap types.PortfolioSnapshot) error {
	return f.write(ctx, func() error {
		return f.mem.UpdatePortfolio(ctx, snap)
	})
}

func (f *FileStore) GetLatestPortfolio(ctx context.Context) (*types.PortfolioSnapshot, error) {
	if err := f.read(); err != nil {
		return nil, err
	}
	return f.mem.GetLatestPortfolio(ctx)
}

func (f *FileStore) ListPortfolio(ctx context.Context, limit int) ([]types.PortfolioSnapshot, error) {
	if err := f.read(); err != nil {
		return nil, err
	}
	return f.mem.ListPortfolio(ctx, limit)
}

// Close releases nothing; every write already committed to disk
func (f *FileStore) Close() error {
	return nil
}

// snapshot copies the store contents for persistence
func (m *MemoryStore) snapshot() fileState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state := fileState{
		Signals: make([]*types.Signal, 0, len(m.signalOrder)),
		Trades:  make([]*types.Trade, 0, len(m.tradeOrder)),
	}
	for _, id := range m.signalOrder {
		state.Signals = append(state.Signals, m.signals[id])
	}
	for _, id := range m.tradeOrder {
		state.Trades = append(state.Trades, m.trades[id])
	}

	history := m.portfolio
	if len(history) > maxSnapshots {
		history = history[len(history)-maxSnapshots:]
	}
	state.Portfolio = append([]types.PortfolioSnapshot(nil), history...)
	return state
}

// restore replaces the store contents, validating every record
func (m *MemoryStore) restore(state fileState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reset()
	for _, s := range state.Signals {
		if s == nil {
			return fmt.Errorf("nil signal record")
		}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("signal %s: %w", s.ID, err)
		}
		m.signals[s.ID] = s
		m.signalOrder = append(m.signalOrder, s.ID)
	}
	for _, t := range state.Trades {
		if t == nil {
			return fmt.Errorf("nil trade record")
		}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("trade %s: %w", t.ID, err)
		}
		m.trades[t.ID] = t
		m.tradeOrder = append(m.tradeOrder, t.ID)
		if t.SignalID != "" {
			m.bySignal[t.SignalID] = t.ID
		}
	}
	for _, p := range state.Portfolio {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("portfolio snapshot: %w", err)
		}
	}
	m.portfolio = state.Portfolio
	return nil
}
