package trader

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	apperrors "github.com/ducminhle1904/crypto-signal-trader/internal/errors"
	"github.com/ducminhle1904/crypto-signal-trader/internal/store"
	"github.com/ducminhle1904/crypto-signal-trader/pkg/types"
)

// Admission is the gate's verdict on one signal
type Admission int

const (
	Admitted Admission = iota
	// Deferred signals stay APPROVED and are evaluated again next cycle
	Deferred
	// Expired signals have been moved to EXPIRED
	Expired
	// Ineligible signals are no longer APPROVED
	Ineligible
)

func (a Admission) String() string {
	switch a {
	case Admitted:
		return "admitted"
	case Deferred:
		return "deferred"
	case Expired:
		return "expired"
	case Ineligible:
		return "ineligible"
	}
	return fmt.Sprintf("admission(%d)", int(a))
}

// gateStore is the slice of the Store the gate reads and writes
type gateStore interface {
	GetOpenTradeCount(ctx context.Context) (int, error)
	UpdateSignalStatus(ctx context.Context, id string, status types.SignalStatus, opts ...store.UpdateOption) (*types.Signal, error)
}

// Gate enforces the open position ceiling and signal freshness.
// It holds no counter of its own: the open trade count is read from the
// store on every call, so each admission sees the trades created before it.
type Gate struct {
	store   gateStore
	ceiling int
	env
}

// NewGate creates a gate admitting signals while fewer than ceiling trades are open
func NewGate(st gateStore, ceiling int, opts ...Option) *Gate {
	return &Gate{store: st, ceiling: ceiling, env: newEnv(opts)}
}

// Ceiling returns the maximum number of concurrently open trades
func (g *Gate) Ceiling() int {
	return g.ceiling
}

// Admit decides whether sig may be executed now
func (g *Gate) Admit(ctx context.Context, sig *types.Signal) (Admission, error) {
	now := g.now()

	if sig.Status != types.SignalStatusApproved {
		return Ineligible, nil
	}

	if sig.IsExpired(now) {
		_, err := g.store.UpdateSignalStatus(ctx, sig.ID, types.SignalStatusExpired)
		if err != nil && !errors.Is(err, types.ErrInvalidTransition) {
			return Expired, apperrors.NewStorageError("gate", "expire signal", err)
		}
		g.log.Info("signal expired before execution",
			zap.String("signal_id", sig.ID),
			zap.String("symbol", sig.Symbol),
		)
		return Expired, nil
	}

	open, err := g.store.GetOpenTradeCount(ctx)
	if err != nil {
		return Deferred, apperrors.NewStorageError("gate", "count open trades", err)
	}
	if open >= g.ceiling {
		g.log.Info("position ceiling reached, signal deferred",
			zap.String("signal_id", sig.ID),
			zap.Int("open", open),
			zap.Int("ceiling", g.ceiling),
		)
		return Deferred, nil
	}
	return Admitted, nil
}
