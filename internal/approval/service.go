package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ducminhle1904/crypto-signal-trader/internal/logger"
	"github.com/ducminhle1904/crypto-signal-trader/internal/notifications"
	"github.com/ducminhle1904/crypto-signal-trader/internal/store"
	"github.com/ducminhle1904/crypto-signal-trader/pkg/types"
)

var (
	// ErrLowConfidence is returned by Submit for signals under the intake threshold
	ErrLowConfidence = errors.New("confidence below threshold")
	// ErrNotPending is returned when approving or rejecting a decided signal
	ErrNotPending = errors.New("signal is not pending")
	// ErrSignalExpired is returned when a PENDING signal ran out of time
	ErrSignalExpired = errors.New("signal expired")
)

// Policy holds the intake rules taken from the trading config
type Policy struct {
	MinConfidence float64
	StopLossPct   float64
	TakeProfitPct float64
	Expiry        time.Duration
}

// Service is the human-in-the-loop side of the signal lifecycle: intake of
// recommendations and the approve or reject decision.
type Service struct {
	store    store.SignalStore
	policy   Policy
	log      *zap.Logger
	notifier notifications.Notifier
	now      func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates the approval service. log and notifier may be nil.
func NewService(st store.SignalStore, policy Policy, log *zap.Logger, notifier notifications.Notifier, opts ...Option) *Service {
	s := &Service{
		store:    st,
		policy:   policy,
		log:      logger.OrNop(log),
		notifier: notifications.OrNop(notifier),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates a recommendation and stores it as PENDING. A missing stop or
// target is derived from the entry price using the policy percentages.
func (s *Service) Submit(ctx context.Context, c types.SignalCreate) (*types.Signal, error) {
	c.Symbol = types.NormalizeSymbol(c.Symbol)
	if side, err := types.ParseSide(string(c.Side)); err == nil {
		c.Side = side
	}
	if c.Confidence < s.policy.MinConfidence {
		return nil, fmt.Errorf("%s %.1f < %.1f: %w", c.Symbol, c.Confidence, s.policy.MinConfidence, ErrLowConfidence)
	}
	c = s.fillBracket(c)
	if err := c.Validate(); err != nil {
		return nil, err
	}

	sig, err := s.store.CreateSignal(ctx, c, s.policy.Expiry)
	if err != nil {
		return nil, fmt.Errorf("failed to store signal: %w", err)
	}

	s.log.Info("signal submitted",
		zap.String("signal_id", sig.ID),
		zap.String("symbol", sig.Symbol),
		zap.String("side", string(sig.Side)),
		zap.Float64("confidence", sig.Confidence),
		zap.Float64("entry", sig.EntryPrice),
		zap.Float64("stop", sig.StopLossPrice),
		zap.Float64("target", sig.TakeProfitPrice),
	)
	s.notify(notifications.LevelInfo, notifications.SignalMessage(sig))
	return sig, nil
}

// fillBracket derives missing protective prices on the correct side of entry
func (s *Service) fillBracket(c types.SignalCreate) types.SignalCreate {
	if c.EntryPrice <= 0 {
		return c
	}
	stopOffset := c.EntryPrice * s.policy.StopLossPct
	targetOffset := c.EntryPrice * s.policy.TakeProfitPct
	if c.Side == types.SideSell {
		stopOffset, targetOffset = -stopOffset, -targetOffset
	}
	if c.StopLossPrice == 0 && s.policy.StopLossPct > 0 {
		c.StopLossPrice = c.EntryPrice - stopOffset
	}
	if c.TakeProfitPrice == 0 && s.policy.TakeProfitPct > 0 {
		c.TakeProfitPrice = c.EntryPrice + targetOffset
	}
	return c
}

// Approve moves a PENDING signal to APPROVED on behalf of approver
func (s *Service) Approve(ctx context.Context, id, approver string) (*types.Signal, error) {
	if _, err := s.pending(ctx, id); err != nil {
		return nil, err
	}
	sig, err := s.store.UpdateSignalStatus(ctx, id, types.SignalStatusApproved, store.WithApprover(approver))
	if err != nil {
		return nil, err
	}
	s.log.Info("signal approved", zap.String("signal_id", id), zap.String("approved_by", approver))
	s.notify(notifications.LevelSuccess, fmt.Sprintf("Signal `%s` approved by %s: %s %s", id, approver, sig.Side, sig.Symbol))
	return sig, nil
}

// Reject moves a PENDING signal to REJECTED
func (s *Service) Reject(ctx context.Context, id, by string) (*types.Signal, error) {
	if _, err := s.pending(ctx, id); err != nil {
		return nil, err
	}
	sig, err := s.store.UpdateSignalStatus(ctx, id, types.SignalStatusRejected)
	if err != nil {
		return nil, err
	}
	s.log.Info("signal rejected", zap.String("signal_id", id), zap.String("rejected_by", by))
	s.notify(notifications.LevelInfo, fmt.Sprintf("Signal `%s` rejected by %s", id, by))
	return sig, nil
}

// Expire sweeps every PENDING or APPROVED signal past its expiry
func (s *Service) Expire(ctx context.Context) (int, error) {
	n, err := s.store.ExpireSignals(ctx, s.now())
	if err != nil {
		return n, err
	}
	if n > 0 {
		s.log.Info("signals expired", zap.Int("count", n))
	}
	return n, nil
}

// pending loads a signal that is still awaiting a decision. A PENDING signal
// past its expiry is moved to EXPIRED and reported as ErrSignalExpired.
func (s *Service) pending(ctx context.Context, id string) (*types.Signal, error) {
	sig, err := s.store.GetSignal(ctx, id)
	if err != nil {
		return nil, err
	}
	if sig.Status != types.SignalStatusPending {
		return nil, fmt.Errorf("signal %s is %s: %w", id, sig.Status, ErrNotPending)
	}
	if sig.IsExpired(s.now()) {
		if _, err := s.store.UpdateSignalStatus(ctx, id, types.SignalStatusExpired); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("signal %s: %w", id, ErrSignalExpired)
	}
	return sig, nil
}

func (s *Service) notify(level, message string) {
	if err := s.notifier.SendAlert(level, message); err != nil {
		s.log.Warn("notification failed", zap.Error(err))
	}
}
