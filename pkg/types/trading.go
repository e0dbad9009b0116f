package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Side is the direction of a signal or trade
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide converts user input such as "buy" or "Sell" to a Side
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	}
	return "", &ValidationError{Field: "side", Reason: fmt.Sprintf("unknown side %q", s)}
}

// Valid reports whether s is BUY or SELL
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Opposite returns the side that closes a position opened on s
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// SignalStatus is the lifecycle state of a signal
type SignalStatus string

const (
	SignalStatusPending  SignalStatus = "PENDING"
	SignalStatusApproved SignalStatus = "APPROVED"
	SignalStatusRejected SignalStatus = "REJECTED"
	SignalStatusExecuted SignalStatus = "EXECUTED"
	SignalStatusExpired  SignalStatus = "EXPIRED"
)

// ParseSignalStatus converts a string to a known SignalStatus
func ParseSignalStatus(s string) (SignalStatus, error) {
	status := SignalStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch status {
	case SignalStatusPending, SignalStatusApproved, SignalStatusRejected,
		SignalStatusExecuted, SignalStatusExpired:
		return status, nil
	}
	return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown signal status %q", s)}
}

// IsTerminal reports whether no further transition is allowed
func (s SignalStatus) IsTerminal() bool {
	return s == SignalStatusRejected || s == SignalStatusExecuted || s == SignalStatusExpired
}

// CanTransitionTo encodes the signal state machine:
// PENDING -> APPROVED | REJECTED | EXPIRED, APPROVED -> EXECUTED | EXPIRED.
func (s SignalStatus) CanTransitionTo(next SignalStatus) bool {
	switch s {
	case SignalStatusPending:
		return next == SignalStatusApproved || next == SignalStatusRejected || next == SignalStatusExpired
	case SignalStatusApproved:
		return next == SignalStatusExecuted || next == SignalStatusExpired
	}
	return false
}

// TradeStatus is the lifecycle state of a trade
type TradeStatus string

const (
	TradeStatusOpen       TradeStatus = "OPEN"
	TradeStatusClosed     TradeStatus = "CLOSED"
	TradeStatusStoppedOut TradeStatus = "STOPPED_OUT"
	TradeStatusTakeProfit TradeStatus = "TAKE_PROFIT"
)

// ParseTradeStatus converts a string to a known TradeStatus
func ParseTradeStatus(s string) (TradeStatus, error) {
	status := TradeStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch status {
	case TradeStatusOpen, TradeStatusClosed, TradeStatusStoppedOut, TradeStatusTakeProfit:
		return status, nil
	}
	return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown trade status %q", s)}
}

// IsClosed reports whether the status is one of the terminal trade states
func (s TradeStatus) IsClosed() bool {
	return s == TradeStatusClosed || s == TradeStatusStoppedOut || s == TradeStatusTakeProfit
}

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrTradeClosed       = errors.New("trade already closed")
)

// ValidationError reports a malformed record field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NormalizeSymbol turns "btc/usdt" style pairs into venue symbols like "BTCUSDT"
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.ReplaceAll(s, "/", "")
	return strings.ReplaceAll(s, "-", "")
}

// SignalCreate holds the fields a recommendation provides
type SignalCreate struct {
	Symbol          string         `json:"symbol" yaml:"symbol"`
	Side            Side           `json:"signal_type" yaml:"signal_type"`
	Confidence      float64        `json:"confidence" yaml:"confidence"`
	EntryPrice      float64        `json:"entry_price" yaml:"entry_price"`
	StopLossPrice   float64        `json:"stop_loss_price" yaml:"stop_loss_price"`
	TakeProfitPrice float64        `json:"take_profit_price" yaml:"take_profit_price"`
	AnalysisSummary string         `json:"analysis_summary,omitempty" yaml:"analysis_summary,omitempty"`
	TechnicalData   map[string]any `json:"technical_data,omitempty" yaml:"technical_data,omitempty"`
}

// Validate checks symbol, side, confidence range and the price bracket
func (c SignalCreate) Validate() error {
	if c.Symbol == "" {
		return &ValidationError{Field: "symbol", Reason: "required"}
	}
	if !c.Side.Valid() {
		return &ValidationError{Field: "side", Reason: fmt.Sprintf("unknown side %q", c.Side)}
	}
	if c.Confidence < 0 || c.Confidence > 100 {
		return &ValidationError{Field: "confidence", Reason: fmt.Sprintf("%.2f outside 0..100", c.Confidence)}
	}
	return validateBracket(c.Side, c.EntryPrice, c.StopLossPrice, c.TakeProfitPrice)
}

// validateBracket requires stop < entry < target for BUY and target < entry < stop for SELL
func validateBracket(side Side, entry, stop, target float64) error {
	if entry <= 0 {
		return &ValidationError{Field: "entry_price", Reason: "must be positive"}
	}
	if stop <= 0 {
		return &ValidationError{Field: "stop_loss_price", Reason: "must be positive"}
	}
	if target <= 0 {
		return &ValidationError{Field: "take_profit_price", Reason: "must be positive"}
	}
	switch side {
	case SideBuy:
		if !(stop < entry && entry < target) {
			return &ValidationError{Field: "prices", Reason: fmt.Sprintf("BUY requires stop < entry < target, got %g/%g/%g", stop, entry, target)}
		}
	case SideSell:
		if !(target < entry && entry < stop) {
			return &ValidationError{Field: "prices", Reason: fmt.Sprintf("SELL requires target < entry < stop, got %g/%g/%g", target, entry, stop)}
		}
	}
	return nil
}

// Signal is a trading recommendation awaiting or past human approval
type Signal struct {
	ID string `json:"id"`
	SignalCreate
	Status     SignalStatus `json:"status"`
	ApprovedBy string       `json:"approved_by,omitempty"`
	ApprovedAt *time.Time   `json:"approved_at,omitempty"`
	ExpiresAt  *time.Time   `json:"expires_at,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// NewSignal builds a PENDING signal. A zero ttl means the signal never expires.
func NewSignal(id string, c SignalCreate, now time.Time, ttl time.Duration) (*Signal, error) {
	c.Symbol = NormalizeSymbol(c.Symbol)
	s := &Signal{
		ID:           id,
		SignalCreate: c,
		Status:       SignalStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if ttl > 0 {
		expires := now.Add(ttl)
		s.ExpiresAt = &expires
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks a full signal record as it crosses the store boundary
func (s *Signal) Validate() error {
	if s.ID == "" {
		return &ValidationError{Field: "id", Reason: "required"}
	}
	if _, err := ParseSignalStatus(string(s.Status)); err != nil {
		return err
	}
	return s.SignalCreate.Validate()
}

// IsExpired reports whether the signal has an expiry at or before now
func (s *Signal) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// IsEligible reports whether the signal may be executed at now
func (s *Signal) IsEligible(now time.Time) bool {
	return s.Status == SignalStatusApproved && !s.IsExpired(now)
}

// Transition moves the signal to next, enforcing the state machine
func (s *Signal) Transition(next SignalStatus, now time.Time) error {
	if !s.Status.CanTransitionTo(next) {
		return fmt.Errorf("signal %s %s -> %s: %w", s.ID, s.Status, next, ErrInvalidTransition)
	}
	s.Status = next
	s.UpdatedAt = now
	return nil
}

// TradeCreate holds what the orchestrator knows once the entry order has filled
type TradeCreate struct {
	SignalID        string  `json:"signal_id,omitempty"`
	Symbol          string  `json:"symbol"`
	Side            Side    `json:"side"`
	EntryPrice      float64 `json:"entry_price"`
	Quantity        float64 `json:"quantity"`
	StopLossPrice   float64 `json:"stop_loss_price"`
	TakeProfitPrice float64 `json:"take_profit_price"`
}

// Validate checks quantity and the protective bracket. The entry price is a venue fill
// and may land outside the bracket, so only stop vs target ordering is enforced here.
func (c TradeCreate) Validate() error {
	if c.Symbol == "" {
		return &ValidationError{Field: "symbol", Reason: "required"}
	}
	if !c.Side.Valid() {
		return &ValidationError{Field: "side", Reason: fmt.Sprintf("unknown side %q", c.Side)}
	}
	if c.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if c.EntryPrice <= 0 || c.StopLossPrice <= 0 || c.TakeProfitPrice <= 0 {
		return &ValidationError{Field: "prices", Reason: "must be positive"}
	}
	if c.Side == SideBuy && c.StopLossPrice >= c.TakeProfitPrice {
		return &ValidationError{Field: "prices", Reason: "BUY requires stop below target"}
	}
	if c.Side == SideSell && c.StopLossPrice <= c.TakeProfitPrice {
		return &ValidationError{Field: "prices", Reason: "SELL requires stop above target"}
	}
	return nil
}

// WithinBracket reports whether the entry sits strictly between stop and target
func (c TradeCreate) WithinBracket() bool {
	return validateBracket(c.Side, c.EntryPrice, c.StopLossPrice, c.TakeProfitPrice) == nil
}

// OrderIDs are the venue identifiers of the entry and both protective legs
type OrderIDs struct {
	Entry      string `json:"exchange_order_id,omitempty"`
	StopLoss   string `json:"sl_order_id,omitempty"`
	TakeProfit string `json:"tp_order_id,omitempty"`
}

// IsZero reports whether no order id is set
func (o OrderIDs) IsZero() bool {
	return o.Entry == "" && o.StopLoss == "" && o.TakeProfit == ""
}

// TradeClose carries the fields written when a trade leaves OPEN
type TradeClose struct {
	ExitPrice     float64     `json:"exit_price"`
	Status        TradeStatus `json:"status"`
	PnLAmount     float64     `json:"pnl_amount"`
	PnLPercentage float64     `json:"pnl_percentage"`
	ClosedAt      time.Time   `json:"closed_at"`
}

// Trade is an executed position tracked from open to close
type Trade struct {
	ID string `json:"id"`
	TradeCreate
	Status        TradeStatus `json:"status"`
	ExitPrice     *float64    `json:"exit_price,omitempty"`
	PnLAmount     *float64    `json:"pnl_amount,omitempty"`
	PnLPercentage *float64    `json:"pnl_percentage,omitempty"`
	OrderIDs
	OpenedAt time.Time  `json:"opened_at"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`
}

// NewTrade builds an OPEN trade record
func NewTrade(id string, c TradeCreate, now time.Time) (*Trade, error) {
	c.Symbol = NormalizeSymbol(c.Symbol)
	t := &Trade{
		ID:          id,
		TradeCreate: c,
		Status:      TradeStatusOpen,
		OpenedAt:    now,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks a full trade record as it crosses the store boundary
func (t *Trade) Validate() error {
	if t.ID == "" {
		return &ValidationError{Field: "id", Reason: "required"}
	}
	if _, err := ParseTradeStatus(string(t.Status)); err != nil {
		return err
	}
	return t.TradeCreate.Validate()
}

// IsOpen reports whether the trade is still live
func (t *Trade) IsOpen() bool {
	return t.Status == TradeStatusOpen
}

// HasFullProtection reports whether both protective legs were accepted by the venue
func (t *Trade) HasFullProtection() bool {
	return t.OrderIDs.StopLoss != "" && t.OrderIDs.TakeProfit != ""
}

// Close moves an OPEN trade into a terminal state exactly once
func (t *Trade) Close(c TradeClose) error {
	if !t.IsOpen() {
		return fmt.Errorf("trade %s is %s: %w", t.ID, t.Status, ErrTradeClosed)
	}
	if !c.Status.IsClosed() {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("%s is not a closing status", c.Status)}
	}
	if c.ExitPrice <= 0 {
		return &ValidationError{Field: "exit_price", Reason: "must be positive"}
	}
	exit, pnl, pct, closedAt := c.ExitPrice, c.PnLAmount, c.PnLPercentage, c.ClosedAt
	t.Status = c.Status
	t.ExitPrice = &exit
	t.PnLAmount = &pnl
	t.PnLPercentage = &pct
	t.ClosedAt = &closedAt
	return nil
}

// CalculatePnL returns realised profit and its percentage of entry notional
func CalculatePnL(side Side, entry, exit, quantity float64) (amount, percentage float64) {
	if side == SideBuy {
		amount = (exit - entry) * quantity
	} else {
		amount = (entry - exit) * quantity
	}
	notional := entry * quantity
	if notional == 0 {
		return amount, 0
	}
	return amount, amount / notional * 100
}

// PortfolioSnapshot is a point-in-time balance record, appended once per cycle
type PortfolioSnapshot struct {
	Asset            string    `json:"asset"`
	TotalBalance     float64   `json:"total_balance"`
	AvailableBalance float64   `json:"available_balance"`
	LockedBalance    float64   `json:"locked_balance"`
	Timestamp        time.Time `json:"timestamp"`
}

// NewPortfolioSnapshot validates balances before they reach the store
func NewPortfolioSnapshot(b Balance, now time.Time) (PortfolioSnapshot, error) {
	snap := PortfolioSnapshot{
		Asset:            b.Asset,
		TotalBalance:     b.Total,
		AvailableBalance: b.Available,
		LockedBalance:    b.Locked,
		Timestamp:        now,
	}
	return snap, snap.Validate()
}

// Validate rejects negative balances and a missing asset
func (p PortfolioSnapshot) Validate() error {
	if p.Asset == "" {
		return &ValidationError{Field: "asset", Reason: "required"}
	}
	if p.TotalBalance < 0 || p.AvailableBalance < 0 || p.LockedBalance < 0 {
		return &ValidationError{Field: "balance", Reason: "must not be negative"}
	}
	return nil
}
